package redis

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/pior/redis/resp"
)

// ErrNotSubscribed is returned by GetMessage when the connection has no
// subscription left and no queued message.
var ErrNotSubscribed = errors.New("redis: not subscribed")

var errNoChannel = errors.New("redis: no channel given")

// Msg is a message delivered to a subscribed channel.
type Msg struct {
	Channel string
	Pattern string // Matching pattern, for PSubscribe deliveries
	Payload []byte
}

// PubSub is a connection in subscribe mode.
//
// Subscription changes wait for the server acknowledgements, which are
// consumed internally. Messages received meanwhile are queued and returned
// by GetMessage in order. The connection returns to request/reply mode
// when the server reports zero subscriptions.
//
// Like Connection, a PubSub is not safe for concurrent use.
type PubSub struct {
	conn *Connection

	channels map[string]struct{}
	patterns map[string]struct{}
	count    int // subscription count last reported by the server
	pending  int // acknowledgements still expected
	queue    []Msg
}

// PubSub returns the subscribe-mode view of the connection.
func (c *Connection) PubSub() *PubSub {
	return &PubSub{
		conn:     c,
		channels: make(map[string]struct{}),
		patterns: make(map[string]struct{}),
	}
}

func (ps *PubSub) Subscribe(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return errNoChannel
	}
	return ps.control(ctx, "SUBSCRIBE", channels, len(channels))
}

func (ps *PubSub) PSubscribe(ctx context.Context, patterns ...string) error {
	if len(patterns) == 0 {
		return errNoChannel
	}
	return ps.control(ctx, "PSUBSCRIBE", patterns, len(patterns))
}

// Unsubscribe leaves the given channels, or every channel when none is given.
func (ps *PubSub) Unsubscribe(ctx context.Context, channels ...string) error {
	if !ps.conn.InPubSub() {
		return nil
	}
	return ps.control(ctx, "UNSUBSCRIBE", channels, unsubscribeAcks(channels, ps.channels))
}

// PUnsubscribe leaves the given patterns, or every pattern when none is given.
func (ps *PubSub) PUnsubscribe(ctx context.Context, patterns ...string) error {
	if !ps.conn.InPubSub() {
		return nil
	}
	return ps.control(ctx, "PUNSUBSCRIBE", patterns, unsubscribeAcks(patterns, ps.patterns))
}

// unsubscribeAcks returns the number of acknowledgements an unsubscribe
// produces: one per name, or one per subscription when no name is given,
// and at least one.
func unsubscribeAcks(names []string, current map[string]struct{}) int {
	if len(names) > 0 {
		return len(names)
	}
	return max(len(current), 1)
}

// Ping checks the connection while subscribed.
func (ps *PubSub) Ping(ctx context.Context) error {
	if !ps.conn.InPubSub() {
		_, err := ps.conn.RequestOne(ctx, NewCmd("PING"))
		return err
	}
	if err := ps.conn.send(ctx, NewCmd("PING")); err != nil {
		return err
	}
	ps.pending++
	return ps.waitAcks(ctx)
}

func (ps *PubSub) control(ctx context.Context, name string, targets []string, acks int) error {
	if err := ps.conn.send(ctx, NewCmd(name, targets)); err != nil {
		return err
	}
	ps.conn.mode = modePubSub
	ps.pending += acks
	return ps.waitAcks(ctx)
}

func (ps *PubSub) waitAcks(ctx context.Context) error {
	for ps.pending > 0 {
		v, err := ps.conn.receive(ctx)
		if err != nil {
			return err
		}
		if err := ps.dispatch(v); err != nil {
			return err
		}
	}
	return nil
}

// GetMessage blocks until a message arrives.
func (ps *PubSub) GetMessage(ctx context.Context) (Msg, error) {
	for len(ps.queue) == 0 {
		if !ps.conn.InPubSub() {
			return Msg{}, ErrNotSubscribed
		}
		v, err := ps.conn.receive(ctx)
		if err != nil {
			return Msg{}, err
		}
		if err := ps.dispatch(v); err != nil {
			return Msg{}, err
		}
	}

	msg := ps.queue[0]
	ps.queue[0] = Msg{}
	ps.queue = ps.queue[1:]
	return msg, nil
}

// dispatch classifies one frame received in subscribe mode.
func (ps *PubSub) dispatch(v resp.Value) error {
	switch {
	case v.IsError():
		// A rejected control command produces a single error and no acknowledgement.
		ps.pending = 0
		ps.settle()
		return newServerError(v)

	case !v.IsAggregate():
		// RESP3 replies to PING with a plain PONG.
		ps.ack()
		return nil

	case len(v.Elems) == 0:
		return ps.desync(v)
	}

	kind := strings.ToLower(v.Elems[0].Text())
	switch kind {
	case "message":
		if len(v.Elems) != 3 {
			return ps.desync(v)
		}
		ps.queue = append(ps.queue, Msg{Channel: v.Elems[1].Text(), Payload: v.Elems[2].Str})

	case "pmessage":
		if len(v.Elems) != 4 {
			return ps.desync(v)
		}
		ps.queue = append(ps.queue, Msg{Pattern: v.Elems[1].Text(), Channel: v.Elems[2].Text(), Payload: v.Elems[3].Str})

	case "subscribe", "psubscribe", "unsubscribe", "punsubscribe":
		if len(v.Elems) != 3 || v.Elems[2].Kind != resp.KindInteger {
			return ps.desync(v)
		}
		name := v.Elems[1]
		switch kind {
		case "subscribe":
			ps.channels[name.Text()] = struct{}{}
		case "psubscribe":
			ps.patterns[name.Text()] = struct{}{}
		case "unsubscribe":
			delete(ps.channels, name.Text())
		case "punsubscribe":
			delete(ps.patterns, name.Text())
		}
		ps.count = int(v.Elems[2].Int)
		ps.ack()
		ps.settle()

	case "pong":
		ps.ack()

	default:
		if v.Kind == resp.KindPush {
			// Other push frames (client tracking invalidations...) are not ours.
			return nil
		}
		return ps.desync(v)
	}
	return nil
}

func (ps *PubSub) ack() {
	if ps.pending > 0 {
		ps.pending--
	}
}

// settle leaves subscribe mode once the server reports no subscription.
func (ps *PubSub) settle() {
	if ps.count == 0 {
		ps.conn.mode = modeNormal
	}
}

func (ps *PubSub) desync(v resp.Value) error {
	ps.conn.broken = true
	return &resp.ProtocolError{Message: "unexpected frame in subscribe mode: " + v.String()}
}

// Channels returns the subscribed channels, sorted.
func (ps *PubSub) Channels() []string {
	return sortedKeys(ps.channels)
}

// Patterns returns the subscribed patterns, sorted.
func (ps *PubSub) Patterns() []string {
	return sortedKeys(ps.patterns)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Close closes the underlying connection.
func (ps *PubSub) Close() error {
	return ps.conn.Close()
}
