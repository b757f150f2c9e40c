package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/pior/redis/resp"
)

// ConnectionLike is anything that can serve request/reply exchanges.
//
// Implementations are not safe for concurrent use: replies are matched to
// commands by order only.
type ConnectionLike interface {
	// RequestOne sends one command and returns its reply.
	// An error reply is returned as *ServerError.
	RequestOne(ctx context.Context, cmd *Cmd) (resp.Value, error)

	// RequestMany writes all commands in one batch and returns exactly one
	// reply per command, in order. Error replies are returned inline.
	RequestMany(ctx context.Context, cmds []*Cmd) ([]resp.Value, error)

	// NoteDatabaseIndex records the database selected on the connection.
	NoteDatabaseIndex(db int)

	// DB returns the last recorded database index.
	DB() int

	// Usable reports whether the connection can still be used. It turns
	// false after a transport or protocol failure and after Close.
	Usable() bool
}

var _ ConnectionLike = (*Connection)(nil)

const readBufferSize = 16 * 1024

type connMode uint8

const (
	modeNormal connMode = iota
	modePubSub
)

// Connection is a single connection to a server.
type Connection struct {
	conn    net.Conn
	writer  *bufio.Writer
	decoder *resp.Decoder
	readBuf []byte
	logger  *slog.Logger

	db     int
	mode   connMode
	broken bool
	closed bool
}

// DialOption configures Dial.
type DialOption func(*dialOptions)

type dialOptions struct {
	dialer     *net.Dialer
	logger     *slog.Logger
	resp3      bool
	clientName string
}

// WithDialer sets the dialer used to open the transport.
func WithDialer(d *net.Dialer) DialOption {
	return func(o *dialOptions) { o.dialer = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// WithRESP3 negotiates protocol version 3 with HELLO during the handshake.
func WithRESP3() DialOption {
	return func(o *dialOptions) { o.resp3 = true }
}

// WithClientName sets the connection name with CLIENT SETNAME during the handshake.
func WithClientName(name string) DialOption {
	return func(o *dialOptions) { o.clientName = name }
}

func newDialOptions(opts []DialOption) dialOptions {
	o := dialOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dialer == nil {
		o.dialer = &net.Dialer{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Dial opens a connection and runs the handshake: HELLO or AUTH when
// credentials are set, CLIENT SETNAME, and SELECT when info.DB is not 0.
func Dial(ctx context.Context, info ConnectionInfo, opts ...DialOption) (*Connection, error) {
	o := newDialOptions(opts)

	netConn, err := o.dialer.DialContext(ctx, info.Network, info.Address)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Err: err}
	}

	c := newConnection(netConn, o.logger)
	if err := c.handshake(ctx, info, o); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// NewConnection wraps an established transport. No handshake is performed.
func NewConnection(netConn net.Conn, opts ...DialOption) *Connection {
	o := newDialOptions(opts)
	return newConnection(netConn, o.logger)
}

func newConnection(netConn net.Conn, logger *slog.Logger) *Connection {
	return &Connection{
		conn:    netConn,
		writer:  bufio.NewWriter(netConn),
		decoder: resp.NewDecoder(),
		readBuf: make([]byte, readBufferSize),
		logger:  logger,
	}
}

func (c *Connection) handshake(ctx context.Context, info ConnectionInfo, o dialOptions) error {
	var cmds []*Cmd

	switch {
	case o.resp3:
		hello := NewCmd("HELLO", 3)
		if info.Password != "" {
			user := info.Username
			if user == "" {
				user = "default"
			}
			hello.Arg("AUTH").Arg(user).Arg(info.Password)
		}
		cmds = append(cmds, hello)
	case info.Password != "" && info.Username != "":
		cmds = append(cmds, NewCmd("AUTH", info.Username, info.Password))
	case info.Password != "":
		cmds = append(cmds, NewCmd("AUTH", info.Password))
	}
	if o.clientName != "" {
		cmds = append(cmds, NewCmd("CLIENT", "SETNAME", o.clientName))
	}
	if info.DB != 0 {
		cmds = append(cmds, NewCmd("SELECT", info.DB))
	}
	if len(cmds) == 0 {
		return nil
	}

	replies, err := c.RequestMany(ctx, cmds)
	if err != nil {
		return err
	}
	for i, v := range replies {
		if v.IsError() {
			return fmt.Errorf("redis: handshake %s: %w", cmds[i].Name(), newServerError(v))
		}
	}

	c.NoteDatabaseIndex(info.DB)
	return nil
}

func (c *Connection) RequestOne(ctx context.Context, cmd *Cmd) (resp.Value, error) {
	if err := c.checkRequest(); err != nil {
		return resp.Value{}, err
	}
	if err := cmd.Err(); err != nil {
		return resp.Value{}, err
	}

	stop, err := c.watchContext(ctx)
	if err != nil {
		return resp.Value{}, err
	}
	defer stop()

	if err := c.write(ctx, cmd); err != nil {
		return resp.Value{}, err
	}
	if err := c.flush(ctx); err != nil {
		return resp.Value{}, err
	}

	v, err := c.read(ctx)
	if err != nil {
		return resp.Value{}, err
	}
	if v.IsError() {
		return resp.Value{}, newServerError(v)
	}
	return v, nil
}

func (c *Connection) RequestMany(ctx context.Context, cmds []*Cmd) ([]resp.Value, error) {
	if err := c.checkRequest(); err != nil {
		return nil, err
	}
	for _, cmd := range cmds {
		if err := cmd.Err(); err != nil {
			return nil, err
		}
	}
	if len(cmds) == 0 {
		return []resp.Value{}, nil
	}

	stop, err := c.watchContext(ctx)
	if err != nil {
		return nil, err
	}
	defer stop()

	for _, cmd := range cmds {
		if err := c.write(ctx, cmd); err != nil {
			return nil, err
		}
	}
	if err := c.flush(ctx); err != nil {
		return nil, err
	}

	replies := make([]resp.Value, len(cmds))
	for i := range replies {
		if replies[i], err = c.read(ctx); err != nil {
			return nil, err
		}
	}
	return replies, nil
}

func (c *Connection) NoteDatabaseIndex(db int) {
	c.db = db
}

func (c *Connection) DB() int {
	return c.db
}

func (c *Connection) Usable() bool {
	return !c.broken && !c.closed
}

// InPubSub reports whether the connection is in subscribe mode.
func (c *Connection) InPubSub() bool {
	return c.mode == modePubSub
}

// RemoteAddr returns the address of the server.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the transport.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Connection) checkRequest() error {
	if !c.Usable() {
		return ErrConnectionClosed
	}
	if c.mode == modePubSub {
		return ErrPubSubMode
	}
	return nil
}

// watchContext maps the context deadline to the transport deadline and
// interrupts blocked I/O when the context is canceled.
//
// stop waits for an interrupt that already started and clears the deadline
// it set, so it cannot leak into the next call.
func (c *Connection) watchContext(ctx context.Context) (stop func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline() // zero value clears any previous deadline
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, c.fail(ctx, "deadline", err)
	}

	if ctx.Done() == nil {
		return func() {}, nil
	}

	interrupted := make(chan struct{})
	stopInterrupt := context.AfterFunc(ctx, func() {
		defer close(interrupted)
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	return func() {
		if !stopInterrupt() {
			<-interrupted
			_ = c.conn.SetDeadline(time.Time{})
		}
	}, nil
}

func (c *Connection) write(ctx context.Context, cmd *Cmd) error {
	if err := resp.WriteCommand(c.writer, cmd.Args()); err != nil {
		return c.fail(ctx, "write", err)
	}
	return nil
}

func (c *Connection) flush(ctx context.Context) error {
	if err := c.writer.Flush(); err != nil {
		return c.fail(ctx, "write", err)
	}
	return nil
}

// read returns the next reply, reading from the transport until the
// decoder has a complete frame.
func (c *Connection) read(ctx context.Context) (resp.Value, error) {
	for {
		v, err := c.decoder.Decode()
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, resp.ErrIncomplete) {
			c.broken = true
			c.logger.Debug("redis: protocol error, closing connection", "addr", c.conn.RemoteAddr(), "error", err)
			return resp.Value{}, err
		}

		n, err := c.conn.Read(c.readBuf)
		if n > 0 {
			c.decoder.Feed(c.readBuf[:n])
			continue
		}
		if err != nil {
			return resp.Value{}, c.fail(ctx, "read", err)
		}
	}
}

// fail marks the connection broken and wraps a transport error.
func (c *Connection) fail(ctx context.Context, op string, err error) error {
	c.broken = true
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	c.logger.Debug("redis: connection error", "op", op, "addr", c.conn.RemoteAddr(), "error", err)
	if errors.Is(err, io.EOF) {
		err = fmt.Errorf("server closed the connection: %w", err)
	}
	return &ConnectionError{Op: op, Err: err}
}

// send writes commands without waiting for replies. Used in subscribe mode.
func (c *Connection) send(ctx context.Context, cmds ...*Cmd) error {
	if !c.Usable() {
		return ErrConnectionClosed
	}
	for _, cmd := range cmds {
		if err := cmd.Err(); err != nil {
			return err
		}
	}

	stop, err := c.watchContext(ctx)
	if err != nil {
		return err
	}
	defer stop()

	for _, cmd := range cmds {
		if err := c.write(ctx, cmd); err != nil {
			return err
		}
	}
	return c.flush(ctx)
}

// receive reads one frame. Used in subscribe mode.
func (c *Connection) receive(ctx context.Context) (resp.Value, error) {
	if !c.Usable() {
		return resp.Value{}, ErrConnectionClosed
	}

	stop, err := c.watchContext(ctx)
	if err != nil {
		return resp.Value{}, err
	}
	defer stop()

	return c.read(ctx)
}
