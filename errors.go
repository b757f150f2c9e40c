package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/pior/redis/resp"
)

var (
	// ErrConnectionClosed is returned when using a connection after Close or
	// after a fatal error.
	ErrConnectionClosed = errors.New("redis: connection closed")

	// ErrPubSubMode is returned when a request/reply command is issued on a
	// connection that is in subscribe mode.
	ErrPubSubMode = errors.New("redis: connection is in pubsub mode")

	// ErrTxAborted is returned by an atomic pipeline when EXEC replies nil:
	// a watched key changed and the server discarded the transaction.
	// Transaction consumes it and retries.
	ErrTxAborted = errors.New("redis: transaction aborted")
)

// ServerError is an error reply sent by the server.
// The connection remains usable.
type ServerError struct {
	Code    string // First word of the reply: ERR, WRONGTYPE, EXECABORT...
	Message string
}

func newServerError(v resp.Value) *ServerError {
	return &ServerError{Code: v.Code(), Message: v.Message()}
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return "redis: " + e.Code
	}
	return "redis: " + e.Code + " " + e.Message
}

// ShouldCloseConnection returns false - server errors are data.
func (e *ServerError) ShouldCloseConnection() bool {
	return false
}

// TypeMismatchError reports a reply that can't be converted to the requested type.
// The connection remains usable.
type TypeMismatchError struct {
	Kind   resp.Kind // Shape of the received reply
	Target string    // Requested Go type
	Detail string
}

func typeMismatch(v resp.Value, target any, detail string) *TypeMismatchError {
	return &TypeMismatchError{Kind: v.Kind, Target: fmt.Sprintf("%T", target), Detail: detail}
}

func (e *TypeMismatchError) Error() string {
	msg := "redis: cannot convert " + e.Kind.String() + " reply to " + e.Target
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// ShouldCloseConnection returns false - conversion happens after the reply was fully read.
func (e *TypeMismatchError) ShouldCloseConnection() bool {
	return false
}

// ConnectionError wraps transport failures.
// The connection is broken and must be discarded.
type ConnectionError struct {
	Op  string // Operation that failed (dial, write, read...)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("redis: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by errors that tell whether the
// connection they happened on can be reused.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
//
// Returns true for ConnectionError and resp.ProtocolError, false for
// ServerError, TypeMismatchError, ArgumentError, ErrTxAborted and nil.
// A context error that interrupted I/O is wrapped in a ConnectionError;
// a bare one was returned before anything was sent.
// Unknown errors are treated conservatively and return true.
func ShouldCloseConnection(err error) bool {
	if err == nil || errors.Is(err, ErrTxAborted) || errors.Is(err, ErrPubSubMode) {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return true
}

// IsServerError reports whether err is an error reply with the given code.
// An empty code matches any error reply.
func IsServerError(err error, code string) bool {
	var se *ServerError
	if !errors.As(err, &se) {
		return false
	}
	return code == "" || se.Code == code
}
