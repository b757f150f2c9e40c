package resp

import "errors"

// ErrIncomplete is returned by Decoder.Decode when the buffered bytes do not
// yet hold a complete reply. Feed more bytes and call Decode again.
var ErrIncomplete = errors.New("resp: incomplete frame")

// ProtocolError reports malformed framing.
//
// The decoder state is undefined after a ProtocolError: the connection the
// bytes came from must be closed.
type ProtocolError struct {
	Message string
	Err     error // Underlying error, if any
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return "resp: protocol error: " + e.Message + ": " + e.Err.Error()
	}
	return "resp: protocol error: " + e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - framing can't be resynchronized.
func (e *ProtocolError) ShouldCloseConnection() bool {
	return true
}

func protocolErrorf(msg string, err error) *ProtocolError {
	return &ProtocolError{Message: msg, Err: err}
}
