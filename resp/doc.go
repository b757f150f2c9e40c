// Package resp implements the RESP wire protocol (RESP2 and the RESP3
// extensions) used by Redis-compatible servers.
//
// The package is transport agnostic: it encodes into byte slices or writers
// and decodes from bytes handed to it, so it can be tested with in-memory
// slices and reused by any connection implementation.
//
// # Encoding
//
// Every command is an array of bulk strings:
//
//	buf := resp.AppendCommand(nil, [][]byte{[]byte("SET"), []byte("k"), []byte("v")})
//	// *3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n
//
// A pipeline is the concatenation of several command frames; there is no
// wrapping frame on the wire.
//
// # Decoding
//
// Decoder is a streaming state machine. It returns ErrIncomplete instead of
// blocking when a reply is not fully buffered:
//
//	dec := resp.NewDecoder()
//	for {
//	    v, err := dec.Decode()
//	    if err == resp.ErrIncomplete {
//	        n, rerr := conn.Read(buf)
//	        if rerr != nil {
//	            return rerr
//	        }
//	        dec.Feed(buf[:n])
//	        continue
//	    }
//	    if err != nil {
//	        return err // *ProtocolError: close the connection
//	    }
//	    handle(v)
//	}
//
// # Values
//
// Replies decode into Value, a tagged struct covering nil, integers, bulk and
// simple strings, errors, arrays and the RESP3 kinds (boolean, double, big
// number, map, set, push). A null bulk string ($-1), a null array (*-1) and
// the RESP3 null (_) all decode to Nil; an empty array (*0) does not.
//
// # Error Handling
//
// Malformed framing yields a *ProtocolError. It is fatal: the byte stream
// cannot be resynchronized and the connection must be closed. Error replies
// sent by the server are not Go errors here; they decode to a Value of
// KindError and it is up to the caller to surface them.
package resp
