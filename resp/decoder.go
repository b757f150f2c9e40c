package resp

import (
	"bytes"
	"math"
	"strconv"
)

// Decoder parses replies out of a byte stream that arrives in arbitrary
// pieces. It never reads from a transport itself: the caller feeds bytes and
// calls Decode until it stops returning ErrIncomplete.
//
//	dec.Feed(p[:n])
//	for {
//	    v, err := dec.Decode()
//	    if err == resp.ErrIncomplete {
//	        break // read more
//	    }
//	    ...
//	}
//
// Aggregates are parsed incrementally: children already decoded are kept on
// an internal stack across calls, so a nested reply never has to be buffered
// whole before parsing starts.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf   []byte
	pos   int
	stack []frame
}

// frame is an aggregate waiting for more children.
type frame struct {
	kind  Kind
	attr  bool // attribute map, discarded once complete
	want  int  // total children expected (keys and values for maps)
	elems []Value
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends p to the internal buffer. p may be reused by the caller.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered returns the number of fed bytes not consumed yet.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.pos
}

// Pending reports whether a reply is partially decoded or bytes are waiting.
func (d *Decoder) Pending() bool {
	return len(d.stack) > 0 || d.Buffered() > 0
}

// Reset discards all buffered bytes and partial state.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.pos = 0
	d.stack = d.stack[:0]
}

// Decode returns the next complete reply.
//
// Returns ErrIncomplete when more bytes are needed, or a *ProtocolError on
// malformed input. After a ProtocolError the Decoder must be discarded.
func (d *Decoder) Decode() (Value, error) {
	for {
		v, fr, err := d.next()
		if err != nil {
			d.compact()
			return Value{}, err
		}
		if fr != nil {
			d.stack = append(d.stack, *fr)
			continue
		}

		if v, done := d.fold(v); done {
			d.compact()
			return v, nil
		}
	}
}

// fold attaches a complete value to the innermost open aggregate, closing
// every aggregate it completes. Returns done=true with the top-level value
// once nothing is left open.
func (d *Decoder) fold(v Value) (Value, bool) {
	for len(d.stack) > 0 {
		top := &d.stack[len(d.stack)-1]
		top.elems = append(top.elems, v)
		if len(top.elems) < top.want {
			return Value{}, false
		}

		closed := d.stack[len(d.stack)-1]
		d.stack = d.stack[:len(d.stack)-1]
		if closed.attr {
			// Attributes annotate the reply that follows; they are not a reply.
			return Value{}, false
		}
		v = Value{Kind: closed.kind, Elems: closed.elems}
	}
	return v, true
}

// next parses one scalar or aggregate header at the cursor.
// An aggregate header with at least one child is returned as a frame.
func (d *Decoder) next() (Value, *frame, error) {
	line, end, err := d.line()
	if err != nil {
		return Value{}, nil, err
	}
	marker, body := line[0], line[1:]

	switch marker {
	case TypeSimpleString:
		d.pos = end
		return Value{Kind: KindSimpleString, Str: cloneBytes(body)}, nil, nil

	case TypeError:
		d.pos = end
		return Value{Kind: KindError, Str: cloneBytes(body)}, nil, nil

	case TypeInteger:
		n, err := parseInt(body)
		if err != nil {
			return Value{}, nil, protocolErrorf("invalid integer", err)
		}
		d.pos = end
		return Int(n), nil, nil

	case TypeBulkString, TypeBlobError, TypeVerbatimString:
		return d.blob(marker, body, end)

	case TypeArray, TypeSet, TypePush, TypeMap, TypeAttribute:
		return d.aggregateHeader(marker, body, end)

	case TypeNull:
		if len(body) != 0 {
			return Value{}, nil, protocolErrorf("invalid null", nil)
		}
		d.pos = end
		return Nil, nil, nil

	case TypeBoolean:
		if len(body) != 1 || (body[0] != 't' && body[0] != 'f') {
			return Value{}, nil, protocolErrorf("invalid boolean", nil)
		}
		d.pos = end
		return Bool(body[0] == 't'), nil, nil

	case TypeDouble:
		f, err := parseDouble(body)
		if err != nil {
			return Value{}, nil, protocolErrorf("invalid double", err)
		}
		d.pos = end
		return Double(f), nil, nil

	case TypeBigNumber:
		if !isBigNumber(body) {
			return Value{}, nil, protocolErrorf("invalid big number", nil)
		}
		d.pos = end
		return Value{Kind: KindBigNumber, Str: cloneBytes(body)}, nil, nil
	}

	return Value{}, nil, protocolErrorf("unexpected type byte "+strconv.QuoteRune(rune(marker)), nil)
}

// line returns the header line at the cursor without its CRLF, and the
// offset just past the CRLF. The cursor is not moved.
func (d *Decoder) line() ([]byte, int, error) {
	rest := d.buf[d.pos:]
	idx := bytes.IndexByte(rest, '\n')
	if idx < 0 {
		if len(rest) > MaxLineLen {
			return nil, 0, protocolErrorf("line exceeds limit", nil)
		}
		return nil, 0, ErrIncomplete
	}
	if idx > MaxLineLen {
		return nil, 0, protocolErrorf("line exceeds limit", nil)
	}
	if idx == 0 || rest[idx-1] != '\r' {
		return nil, 0, protocolErrorf("missing CR before LF", nil)
	}
	if idx == 1 {
		return nil, 0, protocolErrorf("empty line", nil)
	}
	return rest[:idx-1], d.pos + idx + 1, nil
}

func (d *Decoder) blob(marker byte, body []byte, end int) (Value, *frame, error) {
	n, err := parseInt(body)
	if err != nil {
		return Value{}, nil, protocolErrorf("invalid length", err)
	}
	if n == -1 && marker == TypeBulkString {
		d.pos = end
		return Nil, nil, nil
	}
	if n < 0 {
		return Value{}, nil, protocolErrorf("negative length", nil)
	}
	if n > MaxBulkLen {
		return Value{}, nil, protocolErrorf("bulk length exceeds limit", nil)
	}

	size := int(n)
	if len(d.buf)-end < size+2 {
		return Value{}, nil, ErrIncomplete
	}
	payload := d.buf[end : end+size]
	if d.buf[end+size] != '\r' || d.buf[end+size+1] != '\n' {
		return Value{}, nil, protocolErrorf("invalid bulk terminator", nil)
	}
	d.pos = end + size + 2

	switch marker {
	case TypeBlobError:
		return Value{Kind: KindError, Str: cloneBytes(payload)}, nil, nil
	case TypeVerbatimString:
		// "txt:" or "mkd:" format prefix
		if size < 4 || payload[3] != ':' {
			return Value{}, nil, protocolErrorf("invalid verbatim string", nil)
		}
		return Value{Kind: KindBulkString, Str: cloneBytes(payload[4:])}, nil, nil
	}
	return Value{Kind: KindBulkString, Str: cloneBytes(payload)}, nil, nil
}

func (d *Decoder) aggregateHeader(marker byte, body []byte, end int) (Value, *frame, error) {
	n, err := parseInt(body)
	if err != nil {
		return Value{}, nil, protocolErrorf("invalid element count", err)
	}
	if n == -1 && (marker == TypeArray || marker == TypePush) {
		d.pos = end
		return Nil, nil, nil
	}
	if n < 0 {
		return Value{}, nil, protocolErrorf("negative element count", nil)
	}
	if n > MaxAggregateLen {
		return Value{}, nil, protocolErrorf("element count exceeds limit", nil)
	}

	want := int(n)
	fr := &frame{}
	switch marker {
	case TypeArray:
		fr.kind = KindArray
	case TypeSet:
		fr.kind = KindSet
	case TypePush:
		fr.kind = KindPush
	case TypeMap:
		fr.kind = KindMap
		want *= 2
	case TypeAttribute:
		fr.kind = KindMap
		fr.attr = true
		want *= 2
	}
	d.pos = end

	if want == 0 {
		if fr.attr {
			// Empty attribute: nothing to skip, decode the next frame.
			return d.next()
		}
		return Value{Kind: fr.kind, Elems: []Value{}}, nil, nil
	}

	fr.want = want
	fr.elems = make([]Value, 0, min(want, preallocLimit))
	return Value{}, fr, nil
}

// compact drops consumed bytes so the buffer does not grow unbounded.
// Decoded values never alias the buffer, so moving bytes is safe.
func (d *Decoder) compact() {
	switch {
	case d.pos == len(d.buf):
		d.buf = d.buf[:0]
		d.pos = 0
	case d.pos > 0 && d.pos >= len(d.buf)/2:
		n := copy(d.buf, d.buf[d.pos:])
		d.buf = d.buf[:n]
		d.pos = 0
	}
}

func parseInt(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(string(b), 10, 64)
}

func parseDouble(b []byte) (float64, error) {
	switch string(b) {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan", "-nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(string(b), 64)
}

func isBigNumber(b []byte) bool {
	if len(b) > 0 && (b[0] == '-' || b[0] == '+') {
		b = b[1:]
	}
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
