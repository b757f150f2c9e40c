package resp

import (
	"bytes"
	"strconv"
	"strings"
)

// Value is a decoded reply frame.
//
// Only the fields relevant to Kind are populated:
//   - KindInteger: Int
//   - KindBoolean: Bool
//   - KindDouble: Float
//   - KindBulkString, KindSimpleString, KindError, KindBigNumber: Str
//   - KindArray, KindSet, KindPush: Elems
//   - KindMap: Elems, as flattened key/value pairs in wire order
//
// Values are treated as immutable once constructed.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bool  bool
	Str   []byte
	Elems []Value
}

// Nil is the missing-reply value ($-1, *-1 or _).
var Nil = Value{Kind: KindNil}

func Int(n int64) Value {
	return Value{Kind: KindInteger, Int: n}
}

func Bulk(b []byte) Value {
	return Value{Kind: KindBulkString, Str: cloneBytes(b)}
}

func BulkString(s string) Value {
	return Value{Kind: KindBulkString, Str: []byte(s)}
}

func Simple(s string) Value {
	return Value{Kind: KindSimpleString, Str: []byte(s)}
}

// Err builds an error reply. msg is the full line, e.g. "WRONGTYPE Operation against a key".
func Err(msg string) Value {
	return Value{Kind: KindError, Str: []byte(msg)}
}

func Bool(b bool) Value {
	return Value{Kind: KindBoolean, Bool: b}
}

func Double(f float64) Value {
	return Value{Kind: KindDouble, Float: f}
}

func BigNumber(digits string) Value {
	return Value{Kind: KindBigNumber, Str: []byte(digits)}
}

func ArrayOf(elems ...Value) Value {
	return aggregate(KindArray, elems)
}

func SetOf(elems ...Value) Value {
	return aggregate(KindSet, elems)
}

func PushOf(elems ...Value) Value {
	return aggregate(KindPush, elems)
}

// MapOf builds a map from alternating keys and values.
func MapOf(kv ...Value) Value {
	if len(kv)%2 != 0 {
		panic("resp: MapOf requires an even number of values")
	}
	return aggregate(KindMap, kv)
}

func aggregate(kind Kind, elems []Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{Kind: kind, Elems: elems}
}

func (v Value) IsNil() bool {
	return v.Kind == KindNil
}

func (v Value) IsError() bool {
	return v.Kind == KindError
}

// IsAggregate reports whether v carries child values.
func (v Value) IsAggregate() bool {
	switch v.Kind {
	case KindArray, KindSet, KindPush, KindMap:
		return true
	}
	return false
}

// Len returns the number of elements of an aggregate (pairs for a map).
func (v Value) Len() int {
	if v.Kind == KindMap {
		return len(v.Elems) / 2
	}
	return len(v.Elems)
}

// Pairs calls fn for each key/value pair of a map, or for consecutive
// elements of an array (servers speaking RESP2 return maps that way).
func (v Value) Pairs(fn func(key, val Value) bool) {
	for i := 0; i+1 < len(v.Elems); i += 2 {
		if !fn(v.Elems[i], v.Elems[i+1]) {
			return
		}
	}
}

// Code returns the error code of an error reply: its first word.
func (v Value) Code() string {
	if v.Kind != KindError {
		return ""
	}
	code, _, _ := strings.Cut(string(v.Str), " ")
	return code
}

// Message returns the error text following the code.
func (v Value) Message() string {
	if v.Kind != KindError {
		return ""
	}
	_, msg, _ := strings.Cut(string(v.Str), " ")
	return msg
}

// Text returns the textual content of a string-like value.
func (v Value) Text() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindDouble:
		return formatDouble(v.Float)
	case KindBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return string(v.Str)
}

// Equal reports whether v and o are the same reply.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindInteger:
		return v.Int == o.Int
	case KindBoolean:
		return v.Bool == o.Bool
	case KindDouble:
		return v.Float == o.Float
	case KindArray, KindSet, KindPush, KindMap:
		if len(v.Elems) != len(o.Elems) {
			return false
		}
		for i := range v.Elems {
			if !v.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return bytes.Equal(v.Str, o.Str)
	}
}

func (v Value) String() string {
	var b strings.Builder
	v.format(&b)
	return b.String()
}

func (v Value) format(b *strings.Builder) {
	switch v.Kind {
	case KindNil:
		b.WriteString("nil")
	case KindBulkString, KindSimpleString:
		b.WriteString(strconv.Quote(string(v.Str)))
	case KindError:
		b.WriteString("(error) ")
		b.Write(v.Str)
	case KindArray, KindSet, KindPush, KindMap:
		b.WriteString(v.Kind.String())
		b.WriteByte('[')
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteByte(' ')
			}
			e.format(b)
		}
		b.WriteByte(']')
	default:
		b.WriteString(v.Text())
	}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
