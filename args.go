package redis

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/pior/redis/resp"
)

// Argument is implemented by types that know how to encode themselves as
// zero or more command arguments.
type Argument interface {
	AppendArgs(dst [][]byte) [][]byte
}

// ArgumentError reports a command argument of an unsupported type.
// Nothing was sent: the connection remains usable.
type ArgumentError struct {
	Index int    // Position of the argument in the command
	Type  string // Go type of the argument
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("redis: unsupported argument type %s at position %d", e.Type, e.Index)
}

// ShouldCloseConnection returns false - the command was never written.
func (e *ArgumentError) ShouldCloseConnection() bool {
	return false
}

// appendArg encodes v into dst.
//
// Built-in types are handled by the type switch below; any other type must
// implement Argument. ok is false for unsupported types.
func appendArg(dst [][]byte, v any) (_ [][]byte, ok bool) {
	switch v := v.(type) {
	case Argument:
		return v.AppendArgs(dst), true
	case string:
		return append(dst, []byte(v)), true
	case []byte:
		return append(dst, v), true
	case int:
		return append(dst, strconv.AppendInt(nil, int64(v), 10)), true
	case int8:
		return append(dst, strconv.AppendInt(nil, int64(v), 10)), true
	case int16:
		return append(dst, strconv.AppendInt(nil, int64(v), 10)), true
	case int32:
		return append(dst, strconv.AppendInt(nil, int64(v), 10)), true
	case int64:
		return append(dst, strconv.AppendInt(nil, v, 10)), true
	case uint:
		return append(dst, strconv.AppendUint(nil, uint64(v), 10)), true
	case uint8:
		return append(dst, strconv.AppendUint(nil, uint64(v), 10)), true
	case uint16:
		return append(dst, strconv.AppendUint(nil, uint64(v), 10)), true
	case uint32:
		return append(dst, strconv.AppendUint(nil, uint64(v), 10)), true
	case uint64:
		return append(dst, strconv.AppendUint(nil, v, 10)), true
	case float32:
		return append(dst, strconv.AppendFloat(nil, float64(v), 'g', -1, 32)), true
	case float64:
		return append(dst, strconv.AppendFloat(nil, v, 'g', -1, 64)), true
	case bool:
		if v {
			return append(dst, []byte("1")), true
		}
		return append(dst, []byte("0")), true
	case resp.Value:
		return appendValueArg(dst, v)

	// Sequences expand into one argument per element.
	case []string:
		for _, s := range v {
			dst = append(dst, []byte(s))
		}
		return dst, true
	case [][]byte:
		return append(dst, v...), true
	case []int:
		for _, n := range v {
			dst = append(dst, strconv.AppendInt(nil, int64(n), 10))
		}
		return dst, true
	case []int64:
		for _, n := range v {
			dst = append(dst, strconv.AppendInt(nil, n, 10))
		}
		return dst, true
	case []float64:
		for _, f := range v {
			dst = append(dst, strconv.AppendFloat(nil, f, 'g', -1, 64))
		}
		return dst, true
	case []any:
		for _, e := range v {
			if dst, ok = appendArg(dst, e); !ok {
				return dst, false
			}
		}
		return dst, true
	case map[string]string:
		// Sorted so the command is deterministic.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			dst = append(dst, []byte(k), []byte(v[k]))
		}
		return dst, true
	}
	return dst, false
}

func appendValueArg(dst [][]byte, v resp.Value) ([][]byte, bool) {
	switch v.Kind {
	case resp.KindBulkString, resp.KindSimpleString, resp.KindBigNumber:
		return append(dst, v.Str), true
	case resp.KindInteger, resp.KindDouble, resp.KindBoolean:
		return append(dst, []byte(v.Text())), true
	case resp.KindArray, resp.KindSet:
		for _, e := range v.Elems {
			var ok bool
			if dst, ok = appendValueArg(dst, e); !ok {
				return dst, false
			}
		}
		return dst, true
	}
	return dst, false
}
