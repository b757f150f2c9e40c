package redis

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/pior/redis/resp"
)

// ValueScanner is implemented by types that can populate themselves from a reply.
type ValueScanner interface {
	ScanValue(v resp.Value) error
}

// As converts v to T. See Convert for the supported types.
func As[T any](v resp.Value) (T, error) {
	var out T
	err := Convert(v, &out)
	return out, err
}

// Convert stores the reply v into the value pointed to by dst.
//
// Supported destinations:
//   - ValueScanner
//   - *resp.Value, *[]resp.Value, *any
//   - *string, *[]byte: string-like and numeric replies
//   - signed and unsigned integers, *float32, *float64: numeric replies and numeric text
//   - *bool: booleans, integers (non-zero is true), "OK" and boolean text
//   - pointers to pointers: a Nil reply stores nil
//   - slices of any supported type: arrays, sets and pushes; a Nil reply stores nil
//   - maps with string keys: maps and arrays of alternating keys and values
//
// A Nil reply into a non-nillable destination and an aggregate into a scalar
// fail with *TypeMismatchError. An error reply is returned as *ServerError.
//
// Byte slices are not copied: the returned []byte shares memory with v.
func Convert(v resp.Value, dst any) error {
	if v.Kind == resp.KindError {
		return newServerError(v)
	}

	switch d := dst.(type) {
	case ValueScanner:
		return d.ScanValue(v)

	case *resp.Value:
		*d = v
		return nil

	case *[]resp.Value:
		if v.IsNil() {
			*d = nil
			return nil
		}
		if !v.IsAggregate() {
			return typeMismatch(v, *d, "")
		}
		*d = v.Elems
		return nil

	case *any:
		*d = toAny(v)
		return nil

	case *string:
		s, err := toText(v, *d)
		if err != nil {
			return err
		}
		*d = s
		return nil

	case *[]byte:
		switch v.Kind {
		case resp.KindBulkString, resp.KindSimpleString, resp.KindBigNumber:
			*d = v.Str
			return nil
		case resp.KindInteger, resp.KindDouble:
			*d = []byte(v.Text())
			return nil
		}
		return typeMismatch(v, *d, "")

	case *int:
		n, err := toInt(v, *d, strconv.IntSize)
		*d = int(n)
		return err
	case *int8:
		n, err := toInt(v, *d, 8)
		*d = int8(n)
		return err
	case *int16:
		n, err := toInt(v, *d, 16)
		*d = int16(n)
		return err
	case *int32:
		n, err := toInt(v, *d, 32)
		*d = int32(n)
		return err
	case *int64:
		n, err := toInt(v, *d, 64)
		*d = n
		return err
	case *uint:
		n, err := toUint(v, *d, strconv.IntSize)
		*d = uint(n)
		return err
	case *uint8:
		n, err := toUint(v, *d, 8)
		*d = uint8(n)
		return err
	case *uint16:
		n, err := toUint(v, *d, 16)
		*d = uint16(n)
		return err
	case *uint32:
		n, err := toUint(v, *d, 32)
		*d = uint32(n)
		return err
	case *uint64:
		n, err := toUint(v, *d, 64)
		*d = n
		return err

	case *float64:
		f, err := toFloat(v, *d)
		*d = f
		return err
	case *float32:
		f, err := toFloat(v, *d)
		*d = float32(f)
		return err

	case *bool:
		b, err := toBool(v)
		*d = b
		return err

	case *[]string:
		if v.IsNil() {
			*d = nil
			return nil
		}
		out := make([]string, len(v.Elems))
		if err := eachElem(v, *d, func(i int, e resp.Value) (err error) {
			out[i], err = toText(e, out[i])
			return err
		}); err != nil {
			return err
		}
		*d = out
		return nil

	case *[]int64:
		if v.IsNil() {
			*d = nil
			return nil
		}
		out := make([]int64, len(v.Elems))
		if err := eachElem(v, *d, func(i int, e resp.Value) (err error) {
			out[i], err = toInt(e, out[i], 64)
			return err
		}); err != nil {
			return err
		}
		*d = out
		return nil

	case *[][]byte:
		if v.IsNil() {
			*d = nil
			return nil
		}
		out := make([][]byte, len(v.Elems))
		if err := eachElem(v, *d, func(i int, e resp.Value) error {
			return Convert(e, &out[i])
		}); err != nil {
			return err
		}
		*d = out
		return nil

	case *map[string]string:
		if v.IsNil() {
			*d = nil
			return nil
		}
		if !isPairs(v) {
			return typeMismatch(v, *d, "")
		}
		out := make(map[string]string, len(v.Elems)/2)
		var err error
		v.Pairs(func(key, val resp.Value) bool {
			var k, s string
			if k, err = toText(key, k); err != nil {
				return false
			}
			if s, err = toText(val, s); err != nil {
				return false
			}
			out[k] = s
			return true
		})
		if err != nil {
			return err
		}
		*d = out
		return nil
	}

	return convertReflect(v, dst)
}

// convertReflect handles pointers, slices and maps of arbitrary element types.
func convertReflect(v resp.Value, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &TypeMismatchError{Kind: v.Kind, Target: fmt.Sprintf("%T", dst), Detail: "destination must be a non-nil pointer"}
	}
	elem := rv.Elem()
	target := elem.Type()

	switch target.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			elem.SetZero()
			return nil
		}
		n := reflect.New(target.Elem())
		if err := Convert(v, n.Interface()); err != nil {
			return err
		}
		elem.Set(n)
		return nil

	case reflect.Slice:
		if v.IsNil() {
			elem.SetZero()
			return nil
		}
		if !v.IsAggregate() {
			return &TypeMismatchError{Kind: v.Kind, Target: target.String()}
		}
		out := reflect.MakeSlice(target, len(v.Elems), len(v.Elems))
		for i, e := range v.Elems {
			if err := Convert(e, out.Index(i).Addr().Interface()); err != nil {
				return fmt.Errorf("redis: element %d: %w", i, err)
			}
		}
		elem.Set(out)
		return nil

	case reflect.Map:
		if v.IsNil() {
			elem.SetZero()
			return nil
		}
		if target.Key().Kind() != reflect.String || !isPairs(v) {
			return &TypeMismatchError{Kind: v.Kind, Target: target.String()}
		}
		out := reflect.MakeMapWithSize(target, len(v.Elems)/2)
		for i := 0; i+1 < len(v.Elems); i += 2 {
			k := reflect.New(target.Key())
			if err := Convert(v.Elems[i], k.Interface()); err != nil {
				return fmt.Errorf("redis: key %d: %w", i/2, err)
			}
			val := reflect.New(target.Elem())
			if err := Convert(v.Elems[i+1], val.Interface()); err != nil {
				return fmt.Errorf("redis: value %d: %w", i/2, err)
			}
			out.SetMapIndex(k.Elem(), val.Elem())
		}
		elem.Set(out)
		return nil
	}

	return &TypeMismatchError{Kind: v.Kind, Target: target.String(), Detail: "unsupported destination type"}
}

func eachElem(v resp.Value, target any, fn func(i int, e resp.Value) error) error {
	if !v.IsAggregate() {
		return typeMismatch(v, target, "")
	}
	for i, e := range v.Elems {
		if err := fn(i, e); err != nil {
			return fmt.Errorf("redis: element %d: %w", i, err)
		}
	}
	return nil
}

// isPairs reports whether v can be read as key/value pairs.
func isPairs(v resp.Value) bool {
	switch v.Kind {
	case resp.KindMap:
		return true
	case resp.KindArray, resp.KindSet, resp.KindPush:
		return len(v.Elems)%2 == 0
	}
	return false
}

func toText(v resp.Value, target any) (string, error) {
	switch v.Kind {
	case resp.KindError:
		return "", newServerError(v)
	case resp.KindBulkString, resp.KindSimpleString, resp.KindBigNumber, resp.KindInteger, resp.KindDouble:
		return v.Text(), nil
	}
	return "", typeMismatch(v, target, "")
}

func toInt(v resp.Value, target any, bits int) (int64, error) {
	switch v.Kind {
	case resp.KindError:
		return 0, newServerError(v)
	case resp.KindInteger:
		n := v.Int
		if bits < 64 && (n < -1<<(bits-1) || n > 1<<(bits-1)-1) {
			return 0, typeMismatch(v, target, "value out of range")
		}
		return n, nil
	case resp.KindBulkString, resp.KindSimpleString, resp.KindBigNumber:
		n, err := strconv.ParseInt(string(v.Str), 10, bits)
		if err != nil {
			return 0, typeMismatch(v, target, err.Error())
		}
		return n, nil
	case resp.KindDouble:
		if v.Float != math.Trunc(v.Float) || math.IsInf(v.Float, 0) {
			return 0, typeMismatch(v, target, "not an integral value")
		}
		// float64(math.MaxInt64) rounds up to 2^63
		if v.Float < math.MinInt64 || v.Float >= math.MaxInt64 {
			return 0, typeMismatch(v, target, "value out of range")
		}
		n := int64(v.Float)
		if bits < 64 && (n < -1<<(bits-1) || n > 1<<(bits-1)-1) {
			return 0, typeMismatch(v, target, "value out of range")
		}
		return n, nil
	}
	return 0, typeMismatch(v, target, "")
}

func toUint(v resp.Value, target any, bits int) (uint64, error) {
	switch v.Kind {
	case resp.KindError:
		return 0, newServerError(v)
	case resp.KindInteger:
		if v.Int < 0 || (bits < 64 && uint64(v.Int) > 1<<bits-1) {
			return 0, typeMismatch(v, target, "value out of range")
		}
		return uint64(v.Int), nil
	case resp.KindBulkString, resp.KindSimpleString, resp.KindBigNumber:
		n, err := strconv.ParseUint(string(v.Str), 10, bits)
		if err != nil {
			return 0, typeMismatch(v, target, err.Error())
		}
		return n, nil
	}
	return 0, typeMismatch(v, target, "")
}

func toFloat(v resp.Value, target any) (float64, error) {
	switch v.Kind {
	case resp.KindError:
		return 0, newServerError(v)
	case resp.KindDouble:
		return v.Float, nil
	case resp.KindInteger:
		return float64(v.Int), nil
	case resp.KindBulkString, resp.KindSimpleString, resp.KindBigNumber:
		f, err := strconv.ParseFloat(string(v.Str), 64)
		if err != nil {
			return 0, typeMismatch(v, target, err.Error())
		}
		return f, nil
	}
	return 0, typeMismatch(v, target, "")
}

func toBool(v resp.Value) (bool, error) {
	switch v.Kind {
	case resp.KindError:
		return false, newServerError(v)
	case resp.KindBoolean:
		return v.Bool, nil
	case resp.KindInteger:
		return v.Int != 0, nil
	case resp.KindSimpleString, resp.KindBulkString:
		if string(v.Str) == "OK" {
			return true, nil
		}
		b, err := strconv.ParseBool(string(v.Str))
		if err != nil {
			return false, typeMismatch(v, false, err.Error())
		}
		return b, nil
	}
	return false, typeMismatch(v, false, "")
}

// toAny maps a reply to plain Go values: nil, int64, float64, bool, string
// (simple strings and big numbers), []byte (bulk strings), []any and
// map[string]any.
func toAny(v resp.Value) any {
	switch v.Kind {
	case resp.KindNil:
		return nil
	case resp.KindInteger:
		return v.Int
	case resp.KindDouble:
		return v.Float
	case resp.KindBoolean:
		return v.Bool
	case resp.KindBulkString:
		return v.Str
	case resp.KindSimpleString, resp.KindBigNumber:
		return string(v.Str)
	case resp.KindError:
		return newServerError(v)
	case resp.KindMap:
		m := make(map[string]any, v.Len())
		v.Pairs(func(key, val resp.Value) bool {
			m[key.Text()] = toAny(val)
			return true
		})
		return m
	}
	out := make([]any, len(v.Elems))
	for i, e := range v.Elems {
		out[i] = toAny(e)
	}
	return out
}
