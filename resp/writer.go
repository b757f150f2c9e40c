package resp

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"strconv"
	"sync"
)

// Buffer pool for encoding commands to non-buffered writers
var bufferPool = sync.Pool{
	New: func() any {
		// Typical command is a few dozen bytes
		return bytes.NewBuffer(make([]byte, 0, 256))
	},
}

// maxPooledBuffer keeps oversized buffers (large SET payloads) out of the pool.
const maxPooledBuffer = 64 * 1024

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// AppendCommand appends the wire encoding of one command to dst.
// Format: *<argc>\r\n then $<len>\r\n<bytes>\r\n per argument.
// Arguments are binary safe and written verbatim.
func AppendCommand(dst []byte, args [][]byte) []byte {
	dst = appendHeader(dst, TypeArray, int64(len(args)))
	for _, arg := range args {
		dst = appendHeader(dst, TypeBulkString, int64(len(arg)))
		dst = append(dst, arg...)
		dst = append(dst, CRLF...)
	}
	return dst
}

// WriteCommand writes one command frame to w.
//
// A *bufio.Writer is written to directly and is NOT flushed: callers batch
// several commands and flush once. Other writers receive a single Write.
func WriteCommand(w io.Writer, args [][]byte) error {
	if bw, ok := w.(*bufio.Writer); ok {
		return writeCommandBuffered(bw, args)
	}

	buf := getBuffer()
	defer putBuffer(buf)

	buf.Write(AppendCommand(buf.AvailableBuffer(), args))
	_, err := w.Write(buf.Bytes())
	return err
}

func writeCommandBuffered(bw *bufio.Writer, args [][]byte) error {
	var scratch [24]byte

	bw.Write(appendHeader(scratch[:0], TypeArray, int64(len(args))))
	for _, arg := range args {
		bw.Write(appendHeader(scratch[:0], TypeBulkString, int64(len(arg))))
		bw.Write(arg)
		if _, err := bw.WriteString(CRLF); err != nil {
			return err
		}
	}
	return nil
}

// AppendValue appends the reply encoding of v to dst.
// Nil is written in its RESP2 form ($-1).
func AppendValue(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindNil:
		return append(dst, "$-1\r\n"...)
	case KindInteger:
		return appendHeader(dst, TypeInteger, v.Int)
	case KindBulkString:
		dst = appendHeader(dst, TypeBulkString, int64(len(v.Str)))
		dst = append(dst, v.Str...)
		return append(dst, CRLF...)
	case KindSimpleString:
		return appendLine(dst, TypeSimpleString, v.Str)
	case KindError:
		return appendLine(dst, TypeError, v.Str)
	case KindBoolean:
		if v.Bool {
			return append(dst, "#t\r\n"...)
		}
		return append(dst, "#f\r\n"...)
	case KindDouble:
		return appendLine(dst, TypeDouble, []byte(formatDouble(v.Float)))
	case KindBigNumber:
		return appendLine(dst, TypeBigNumber, v.Str)
	case KindArray:
		return appendAggregate(dst, TypeArray, len(v.Elems), v.Elems)
	case KindSet:
		return appendAggregate(dst, TypeSet, len(v.Elems), v.Elems)
	case KindPush:
		return appendAggregate(dst, TypePush, len(v.Elems), v.Elems)
	case KindMap:
		return appendAggregate(dst, TypeMap, len(v.Elems)/2, v.Elems)
	}
	return dst
}

// WriteValue writes the reply encoding of v to w.
func WriteValue(w io.Writer, v Value) error {
	buf := getBuffer()
	defer putBuffer(buf)

	buf.Write(AppendValue(buf.AvailableBuffer(), v))
	_, err := w.Write(buf.Bytes())
	return err
}

func appendAggregate(dst []byte, marker byte, n int, elems []Value) []byte {
	dst = appendHeader(dst, marker, int64(n))
	for _, e := range elems {
		dst = AppendValue(dst, e)
	}
	return dst
}

func appendHeader(dst []byte, marker byte, n int64) []byte {
	dst = append(dst, marker)
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, CRLF...)
}

func appendLine(dst []byte, marker byte, line []byte) []byte {
	dst = append(dst, marker)
	dst = append(dst, line...)
	return append(dst, CRLF...)
}

func formatDouble(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
