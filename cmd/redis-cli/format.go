package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pior/redis/resp"
)

// printValue writes a reply the way the reference redis-cli does.
func printValue(w io.Writer, v resp.Value) {
	var b strings.Builder
	formatValue(&b, v, 0)
	fmt.Fprintln(w, b.String())
}

func formatValue(b *strings.Builder, v resp.Value, indent int) {
	switch v.Kind {
	case resp.KindNil:
		b.WriteString("(nil)")
	case resp.KindInteger:
		b.WriteString("(integer) " + v.Text())
	case resp.KindBulkString:
		b.WriteString(strconv.Quote(v.Text()))
	case resp.KindSimpleString:
		b.WriteString(v.Text())
	case resp.KindError:
		b.WriteString("(error) " + v.Text())
	case resp.KindBoolean:
		b.WriteString("(" + v.Text() + ")")
	case resp.KindDouble:
		b.WriteString("(double) " + v.Text())
	case resp.KindBigNumber:
		b.WriteString("(big number) " + v.Text())
	case resp.KindMap:
		if v.Len() == 0 {
			b.WriteString("(empty hash)")
			return
		}
		i := 0
		v.Pairs(func(key, val resp.Value) bool {
			prefix := strconv.Itoa(i+1) + "# "
			writeItem(b, prefix, i, indent)
			formatValue(b, key, indent+len(prefix))
			b.WriteString(" => ")
			formatValue(b, val, indent+len(prefix))
			i++
			return true
		})
	default:
		if len(v.Elems) == 0 {
			b.WriteString("(empty array)")
			return
		}
		for i, e := range v.Elems {
			prefix := strconv.Itoa(i+1) + ") "
			writeItem(b, prefix, i, indent)
			formatValue(b, e, indent+len(prefix))
		}
	}
}

// writeItem starts element i of an aggregate. The first element continues
// the current line, the next ones are aligned under it.
func writeItem(b *strings.Builder, prefix string, i, indent int) {
	if i > 0 {
		b.WriteString("\n" + strings.Repeat(" ", indent))
	}
	b.WriteString(prefix)
}
