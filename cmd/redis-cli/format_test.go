package main

import (
	"bytes"
	"testing"

	"github.com/pior/redis/resp"
	"github.com/stretchr/testify/assert"
)

func TestPrintValue(t *testing.T) {
	tests := []struct {
		name     string
		value    resp.Value
		expected string
	}{
		{"nil", resp.Nil, "(nil)"},
		{"integer", resp.Int(-3), "(integer) -3"},
		{"bulk", resp.BulkString("a b"), `"a b"`},
		{"simple", resp.Simple("OK"), "OK"},
		{"error", resp.Err("ERR nope"), "(error) ERR nope"},
		{"bool", resp.Bool(true), "(true)"},
		{"double", resp.Double(1.5), "(double) 1.5"},
		{"empty array", resp.ArrayOf(), "(empty array)"},
		{"empty map", resp.MapOf(), "(empty hash)"},
		{
			"array",
			resp.ArrayOf(resp.BulkString("a"), resp.Int(2)),
			"1) \"a\"\n2) (integer) 2",
		},
		{
			"nested",
			resp.ArrayOf(resp.BulkString("0"), resp.ArrayOf(resp.BulkString("k1"), resp.BulkString("k2"))),
			"1) \"0\"\n2) 1) \"k1\"\n   2) \"k2\"",
		},
		{
			"map",
			resp.MapOf(resp.Simple("server"), resp.BulkString("redis"), resp.Simple("proto"), resp.Int(3)),
			"1# server => \"redis\"\n2# proto => (integer) 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printValue(&buf, tt.value)
			assert.Equal(t, tt.expected+"\n", buf.String())
		})
	}
}
