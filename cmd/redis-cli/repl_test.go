package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pior/redis"
	"github.com/pior/redis/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	replies map[string]resp.Value
	sent    []string
}

func (f *fakeExecutor) Do(_ context.Context, cmd *redis.Cmd) (resp.Value, error) {
	f.sent = append(f.sent, cmd.String())
	v, ok := f.replies[cmd.Name()]
	if !ok {
		return resp.Value{}, &redis.ServerError{Code: "ERR", Message: "unknown command"}
	}
	return v, nil
}

func (f *fakeExecutor) Stats() redis.ClientStats {
	return redis.ClientStats{Commands: uint64(len(f.sent))}
}

func (f *fakeExecutor) PoolStats() redis.PoolStats {
	return redis.PoolStats{TotalConns: 1, IdleConns: 1}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line     string
		expected []string
	}{
		{"", nil},
		{"   ", nil},
		{"GET key", []string{"GET", "key"}},
		{"  SET  k   v  ", []string{"SET", "k", "v"}},
		{`SET k "a value"`, []string{"SET", "k", "a value"}},
		{`SET k "line\nbreak \"quoted\""`, []string{"SET", "k", "line\nbreak \"quoted\""}},
		{`SET k 'it\n'`, []string{"SET", "k", `it\n`}},
		{`SET k ""`, []string{"SET", "k", ""}},
		{`SET k"ey" v`, []string{"SET", "key", "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			args, err := splitArgs(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, args)
		})
	}

	_, err := splitArgs(`SET k "open`)
	assert.Error(t, err)
}

func TestREPL_Session(t *testing.T) {
	exec := &fakeExecutor{replies: map[string]resp.Value{
		"SET": resp.Simple("OK"),
		"GET": resp.BulkString("a value"),
	}}
	var out bytes.Buffer
	r := &repl{exec: exec, out: &out, timeout: time.Second}

	input := strings.Join([]string{
		`SET greeting "a value"`,
		"GET greeting",
		"NOPE",
		"",
		`GET "unterminated`,
		"stats",
		"quit",
		"GET never-sent",
	}, "\n")
	require.NoError(t, r.run(context.Background(), strings.NewReader(input)))

	assert.Equal(t, []string{`SET "greeting" "a value"`, `GET "greeting"`, "NOPE"}, exec.sent)

	output := out.String()
	assert.Contains(t, output, "> OK\n")
	assert.Contains(t, output, "> \"a value\"\n")
	assert.Contains(t, output, "> (error) ERR unknown command\n")
	assert.Contains(t, output, "Invalid input: unbalanced quotes")
	assert.Contains(t, output, "Commands: 3")
	assert.NotContains(t, output, "took")
}

func TestREPL_ExecuteReturnsError(t *testing.T) {
	r := &repl{exec: &fakeExecutor{}, out: io.Discard, timeout: time.Second, timing: true}

	err := r.execute(context.Background(), []string{"NOPE"})
	assert.True(t, redis.IsServerError(err, "ERR"))
}
