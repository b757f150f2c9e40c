package redis

import (
	"context"
	"testing"

	"github.com/pior/redis/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_Exec(t *testing.T) {
	conn, mock := newMockConnection("+OK\r\n", ":1\r\n", "$1\r\n1\r\n")

	values, err := Pipe().
		Add("SET", "a", 1).Ignore().
		Add("INCR", "b").
		Add("GET", "a").
		Exec(context.Background(), conn)
	require.NoError(t, err)

	require.Len(t, values, 2, "ignored replies are dropped")
	assert.True(t, resp.Int(1).Equal(values[0]))
	assert.True(t, resp.BulkString("1").Equal(values[1]))

	expected := "*3\r\n$3\r\nSET\r\n$1\r\na\r\n$1\r\n1\r\n" +
		"*2\r\n$4\r\nINCR\r\n$1\r\nb\r\n" +
		"*2\r\n$3\r\nGET\r\n$1\r\na\r\n"
	assert.Equal(t, expected, mock.GetWrittenRequest())
}

func TestPipeline_ManyCommandsKeepOrder(t *testing.T) {
	const n = 500

	replies := make([]string, n)
	p := Pipe()
	for i := range n {
		replies[i] = string(resp.AppendValue(nil, resp.Int(int64(i))))
		p.Add("INCR", i)
	}
	conn, mock := newMockConnection(replies...)
	mock.WithChunkSize(7)

	values, err := p.Exec(context.Background(), conn)
	require.NoError(t, err)
	require.Len(t, values, n)
	for i, v := range values {
		assert.Equal(t, int64(i), v.Int)
	}
}

func TestPipeline_Empty(t *testing.T) {
	conn, mock := newMockConnection()

	values, err := Pipe().Exec(context.Background(), conn)
	require.NoError(t, err)
	assert.Empty(t, values)

	values, err = Pipe().Atomic().Exec(context.Background(), conn)
	require.NoError(t, err)
	assert.Empty(t, values)

	assert.Empty(t, mock.GetWrittenRequest())
}

func TestPipeline_ErrorReplyFailsBatch(t *testing.T) {
	conn, _ := newMockConnection("+OK\r\n", "-WRONGTYPE bad\r\n", "+PONG\r\n")

	_, err := Pipe().Add("SET", "a", 1).Add("INCR", "l").Ignore().Exec(context.Background(), conn)
	assert.True(t, IsServerError(err, "WRONGTYPE"), "got %v", err)

	// All replies were consumed: the connection is in sync.
	v, err := conn.RequestOne(context.Background(), NewCmd("PING"))
	require.NoError(t, err)
	assert.Equal(t, "PONG", v.Text())
}

func TestPipeline_Atomic(t *testing.T) {
	conn, mock := newMockConnection(
		"+OK\r\n",
		"+QUEUED\r\n",
		"+QUEUED\r\n",
		"*2\r\n+OK\r\n:6\r\n",
	)

	values, err := Pipe().Atomic().
		Add("SET", "a", 5).Ignore().
		Add("INCR", "a").
		Exec(context.Background(), conn)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, int64(6), values[0].Int)

	expected := "*1\r\n$5\r\nMULTI\r\n" +
		"*3\r\n$3\r\nSET\r\n$1\r\na\r\n$1\r\n5\r\n" +
		"*2\r\n$4\r\nINCR\r\n$1\r\na\r\n" +
		"*1\r\n$4\r\nEXEC\r\n"
	assert.Equal(t, expected, mock.GetWrittenRequest())
}

func TestPipeline_AtomicAborted(t *testing.T) {
	conn, _ := newMockConnection("+OK\r\n", "+QUEUED\r\n", "*-1\r\n")

	_, err := Pipe().Atomic().Add("SET", "a", 1).Exec(context.Background(), conn)
	require.ErrorIs(t, err, ErrTxAborted)
	assert.False(t, ShouldCloseConnection(err))
	assert.True(t, conn.Usable())
}

func TestPipeline_AtomicQueueError(t *testing.T) {
	conn, _ := newMockConnection(
		"+OK\r\n",
		"-ERR unknown command 'NOPE'\r\n",
		"-EXECABORT Transaction discarded because of previous errors.\r\n",
	)

	_, err := Pipe().Atomic().Add("NOPE").Exec(context.Background(), conn)
	assert.True(t, IsServerError(err, "ERR"), "the queuing error is reported, got %v", err)
}

func TestPipeline_AtomicRuntimeError(t *testing.T) {
	conn, _ := newMockConnection("+OK\r\n", "+QUEUED\r\n", "+QUEUED\r\n", "*2\r\n+OK\r\n-WRONGTYPE bad\r\n")

	_, err := Pipe().Atomic().Add("SET", "a", 1).Add("LPUSH", "a", 2).Exec(context.Background(), conn)
	assert.True(t, IsServerError(err, "WRONGTYPE"), "got %v", err)
}

func TestPipeline_Scan(t *testing.T) {
	conn, _ := newMockConnection("$5\r\nhello\r\n", ":42\r\n", "*2\r\n$1\r\na\r\n$1\r\nb\r\n", "$-1\r\n")

	var (
		s       string
		n       int
		members []string
		missing *string
	)
	err := Pipe().
		Add("GET", "s").
		Add("INCR", "n").
		Add("SMEMBERS", "m").
		Add("GET", "missing").
		Scan(context.Background(), conn, &s, &n, &members, &missing)
	require.NoError(t, err)

	assert.Equal(t, "hello", s)
	assert.Equal(t, 42, n)
	assert.Equal(t, []string{"a", "b"}, members)
	assert.Nil(t, missing)
}

func TestPipeline_ScanCountMismatch(t *testing.T) {
	conn, _ := newMockConnection("+OK\r\n", "+OK\r\n")

	var a string
	err := Pipe().Add("PING").Add("PING").Scan(context.Background(), conn, &a)

	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, conn.Usable())
}

func TestPipeline_ScanConversionError(t *testing.T) {
	conn, _ := newMockConnection("*2\r\n:1\r\n:2\r\n")

	var n int64
	err := Pipe().Add("LRANGE", "l", 0, -1).Scan(context.Background(), conn, &n)

	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, resp.KindArray, mismatch.Kind)
}

func TestPipeline_Clear(t *testing.T) {
	p := Pipe().Atomic().Add("PING").Ignore()
	assert.Equal(t, 1, p.Len())

	p.Clear()
	assert.Equal(t, 0, p.Len())
	assert.True(t, p.IsAtomic())

	p.Add("PING")
	assert.Equal(t, []bool{false}, p.ignored)
}
