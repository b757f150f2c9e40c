package redis

import (
	"context"
	"testing"
	"time"

	"github.com/pior/redis/internal/testutils"
)

var ctx = context.Background()

func newBenchClient(b *testing.B, responses ...string) *Client {
	b.Helper()

	constructor := func(ctx context.Context) (*Connection, error) {
		return NewConnection(testutils.NewConnectionMock(responses...).Repeat()), nil
	}
	client, err := NewClient(TCP("localhost:6379"), Config{MaxSize: 4, constructor: constructor})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(client.Close)
	return client
}

func BenchmarkClient_Get(b *testing.B) {
	client := newBenchClient(b, "$5\r\nhello\r\n")

	for b.Loop() {
		_, _ = client.Get(ctx, "testkey")
	}
}

func BenchmarkClient_Get_Miss(b *testing.B) {
	client := newBenchClient(b, "$-1\r\n")

	for b.Loop() {
		_, _ = client.Get(ctx, "testkey")
	}
}

func BenchmarkClient_Set(b *testing.B) {
	client := newBenchClient(b, "+OK\r\n")
	item := Item{Key: "key", Value: []byte("value")}

	for b.Loop() {
		_ = client.Set(ctx, item)
	}
}

func BenchmarkClient_Set_WithTTL(b *testing.B) {
	client := newBenchClient(b, "+OK\r\n")
	item := Item{Key: "key", Value: []byte("value"), TTL: 60 * time.Second}

	for b.Loop() {
		_ = client.Set(ctx, item)
	}
}

// BenchmarkClient_Set_LargeValue benchmarks Set with 10KB value
func BenchmarkClient_Set_LargeValue(b *testing.B) {
	client := newBenchClient(b, "+OK\r\n")
	item := Item{Key: "key", Value: make([]byte, 10240)}

	for b.Loop() {
		_ = client.Set(ctx, item)
	}
}

func BenchmarkConnection_Query(b *testing.B) {
	conn := NewConnection(testutils.NewConnectionMock(":42\r\n").Repeat())
	cmd := NewCmd("INCR", "counter")

	for b.Loop() {
		_, _ = Query[int64](ctx, conn, cmd)
	}
}

func BenchmarkClient_Exec(b *testing.B) {
	client := newBenchClient(b, "+OK\r\n$5\r\nhello\r\n:1\r\n")

	for b.Loop() {
		p := Pipe().
			Add("SET", "key", "hello").Ignore().
			Add("GET", "key").
			Add("DEL", "key")
		_, _ = client.Exec(ctx, p)
	}
}

func BenchmarkClient_Parallel(b *testing.B) {
	client := newBenchClient(b, "$5\r\nhello\r\n")

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = client.Get(ctx, "testkey")
		}
	})
}
