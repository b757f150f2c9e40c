package redis

import (
	"context"
	"testing"

	"github.com/pior/redis/internal/testutils"
)

func benchConstructor(ctx context.Context) (*Connection, error) {
	return NewConnection(testutils.NewConnectionMock()), nil
}

// BenchmarkPool_Acquire_Creation benchmarks acquiring a connection when the pool is empty
func BenchmarkPool_Acquire_Creation(b *testing.B) {
	for name, factory := range poolFactories {
		b.Run(name, func(b *testing.B) {
			for b.Loop() {
				pool, err := factory(benchConstructor, 1)
				if err != nil {
					b.Fatal(err)
				}
				res, err := pool.Acquire(ctx)
				if err != nil {
					b.Fatal(err)
				}
				res.Release()
				pool.Close()
			}
		})
	}
}

// BenchmarkPool_Acquire_Release_Cycle benchmarks the idle connection path
func BenchmarkPool_Acquire_Release_Cycle(b *testing.B) {
	for name, factory := range poolFactories {
		b.Run(name, func(b *testing.B) {
			pool, err := factory(benchConstructor, 4)
			if err != nil {
				b.Fatal(err)
			}
			defer pool.Close()

			for b.Loop() {
				res, err := pool.Acquire(ctx)
				if err != nil {
					b.Fatal(err)
				}
				res.Release()
			}
		})
	}
}

func BenchmarkPool_HighContention(b *testing.B) {
	for name, factory := range poolFactories {
		b.Run(name, func(b *testing.B) {
			pool, err := factory(benchConstructor, 2)
			if err != nil {
				b.Fatal(err)
			}
			defer pool.Close()

			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					res, err := pool.Acquire(ctx)
					if err != nil {
						b.Error(err)
						return
					}
					res.Release()
				}
			})
		})
	}
}
