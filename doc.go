// Package redis is a client for Redis-compatible servers speaking RESP.
//
// Connection is a single transport with its decoder. Cmd, Pipeline,
// Transaction, Iter and PubSub build on the ConnectionLike interface, so
// they work the same over a dialed Connection, a connection checked out of
// a Client, or a test double.
//
// Client owns a pool of connections and an optional circuit breaker. A
// connection is released to the pool only when it is still usable; after a
// transport or protocol error it is destroyed.
package redis
