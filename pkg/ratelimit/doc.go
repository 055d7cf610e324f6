// Package ratelimit enforces request ceilings per tenant, endpoint and
// client within a fixed window that resets once it has elapsed.
//
// Windows live in a sharded in-memory map; each shard has its own mutex
// and check-and-increment runs under it. Every decision is queued for the
// tenant's rate_limits table on a bounded channel. When the queue is full
// the decision is dropped and counted, so persistence never slows down or
// blocks a request. Allowed decisions cannot fill the reserve kept for
// denials, and a limiter with a recorder logs every denial before Allow
// returns.
package ratelimit
