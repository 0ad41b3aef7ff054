// Package live implements the persistent-connection side of the engine: the
// connection registry and broadcaster (a single-goroutine actor fed by a
// command channel), the per-connection write pump, and the message protocol
// state machine (hello/ping/subscribe/resume/error).
//
// All registry and subscription state is owned by the hub goroutine; per
// connection write goroutines absorb slow clients, which are evicted rather
// than allowed to stall a broadcast.
package live
