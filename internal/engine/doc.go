// Package engine implements the real-time synchronization core: one polling
// loop per channel feeding change detection and delta computation, a
// process-wide sequence counter, and the bounded event history that makes
// reconnection resume possible.
//
// Every provider call goes through the shared circuit breaker. Loops are
// independent: a slow or failing channel never delays another channel, and no
// error short of startup misconfiguration stops the engine.
package engine
