// Package eventlog provides event sinks and call correlation ids.
//
// A Sink receives exactly one event per successful call and returns it
// stamped with its log position (Seq) and content-addressed ID. The SQLite
// store is the durable sink; Memory is used by tests and the in-memory
// backend; Multi fans one event out to several sinks.
//
// An event's seq is the engine seq of the call that produced it, so the log
// is strictly increasing with gaps where calls were rejected. Committer
// writes a call's state change and its event in one transaction when the
// sink is an AtomicLog over the same store.
package eventlog
