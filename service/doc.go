// Package service hosts the order ledger behind a single owner goroutine.
//
// Every submission, render and snapshot is a command handled by Run, so
// identifier issuance and per-side append order are serialized no matter
// how many transports call in. Around the ledger it writes the
// submission journal and the event outbox, and keeps the metrics.
package service
