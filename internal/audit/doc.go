// Package audit records console activity (logins, device deletes) in the
// audit_logs table and lists it back with filters.
//
// Writes go through a Recorder, which queues entries on a bounded channel and
// persists them from a single goroutine so request handlers never block on
// SQLite. When the queue is full entries are dropped with a warning.
package audit
