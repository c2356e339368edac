// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package rkv

import (
	"github.com/kvshelf/rkv/backend"
	"github.com/kvshelf/rkv/internal/metrics"
)

// ListDBs returns the names of every database that has ever been created in
// this environment.
func (e *Environment) ListDBs() ([]string, error) {
	names, err := e.env.ListDBs()
	if err != nil {
		return nil, FromBackendError(err)
	}
	return names, nil
}

// OpenDB opens an existing named database ("" for the default database).
func (e *Environment) OpenDB(name string) (backend.Database, error) {
	db, err := e.env.OpenDB(name)
	if err != nil {
		return nil, FromBackendError(err)
	}
	return db, nil
}

// CreateDB opens name, creating it with flags if it doesn't already exist.
func (e *Environment) CreateDB(name string, flags backend.DatabaseFlags) (backend.Database, error) {
	db, err := e.env.CreateDB(name, flags)
	if err != nil {
		return nil, FromBackendError(err)
	}
	return db, nil
}

// Reader is a read-only transaction against an Environment. A Reader's view
// of the data is a stable snapshot: it never observes partial or future
// writes, even from a concurrent or later-committed Writer.
//
// A Reader is not safe for concurrent use by multiple goroutines.
type Reader struct {
	env     *Environment
	txn     backend.RoTransaction
	closed  bool
	metrics *metrics.Collector

	keysRead  uint64
	bytesRead uint64
}

// RecordRead accounts one read of a value of n bytes against this Reader's
// metrics, if any were configured. Stores call this from their point lookups
// (Get, GetFirst); cursor iteration does not call it. It has no effect on
// behavior, only on what ObserveRead reports.
func (r *Reader) RecordRead(n int) {
	r.keysRead++
	r.bytesRead += uint64(n)
}

// Env returns the Environment this Reader was opened against. Stores use
// this for pointer-identity checks, refusing to operate on a transaction
// from a different Environment than the one they were opened in.
func (r *Reader) Env() *Environment { return r.env }

// Txn returns the underlying backend read transaction, or an error if the
// Reader has already been aborted.
func (r *Reader) Txn() (backend.RoTransaction, error) {
	if r.closed {
		return nil, NewError(InvalidTransaction, "reader is closed")
	}
	return r.txn, nil
}

// Abort releases the Reader's resources. Safe to call more than once.
func (r *Reader) Abort() {
	if r.closed {
		return
	}
	r.closed = true
	r.metrics.ObserveRead(r.keysRead, r.bytesRead)
	r.txn.Abort()
}

// Writer is the environment's single read-write transaction. Writes made
// through a Writer are visible to the Writer itself immediately, but only
// become visible to Readers (and other callers of Write, since only one
// Writer exists at a time) once Commit succeeds.
//
// A Writer is not safe for concurrent use by multiple goroutines.
type Writer struct {
	env      *Environment
	txn      backend.RwTransaction
	closed   bool
	finished bool
	metrics  *metrics.Collector

	keysRead     uint64
	keysWritten  uint64
	keysDeleted  uint64
	bytesRead    uint64
	bytesWritten uint64
}

// RecordRead accounts one read of a value of n bytes against this Writer's
// metrics (a write transaction can still read, e.g. to check NoOverwrite).
func (w *Writer) RecordRead(n int) {
	w.keysRead++
	w.bytesRead += uint64(n)
}

// RecordPut accounts one write of a value of n bytes.
func (w *Writer) RecordPut(n int) {
	w.keysWritten++
	w.bytesWritten += uint64(n)
}

// RecordDelete accounts one key deletion.
func (w *Writer) RecordDelete() {
	w.keysDeleted++
}

// Env returns the Environment this Writer was opened against.
func (w *Writer) Env() *Environment { return w.env }

// Txn returns the underlying backend read-write transaction, or an error if
// the Writer has already committed or aborted.
func (w *Writer) Txn() (backend.RwTransaction, error) {
	if w.closed {
		return nil, NewError(InvalidTransaction, "writer is closed")
	}
	return w.txn, nil
}

// Commit finalizes the writer's changes, making them visible to future
// Readers and to the next Writer. The Writer is unusable afterward.
func (w *Writer) Commit() error {
	if w.closed {
		return NewError(InvalidTransaction, "writer is closed")
	}
	w.closed = true
	w.finished = true
	w.env.writeMu.Unlock()
	w.metrics.ObserveWrite(w.keysRead, w.keysWritten, w.keysDeleted, w.bytesRead, w.bytesWritten)
	if err := w.txn.Commit(); err != nil {
		return FromBackendError(err)
	}
	return nil
}

// Abort discards the writer's changes. The Writer is unusable afterward.
// Safe to call more than once.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	if !w.finished {
		w.txn.Abort()
		w.finished = true
	}
	w.env.writeMu.Unlock()
	w.metrics.ObserveWrite(w.keysRead, w.keysWritten, w.keysDeleted, w.bytesRead, w.bytesWritten)
}
