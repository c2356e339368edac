// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package rkv

import (
	"context"
	"os"
	"sync"

	"github.com/kvshelf/rkv/backend"
	"github.com/kvshelf/rkv/backend/boltengine"
	"github.com/kvshelf/rkv/backend/safemode"
	"github.com/kvshelf/rkv/backend/sqlengine"
	"github.com/kvshelf/rkv/internal/metrics"
	"github.com/kvshelf/rkv/logging"
)

// DefaultMaxDBs is the maximum database count passed to the backend builder
// unless EnvironmentBuilder.SetMaxDBs is called explicitly. None of the
// three engines enforces it as a limit on CreateDB.
const DefaultMaxDBs = 5

// Kind selects which storage engine backs an Environment.
type Kind int

const (
	// Bolt uses a memory-mapped B+tree (go.etcd.io/bbolt).
	Bolt Kind = iota
	// Sql uses database/sql over modernc.org/sqlite.
	Sql
	// SafeMode uses the from-scratch, pure-Go MVCC engine.
	SafeMode
)

func (k Kind) String() string {
	switch k {
	case Bolt:
		return "bolt"
	case Sql:
		return "sql"
	case SafeMode:
		return "safemode"
	default:
		return "unknown"
	}
}

// EnvironmentBuilder configures an Environment prior to Open.
type EnvironmentBuilder struct {
	kind            Kind
	maxDBs          uint32
	maxReaders      uint32
	mapSize         int64
	makeDirIfNeeded bool
	recovery        backend.RecoveryStrategy
	logger          logging.Logger
	metrics         *metrics.Collector
}

// NewEnvironmentBuilder returns a builder for the given backend kind, with
// DefaultMaxDBs named databases and a no-op logger.
func NewEnvironmentBuilder(kind Kind) *EnvironmentBuilder {
	return &EnvironmentBuilder{
		kind:   kind,
		maxDBs: DefaultMaxDBs,
		logger: logging.NewNoOpLogger(),
	}
}

func (b *EnvironmentBuilder) SetMaxDBs(n uint32) *EnvironmentBuilder { b.maxDBs = n; return b }
func (b *EnvironmentBuilder) SetMaxReaders(n uint32) *EnvironmentBuilder {
	b.maxReaders = n
	return b
}
func (b *EnvironmentBuilder) SetMapSize(size int64) *EnvironmentBuilder { b.mapSize = size; return b }
func (b *EnvironmentBuilder) SetMakeDirIfNeeded(v bool) *EnvironmentBuilder {
	b.makeDirIfNeeded = v
	return b
}
func (b *EnvironmentBuilder) SetCorruptionRecoveryStrategy(s backend.RecoveryStrategy) *EnvironmentBuilder {
	b.recovery = s
	return b
}
func (b *EnvironmentBuilder) SetLogger(l logging.Logger) *EnvironmentBuilder { b.logger = l; return b }

// SetMetrics attaches a Collector that every Reader/Writer opened from the
// resulting Environment reports its per-transaction key/byte counts to. Pass
// nil (the default) to disable metrics entirely.
func (b *EnvironmentBuilder) SetMetrics(m *metrics.Collector) *EnvironmentBuilder {
	b.metrics = m
	return b
}

func (b *EnvironmentBuilder) newBackendBuilder() backend.Builder {
	switch b.kind {
	case Sql:
		return sqlengine.NewBuilder()
	case SafeMode:
		return safemode.NewBuilder()
	default:
		return boltengine.NewBuilder()
	}
}

// Open opens (creating, if configured to) the environment rooted at path.
func (b *EnvironmentBuilder) Open(path string) (*Environment, error) {
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		if !b.makeDirIfNeeded {
			return nil, NewError(DirectoryDoesNotExist, "%s", path)
		}
	}
	bb := b.newBackendBuilder().
		SetMaxDBs(b.maxDBs).
		SetMaxReaders(b.maxReaders).
		SetMapSize(b.mapSize).
		SetMakeDirIfNeeded(b.makeDirIfNeeded).
		SetCorruptionRecoveryStrategy(b.recovery)

	env, err := bb.Open(path)
	if err != nil {
		return nil, FromBackendError(err)
	}

	return &Environment{
		path:    path,
		kind:    b.kind,
		env:     env,
		logger:  b.logger,
		metrics: b.metrics,
	}, nil
}

// Environment is an open rkv instance: one directory, one backend, at most
// one live Writer at a time, and any number of concurrent Readers. The Sql
// kind is the exception: its engine holds a single connection, so a live
// Reader or Writer makes every other Read or Write wait until it ends.
//
// Unlike the mmap-based original this is distilled from, Go has no borrow
// checker to keep a Reader or Writer from outliving its Environment. Instead
// every Reader/Writer method checks a "closed" flag and every Store checks
// that the *Environment it was opened against is the one driving the
// transaction it's asked to operate on.
type Environment struct {
	path    string
	kind    Kind
	env     backend.Environment
	logger  logging.Logger
	metrics *metrics.Collector

	mu      sync.RWMutex
	closed  bool
	writeMu sync.Mutex // serializes Writer acquisition; only one Writer lives at a time
}

// Path returns the directory this environment is rooted at.
func (e *Environment) Path() string { return e.path }

// Kind returns the backend engine this environment uses.
func (e *Environment) Kind() Kind { return e.kind }

// Read begins a read-only transaction. The returned Reader observes a
// consistent snapshot for its entire lifetime, unaffected by concurrent or
// subsequent writes.
func (e *Environment) Read(ctx context.Context) (*Reader, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, NewError(InvalidTransaction, "environment is closed")
	}
	txn, err := e.env.BeginRoTxn(ctx)
	if err != nil {
		return nil, FromBackendError(err)
	}
	return &Reader{env: e, txn: txn, metrics: e.metrics}, nil
}

// Write begins the environment's single read-write transaction, blocking
// until any previous Writer has committed or aborted.
func (e *Environment) Write(ctx context.Context) (*Writer, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, NewError(InvalidTransaction, "environment is closed")
	}

	e.writeMu.Lock()
	txn, err := e.env.BeginRwTxn(ctx)
	if err != nil {
		e.writeMu.Unlock()
		return nil, FromBackendError(err)
	}
	return &Writer{env: e, txn: txn, metrics: e.metrics}, nil
}

// Sync flushes buffered writes. force requests a synchronous flush even if
// the backend is configured for asynchronous durability.
func (e *Environment) Sync(force bool) error {
	if err := e.env.Sync(force); err != nil {
		return FromBackendError(err)
	}
	return nil
}

// Close releases the environment's resources. Safe to call more than once;
// subsequent Reads and Writes fail with InvalidTransaction.
func (e *Environment) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.logger.Debug("closing environment %s", e.path)
	if err := e.env.Close(); err != nil {
		return FromBackendError(err)
	}
	return nil
}
