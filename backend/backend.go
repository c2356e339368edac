// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package backend defines the narrow interface every storage engine (bolt,
// sql, safemode) implements. rkv's Environment, Reader and Writer are thin,
// engine-agnostic wrappers over these interfaces; none of the three engines
// knows anything about Stores or the value codec.
package backend

import (
	"context"
	"errors"
)

// Sentinel errors every engine returns in place of an engine-specific error
// value, so that callers above this package (which cannot depend on a
// specific engine) can still distinguish these conditions with errors.Is.
var (
	ErrNotFound      = errors.New("backend: key not found")
	ErrKeyExists     = errors.New("backend: key already exists")
	ErrBadValSize    = errors.New("backend: key/value pair bad size")
	ErrMapFull       = errors.New("backend: map full")
	ErrDbsFull       = errors.New("backend: too many open databases")
	ErrReadersFull   = errors.New("backend: too many concurrent readers")
	ErrFileInvalid   = errors.New("backend: file is not a valid environment")
	ErrDBFlagsMismatch = errors.New("backend: database already exists with different flags")
	ErrUnsupported     = errors.New("backend: operation not supported by this engine")
	ErrDbsIllegalOpen  = errors.New("backend: cannot open or create a database while a read transaction is live")
)

// DatabaseFlags controls the semantics of a single named database within an
// Environment. Not every engine honors every flag; CreateDB accepts every
// flag on every engine and records it, and a flag an engine does not
// implement has no effect there.
type DatabaseFlags uint32

const (
	// DupSort allows multiple values to be associated with a single key,
	// kept in sorted order.
	DupSort DatabaseFlags = 1 << iota
	// DupFixed indicates all values under DupSort have the same length,
	// enabling a denser on-disk representation in engines that support it.
	DupFixed
	// IntegerKey marks a database whose keys are fixed-width integers. The
	// engines still compare keys byte-lexicographically; store.IntegerStore
	// encodes its keys big-endian so that byte order is numeric order.
	IntegerKey
	// IntegerDup marks DupSort values as fixed-width integers. The engines
	// record it but still compare values byte-lexicographically.
	IntegerDup
)

func (f DatabaseFlags) Has(flag DatabaseFlags) bool { return f&flag != 0 }

// WriteFlags modifies the behavior of a single Put or Del call.
type WriteFlags uint32

const (
	// NoOverwrite causes Put on a non-DupSort database to fail with
	// ErrKeyExists if the key already has a value. Put on a DupSort database
	// ignores it; NoDupData covers the exact-pair case there.
	NoOverwrite WriteFlags = 1 << iota
	// NoDupData causes Put on a DupSort database to fail with ErrKeyExists
	// if the exact key/value pair already exists.
	NoDupData
	// Append asserts keys are inserted in already-sorted order, allowing
	// engines that support it to skip a binary search.
	Append
	// AppendDup is Append for the dup-data portion of a DupSort database.
	AppendDup
)

func (f WriteFlags) Has(flag WriteFlags) bool { return f&flag != 0 }

// RecoveryStrategy controls how Environment.Open reacts to a corrupted
// on-disk representation it can detect at open time. Only engines that can
// detect corruption at open time honor anything beyond Error.
type RecoveryStrategy int

const (
	// Error aborts Open and surfaces the corruption as an error. Default.
	Error RecoveryStrategy = iota
	// RenameAndOpen moves the corrupt file aside (appending a suffix) and
	// starts with a fresh, empty datastore.
	RenameAndOpen
)

// Stat reports per-database size/shape metrics. Not every engine can
// populate every field; zero means "unknown" for that engine.
type Stat struct {
	PageSize   uint32
	Depth      uint32
	BranchPages uint64
	LeafPages  uint64
	OverflowPages uint64
	Entries    uint64
}

// Info reports environment-wide metrics.
type Info struct {
	MapSize    uint64
	LastPageNo uint64
	LastTxnID  uint64
	MaxReaders uint32
	NumReaders uint32
}

// Database is an opaque handle to a single named (or default/unnamed) table
// within an Environment. Its zero value is invalid; obtain one from
// Environment.OpenDB or Environment.CreateDB.
type Database interface {
	// Name returns the database's name, or "" for the default database.
	Name() string
	// Flags returns the flags the database was created with.
	Flags() DatabaseFlags
}

// Cursor iterates key/value pairs (and, for DupSort databases, value runs
// under a single key) in a read transaction.
type Cursor interface {
	// First positions the cursor at the first key in the database.
	First() (key, value []byte, ok bool)
	// Next advances the cursor and returns the pair it lands on.
	Next() (key, value []byte, ok bool)
	// Seek positions the cursor at the first key >= k.
	Seek(k []byte) (key, value []byte, ok bool)
	// SeekDup positions the cursor at the first value >= v within the run
	// of values stored under exactly key k of a DupSort database.
	SeekDup(k, v []byte) (key, value []byte, ok bool)
	// NextDup advances within the current key's value run (DupSort only).
	NextDup() (key, value []byte, ok bool)
	// Close releases cursor resources. Safe to call more than once.
	Close()
}

// RoTransaction is a read-only view of an Environment, stable for its
// lifetime regardless of concurrent writers (snapshot isolation).
type RoTransaction interface {
	// Get returns the (first, for DupSort) value stored under key.
	Get(db Database, key []byte) ([]byte, error)
	// OpenCursor returns a Cursor over db, valid until the transaction ends.
	OpenCursor(db Database) (Cursor, error)
	// Abort releases the transaction's resources without side effects.
	Abort()
}

// RwTransaction is the lone, exclusive read-write view of an Environment.
type RwTransaction interface {
	RoTransaction
	// Put stores value under key, honoring flags.
	Put(db Database, key, value []byte, flags WriteFlags) error
	// Del removes key (or, if value is non-nil, the single matching
	// key/value pair of a DupSort database). It returns ErrNotFound if
	// nothing matched.
	Del(db Database, key, value []byte) error
	// Clear removes every key from db.
	Clear(db Database) error
	// Commit finalizes the transaction's writes, making them visible to
	// future RoTransactions. The receiver is unusable afterward.
	Commit() error
}

// Environment is a single open storage engine instance rooted at one
// directory. All three engine packages (boltengine, sqlengine, safemode)
// implement this interface identically from rkv's point of view.
type Environment interface {
	// ListDBs returns the names of every named database that has ever been
	// created in this environment ("" for the default database).
	ListDBs() ([]string, error)
	// OpenDB opens an existing database by name ("" for the default).
	OpenDB(name string) (Database, error)
	// CreateDB opens a database by name, creating it with flags if it does
	// not yet exist. If it exists with different flags, returns an error.
	CreateDB(name string, flags DatabaseFlags) (Database, error)
	// BeginRoTxn starts a read-only transaction.
	BeginRoTxn(ctx context.Context) (RoTransaction, error)
	// BeginRwTxn starts the (exclusive) read-write transaction.
	BeginRwTxn(ctx context.Context) (RwTransaction, error)
	// Sync flushes buffered writes to stable storage. force requests a
	// synchronous flush even if the environment is configured for async.
	Sync(force bool) error
	// Stat returns size/shape metrics for db.
	Stat(db Database) (Stat, error)
	// Info returns environment-wide metrics.
	Info() (Info, error)
	// Freelist returns the number of pages on the environment's free list.
	// Only the memory-mapped backend tracks a free list; others return
	// ErrUnsupported.
	Freelist() (uint64, error)
	// LoadRatio returns the fraction of the map currently in use:
	// (last-page - freelist) / (map-size / page-size). Only the
	// memory-mapped backend can compute this; others return ErrUnsupported.
	LoadRatio() (float64, error)
	// SetMapSize changes the environment's maximum size, where supported.
	SetMapSize(size int64) error
	// FilesOnDisk lists the paths of files this environment owns.
	FilesOnDisk() []string
	// Close releases the environment's resources. Safe to call once.
	Close() error
}

// Builder configures and opens an Environment. Each engine package provides
// a concrete Builder via its own constructor (e.g. boltengine.NewBuilder).
type Builder interface {
	SetMaxReaders(n uint32) Builder
	SetMaxDBs(n uint32) Builder
	SetMapSize(size int64) Builder
	SetMakeDirIfNeeded(bool) Builder
	SetCorruptionRecoveryStrategy(RecoveryStrategy) Builder
	Open(path string) (Environment, error)
}
