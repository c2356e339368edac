// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package safemode is a from-scratch, in-process MVCC engine: no mmap, no
// cgo, nothing outside the Go runtime's own heap and encoding/gob. Every
// named database holds a single in-memory snapshot (a map of keys to sorted
// value sets); a transaction clones the snapshot of every database it might
// touch at the moment it begins, reads and writes against its own clone, and
// on commit swaps each database's live snapshot for the updated clone and
// serializes the whole environment back to disk. Readers are therefore
// isolated from a concurrent writer by construction: they hold a clone taken
// before the writer started, never the writer's in-progress one.
//
// This trades the scalability of the other two engines (which can handle
// datasets larger than RAM) for simplicity and an engine with no external
// format to get wrong: it exists for tests, small environments, and hosts
// where loading cgo or mmap-backed code is undesirable.
package safemode

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kvshelf/rkv/backend"
)

const dataFileName = "data.safe.bin"

// Builder constructs a safemode-backed Environment.
type Builder struct {
	makeDirIfNeeded bool
	recovery        backend.RecoveryStrategy
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) SetMaxDBs(uint32) backend.Builder     { return b }
func (b *Builder) SetMaxReaders(uint32) backend.Builder { return b }
func (b *Builder) SetMapSize(int64) backend.Builder     { return b }
func (b *Builder) SetMakeDirIfNeeded(v bool) backend.Builder {
	b.makeDirIfNeeded = v
	return b
}
func (b *Builder) SetCorruptionRecoveryStrategy(s backend.RecoveryStrategy) backend.Builder {
	b.recovery = s
	return b
}

func (b *Builder) Open(path string) (backend.Environment, error) {
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		if !b.makeDirIfNeeded {
			return nil, fmt.Errorf("safemode: directory does not exist: %s", path)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
	}

	env := &Environment{
		path: path,
		dbs:  make(map[string]*dbEntry),
	}
	if err := env.readFromDisk(b.recovery); err != nil {
		return nil, err
	}
	return env, nil
}

// dbEntry is one named database: a stable identity plus the flags it was
// created with and the current snapshot readers/writers clone from.
type dbEntry struct {
	id    uuid.UUID
	name  string
	flags backend.DatabaseFlags

	mu       sync.RWMutex
	snapshot *snapshot
}

func (d *dbEntry) clone() *snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot.clone()
}

func (d *dbEntry) replace(s *snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshot = s
}

// Environment owns every named database in the process and the single
// on-disk file they are all persisted to together.
type Environment struct {
	path string

	mu  sync.RWMutex
	dbs map[string]*dbEntry

	// writeMu serializes RwTxn the same way rkv.Environment does above
	// this package, so safemode is safe to drive directly too.
	writeMu sync.Mutex

	// liveReaders witnesses how many RoTxn are currently outstanding. A
	// reader has already captured a fleet snapshot of every database that
	// existed when it began, so creating or opening a database while one
	// is live would leave it with an inconsistent view; CreateDB/OpenDB
	// refuse with ErrDbsIllegalOpen instead.
	liveReaders int64
}

func (e *Environment) dataFilePath() string { return filepath.Join(e.path, dataFileName) }

type onDiskDB struct {
	ID    uuid.UUID
	Flags backend.DatabaseFlags
	Rows  map[string][][]byte // key -> sorted values
}

func (e *Environment) readFromDisk(recovery backend.RecoveryStrategy) error {
	data, err := os.ReadFile(e.dataFilePath())
	if os.IsNotExist(err) {
		return e.writeToDiskLocked()
	}
	if err != nil {
		return err
	}

	decoded := make(map[string]onDiskDB)
	if derr := gob.NewDecoder(bytes.NewReader(data)).Decode(&decoded); derr != nil {
		if recovery == backend.RenameAndOpen {
			if rerr := os.Rename(e.dataFilePath(), e.dataFilePath()+".corrupt"); rerr != nil {
				return rerr
			}
			return e.writeToDiskLocked()
		}
		return fmt.Errorf("safemode: %s: %w", derr, backend.ErrFileInvalid)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for name, d := range decoded {
		s := newSnapshot()
		for k, vs := range d.Rows {
			set := s.entry([]byte(k))
			for _, v := range vs {
				set.insert(v)
			}
		}
		e.dbs[name] = &dbEntry{id: d.ID, name: name, flags: d.Flags, snapshot: s}
	}
	return nil
}

func (e *Environment) writeToDiskLocked() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.writeToDiskRLocked()
}

// writeToDiskRLocked assumes e.mu is already held (for read or write).
func (e *Environment) writeToDiskRLocked() error {
	out := make(map[string]onDiskDB, len(e.dbs))
	for name, db := range e.dbs {
		s := db.clone()
		rows := make(map[string][][]byte, len(s.m))
		for k, set := range s.m {
			rows[k] = set.values
		}
		out[name] = onDiskDB{ID: db.id, Flags: db.flags, Rows: rows}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(out); err != nil {
		return err
	}
	return os.WriteFile(e.dataFilePath(), buf.Bytes(), 0o644)
}

func (e *Environment) ListDBs() ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.dbs))
	for name := range e.dbs {
		names = append(names, name)
	}
	return names, nil
}

func (e *Environment) OpenDB(name string) (backend.Database, error) {
	if atomic.LoadInt64(&e.liveReaders) > 0 {
		return nil, backend.ErrDbsIllegalOpen
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	db, ok := e.dbs[name]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return &Database{entry: db}, nil
}

func (e *Environment) CreateDB(name string, flags backend.DatabaseFlags) (backend.Database, error) {
	if atomic.LoadInt64(&e.liveReaders) > 0 {
		return nil, backend.ErrDbsIllegalOpen
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if db, ok := e.dbs[name]; ok {
		if db.flags != flags {
			return nil, backend.ErrDBFlagsMismatch
		}
		return &Database{entry: db}, nil
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	db := &dbEntry{id: id, name: name, flags: flags, snapshot: newSnapshot()}
	e.dbs[name] = db
	return &Database{entry: db}, nil
}

func (e *Environment) BeginRoTxn(ctx context.Context) (backend.RoTransaction, error) {
	e.mu.RLock()
	entries := make(map[uuid.UUID]*dbEntry, len(e.dbs))
	snapshots := make(map[uuid.UUID]*snapshot, len(e.dbs))
	for _, db := range e.dbs {
		entries[db.id] = db
		snapshots[db.id] = db.clone()
	}
	e.mu.RUnlock()
	atomic.AddInt64(&e.liveReaders, 1)
	return &RoTxn{env: e, entries: entries, snapshots: snapshots}, nil
}

func (e *Environment) BeginRwTxn(ctx context.Context) (backend.RwTransaction, error) {
	e.writeMu.Lock()
	e.mu.RLock()
	entries := make(map[uuid.UUID]*dbEntry, len(e.dbs))
	snapshots := make(map[uuid.UUID]*snapshot, len(e.dbs))
	for _, db := range e.dbs {
		entries[db.id] = db
		snapshots[db.id] = db.clone()
	}
	e.mu.RUnlock()
	return &RwTxn{RoTxn: RoTxn{env: e, entries: entries, snapshots: snapshots}}, nil
}

func (e *Environment) Sync(bool) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.writeToDiskRLocked()
}

func (e *Environment) Stat(db backend.Database) (backend.Stat, error) {
	d := db.(*Database)
	s := d.entry.clone()
	var n uint64
	for _, set := range s.m {
		n += uint64(len(set.values))
	}
	return backend.Stat{Entries: n}, nil
}

func (e *Environment) Info() (backend.Info, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return backend.Info{NumReaders: 0}, nil
}

// Freelist has no meaning for safemode; it holds its data as plain Go maps,
// not a page allocator.
func (e *Environment) Freelist() (uint64, error) { return 0, backend.ErrUnsupported }

// LoadRatio has no meaning for safemode.
func (e *Environment) LoadRatio() (float64, error) { return 0, backend.ErrUnsupported }

func (e *Environment) SetMapSize(int64) error { return backend.ErrUnsupported }

func (e *Environment) FilesOnDisk() []string { return []string{e.dataFilePath()} }

func (e *Environment) Close() error { return nil }

// Database identifies one named in-memory database by its stable id.
type Database struct {
	entry *dbEntry
}

func (d *Database) Name() string { return d.entry.name }

func (d *Database) Flags() backend.DatabaseFlags { return d.entry.flags }
