// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package safemode

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kvshelf/rkv/backend"
)

// RoTxn holds a clone of every database's snapshot taken at the moment the
// transaction began, so it stays stable even if a writer commits meanwhile.
type RoTxn struct {
	env       *Environment
	entries   map[uuid.UUID]*dbEntry
	snapshots map[uuid.UUID]*snapshot
	aborted   bool
}

func (t *RoTxn) snapshotFor(db backend.Database) (*snapshot, *Database) {
	d := db.(*Database)
	return t.snapshots[d.entry.id], d
}

func (t *RoTxn) Get(db backend.Database, key []byte) ([]byte, error) {
	s, _ := t.snapshotFor(db)
	if s == nil {
		return nil, backend.ErrNotFound
	}
	v, ok := s.get(key)
	if !ok {
		return nil, backend.ErrNotFound
	}
	return v, nil
}

func (t *RoTxn) OpenCursor(db backend.Database) (backend.Cursor, error) {
	s, _ := t.snapshotFor(db)
	if s == nil {
		s = newSnapshot()
	}
	return newCursor(s), nil
}

// Abort releases the reader's witness on the environment, re-enabling
// CreateDB/OpenDB once every other concurrent reader has also ended. Safe to
// call more than once.
func (t *RoTxn) Abort() {
	if t.aborted {
		return
	}
	t.aborted = true
	atomic.AddInt64(&t.env.liveReaders, -1)
}

// RwTxn mutates its own clones; Commit swaps each touched database's live
// snapshot for the updated clone and persists the whole environment.
type RwTxn struct {
	RoTxn
	finished bool
}

func (t *RwTxn) Put(db backend.Database, key, value []byte, flags backend.WriteFlags) error {
	s, d := t.snapshotFor(db)
	if d.entry.flags.Has(backend.DupSort) {
		if flags.Has(backend.NoDupData) {
			if set, ok := s.m[string(key)]; ok {
				if _, found := set.search(value); found {
					return backend.ErrKeyExists
				}
			}
		}
		s.putDup(key, value)
		return nil
	}
	if flags.Has(backend.NoOverwrite) {
		if _, ok := s.get(key); ok {
			return backend.ErrKeyExists
		}
	}
	s.putOne(key, value)
	return nil
}

func (t *RwTxn) Del(db backend.Database, key, value []byte) error {
	s, d := t.snapshotFor(db)
	var deleted bool
	if value != nil && d.entry.flags.Has(backend.DupSort) {
		deleted = s.delExact(key, value)
	} else {
		deleted = s.delAll(key)
	}
	if !deleted {
		return backend.ErrNotFound
	}
	return nil
}

func (t *RwTxn) Clear(db backend.Database) error {
	s, _ := t.snapshotFor(db)
	s.clear()
	return nil
}

func (t *RwTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	defer t.env.writeMu.Unlock()

	for id, s := range t.snapshots {
		if entry, ok := t.entries[id]; ok {
			entry.replace(s)
		}
	}

	t.env.mu.RLock()
	defer t.env.mu.RUnlock()
	return t.env.writeToDiskRLocked()
}

func (t *RwTxn) Abort() {
	if t.finished {
		return
	}
	t.finished = true
	t.env.writeMu.Unlock()
}
