// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package boltengine adapts go.etcd.io/bbolt, a pure-Go memory-mapped
// B+tree, to the backend.Environment interface. It is the default rkv
// backend: single-file, crash-safe via bbolt's own copy-on-write commit, and
// requiring no cgo.
//
// DUP_SORT databases have no native bbolt equivalent, so every key of such a
// database is stored as a nested bucket whose own keys are the (encoded)
// values; iteration order within that nested bucket gives the sorted
// duplicate run.
package boltengine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/kvshelf/rkv/backend"
)

var metaBucket = []byte("__rkv_meta__")

// Builder constructs a bolt-backed Environment.
type Builder struct {
	maxDBs          uint32
	maxReaders      uint32
	mapSize         int64
	makeDirIfNeeded bool
	recovery        backend.RecoveryStrategy
}

// NewBuilder returns a new bolt Builder.
func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) SetMaxDBs(n uint32) backend.Builder          { b.maxDBs = n; return b }
func (b *Builder) SetMaxReaders(n uint32) backend.Builder      { b.maxReaders = n; return b }
func (b *Builder) SetMapSize(size int64) backend.Builder       { b.mapSize = size; return b }
func (b *Builder) SetMakeDirIfNeeded(v bool) backend.Builder   { b.makeDirIfNeeded = v; return b }
func (b *Builder) SetCorruptionRecoveryStrategy(s backend.RecoveryStrategy) backend.Builder {
	b.recovery = s
	return b
}

// Open creates (if needed) path as a directory and opens data.bolt within
// it, recovering from a detected-corrupt file per the configured strategy.
func (b *Builder) Open(path string) (backend.Environment, error) {
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		if !b.makeDirIfNeeded {
			return nil, fmt.Errorf("boltengine: directory does not exist: %s", path)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
	}

	dataFile := filepath.Join(path, "data.bolt")
	db, err := bolt.Open(dataFile, 0o600, nil)
	if err != nil {
		if b.recovery == backend.RenameAndOpen {
			if renameErr := os.Rename(dataFile, dataFile+".corrupt"); renameErr == nil {
				db, err = bolt.Open(dataFile, 0o600, nil)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("boltengine: open %s: %w", dataFile, backend.ErrFileInvalid)
		}
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Environment{path: path, db: db}, nil
}

type dbMeta struct {
	Flags backend.DatabaseFlags `json:"flags"`
}

// Environment is a single open bbolt file.
type Environment struct {
	path string
	db   *bolt.DB
}

func (e *Environment) ListDBs() ([]string, error) {
	var names []string
	err := e.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		return meta.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

func (e *Environment) OpenDB(name string) (backend.Database, error) {
	var flags backend.DatabaseFlags
	found := false
	err := e.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		raw := meta.Get([]byte(name))
		if raw == nil {
			return nil
		}
		found = true
		var m dbMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		flags = m.Flags
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, backend.ErrNotFound
	}
	return &Database{name: name, flags: flags}, nil
}

func (e *Environment) CreateDB(name string, flags backend.DatabaseFlags) (backend.Database, error) {
	var result *Database
	err := e.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if raw := meta.Get([]byte(name)); raw != nil {
			var m dbMeta
			if err := json.Unmarshal(raw, &m); err != nil {
				return err
			}
			if m.Flags != flags {
				return backend.ErrDBFlagsMismatch
			}
			result = &Database{name: name, flags: flags}
			return nil
		}
		if _, err := tx.CreateBucketIfNotExists(bucketName(name)); err != nil {
			return err
		}
		raw, err := json.Marshal(dbMeta{Flags: flags})
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(name), raw); err != nil {
			return err
		}
		result = &Database{name: name, flags: flags}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func bucketName(name string) []byte {
	if name == "" {
		return []byte("\x00default")
	}
	return []byte(name)
}

func (e *Environment) BeginRoTxn(_ context.Context) (backend.RoTransaction, error) {
	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &RoTxn{tx: tx}, nil
}

func (e *Environment) BeginRwTxn(_ context.Context) (backend.RwTransaction, error) {
	tx, err := e.db.Begin(true)
	if err != nil {
		return nil, err
	}
	return &RwTxn{RoTxn: RoTxn{tx: tx}}, nil
}

func (e *Environment) Sync(force bool) error {
	return e.db.Sync()
}

func (e *Environment) Stat(db backend.Database) (backend.Stat, error) {
	var st backend.Stat
	err := e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(db.Name()))
		if b == nil {
			return backend.ErrNotFound
		}
		bs := b.Stats()
		st = backend.Stat{
			BranchPages:   uint64(bs.BranchPageN),
			LeafPages:     uint64(bs.LeafPageN),
			OverflowPages: uint64(bs.LeafOverflowN),
			Entries:       uint64(bs.KeyN),
		}
		return nil
	})
	return st, err
}

func (e *Environment) Info() (backend.Info, error) {
	s := e.db.Stats()
	return backend.Info{
		MapSize:  uint64(e.dbSizeOnDisk()),
		LastTxnID: uint64(s.TxN),
	}, nil
}

func (e *Environment) Freelist() (uint64, error) {
	s := e.db.Stats()
	return uint64(s.FreePageN + s.PendingPageN), nil
}

// LoadRatio computes (last-page - freelist) / (map-size / page-size). bbolt
// doesn't expose the meta page's high-water mark directly, so the last page
// number is derived from the on-disk file size, which for bbolt is exactly
// the number of pages it has ever allocated.
func (e *Environment) LoadRatio() (float64, error) {
	info := e.db.Info()
	if info.PageSize <= 0 {
		return 0, fmt.Errorf("boltengine: unknown page size")
	}
	size := e.dbSizeOnDisk()
	pageSize := uint64(info.PageSize)
	lastPage := uint64(size) / pageSize
	freelist, err := e.Freelist()
	if err != nil {
		return 0, err
	}
	if freelist > lastPage {
		return 0, fmt.Errorf("boltengine: freelist %d exceeds last page %d: %w", freelist, lastPage, backend.ErrFileInvalid)
	}
	mapPages := uint64(size) / pageSize
	if mapPages == 0 {
		return 0, nil
	}
	return float64(lastPage-freelist) / float64(mapPages), nil
}

func (e *Environment) dbSizeOnDisk() int64 {
	fi, err := os.Stat(filepath.Join(e.path, "data.bolt"))
	if err != nil {
		return 0
	}
	return fi.Size()
}

func (e *Environment) SetMapSize(size int64) error { return nil }

func (e *Environment) FilesOnDisk() []string {
	return []string{filepath.Join(e.path, "data.bolt")}
}

func (e *Environment) Close() error { return e.db.Close() }

// Database is a bbolt-backed rkv database: a top-level bucket, plus (for
// DUP_SORT databases) one nested bucket per key holding its value set.
type Database struct {
	name  string
	flags backend.DatabaseFlags
}

func (d *Database) Name() string { return d.name }

func (d *Database) Flags() backend.DatabaseFlags { return d.flags }
