// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package boltengine

import (
	bolt "go.etcd.io/bbolt"

	"github.com/kvshelf/rkv/backend"
)

// RoTxn wraps a read-only *bolt.Tx.
type RoTxn struct {
	tx *bolt.Tx
}

func (t *RoTxn) bucket(db backend.Database) *bolt.Bucket {
	return t.tx.Bucket(bucketName(db.Name()))
}

func (t *RoTxn) Get(db backend.Database, key []byte) ([]byte, error) {
	b := t.bucket(db)
	if b == nil {
		return nil, backend.ErrNotFound
	}
	d := db.(*Database)
	if d.flags.Has(backend.DupSort) {
		sub := b.Bucket(key)
		if sub == nil {
			return nil, backend.ErrNotFound
		}
		k, _ := sub.Cursor().First()
		if k == nil {
			return nil, backend.ErrNotFound
		}
		return cloneBytes(k), nil
	}
	v := b.Get(key)
	if v == nil {
		return nil, backend.ErrNotFound
	}
	return cloneBytes(v), nil
}

func (t *RoTxn) OpenCursor(db backend.Database) (backend.Cursor, error) {
	b := t.bucket(db)
	if b == nil {
		return nil, backend.ErrNotFound
	}
	return &Cursor{bucket: b, flags: db.(*Database).flags}, nil
}

func (t *RoTxn) Abort() { t.tx.Rollback() }

// RwTxn wraps a writable *bolt.Tx.
type RwTxn struct {
	RoTxn
}

func (t *RwTxn) Put(db backend.Database, key, value []byte, flags backend.WriteFlags) error {
	b := t.bucket(db)
	if b == nil {
		return backend.ErrNotFound
	}
	d := db.(*Database)
	if d.flags.Has(backend.DupSort) {
		sub, err := b.CreateBucketIfNotExists(key)
		if err != nil {
			return err
		}
		if flags.Has(backend.NoDupData) && sub.Get(value) != nil {
			return backend.ErrKeyExists
		}
		return sub.Put(value, []byte{1})
	}
	if flags.Has(backend.NoOverwrite) && b.Get(key) != nil {
		return backend.ErrKeyExists
	}
	return b.Put(key, value)
}

func (t *RwTxn) Del(db backend.Database, key, value []byte) error {
	b := t.bucket(db)
	if b == nil {
		return backend.ErrNotFound
	}
	d := db.(*Database)
	if d.flags.Has(backend.DupSort) {
		sub := b.Bucket(key)
		if sub == nil {
			return backend.ErrNotFound
		}
		if value == nil {
			return b.DeleteBucket(key)
		}
		if sub.Get(value) == nil {
			return backend.ErrNotFound
		}
		return sub.Delete(value)
	}
	if b.Get(key) == nil {
		return backend.ErrNotFound
	}
	return b.Delete(key)
}

func (t *RwTxn) Clear(db backend.Database) error {
	name := bucketName(db.Name())
	if err := t.tx.DeleteBucket(name); err != nil {
		return err
	}
	_, err := t.tx.CreateBucket(name)
	return err
}

func (t *RwTxn) Commit() error { return t.tx.Commit() }

func cloneBytes(b []byte) []byte {
	cpy := make([]byte, len(b))
	copy(cpy, b)
	return cpy
}
