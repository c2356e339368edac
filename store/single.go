// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package store provides the typed façade (SingleStore, MultiStore,
// IntegerStore, MultiIntegerStore) over a raw backend.Database: encoding and
// decoding rkv/value.Value on the way in and out, and refusing to operate on
// a transaction from a different Environment than the one the store was
// opened in.
package store

import (
	"github.com/kvshelf/rkv"
	"github.com/kvshelf/rkv/backend"
	"github.com/kvshelf/rkv/value"
)

// SingleStore associates each key with at most one value.
type SingleStore struct {
	env   *rkv.Environment
	db    backend.Database
	flags backend.DatabaseFlags
}

// OpenSingle opens (creating if needed) a single-valued database.
func OpenSingle(env *rkv.Environment, name string) (*SingleStore, error) {
	return openSingleWithFlags(env, name, 0)
}

func openSingleWithFlags(env *rkv.Environment, name string, flags backend.DatabaseFlags) (*SingleStore, error) {
	db, err := env.CreateDB(name, flags)
	if err != nil {
		return nil, err
	}
	return &SingleStore{env: env, db: db, flags: flags}, nil
}

func (s *SingleStore) checkEnv(got *rkv.Environment) error {
	if got != s.env {
		return rkv.NewError(rkv.InvalidTransaction, "store used with a transaction from a different environment")
	}
	return nil
}

// Get returns the value stored under k, or (Value{}, false, nil) if absent.
func (s *SingleStore) Get(r *rkv.Reader, k []byte) (value.Value, bool, error) {
	if err := s.checkEnv(r.Env()); err != nil {
		return value.Value{}, false, err
	}
	txn, err := r.Txn()
	if err != nil {
		return value.Value{}, false, err
	}
	bytes, err := txn.Get(s.db, k)
	r.RecordRead(len(bytes))
	return readTransform(bytes, err)
}

// Put stores v under k, overwriting any existing value.
func (s *SingleStore) Put(w *rkv.Writer, k []byte, v value.Value) error {
	if err := s.checkEnv(w.Env()); err != nil {
		return err
	}
	txn, err := w.Txn()
	if err != nil {
		return err
	}
	encoded := value.Encode(v)
	err = putTransform(txn.Put(s.db, k, encoded, 0))
	if err == nil {
		w.RecordPut(len(encoded))
	}
	return err
}

// Delete removes k. It fails with a KeyValuePairNotFound error if k is
// absent.
func (s *SingleStore) Delete(w *rkv.Writer, k []byte) error {
	if err := s.checkEnv(w.Env()); err != nil {
		return err
	}
	txn, err := w.Txn()
	if err != nil {
		return err
	}
	err = putTransform(txn.Del(s.db, k, nil))
	if err == nil {
		w.RecordDelete()
	}
	return err
}

// Clear removes every key from the store.
func (s *SingleStore) Clear(w *rkv.Writer) error {
	if err := s.checkEnv(w.Env()); err != nil {
		return err
	}
	txn, err := w.Txn()
	if err != nil {
		return err
	}
	return putTransform(txn.Clear(s.db))
}

// Cursor iterates the store's key/value pairs in key order.
type Cursor struct {
	cur     backend.Cursor
	started bool
	seekKey []byte
}

// IterStart returns a Cursor positioned before the first key.
func (s *SingleStore) IterStart(r *rkv.Reader) (*Cursor, error) {
	if err := s.checkEnv(r.Env()); err != nil {
		return nil, err
	}
	txn, err := r.Txn()
	if err != nil {
		return nil, err
	}
	cur, err := txn.OpenCursor(s.db)
	if err != nil {
		return nil, rkv.WrapError(rkv.BackendErr, err)
	}
	return &Cursor{cur: cur}, nil
}

// IterFrom returns a Cursor positioned at the first key >= k.
func (s *SingleStore) IterFrom(r *rkv.Reader, k []byte) (*Cursor, error) {
	c, err := s.IterStart(r)
	if err != nil {
		return nil, err
	}
	c.seekKey = k
	return c, nil
}

// Next advances the cursor and returns the pair it lands on, decoding the
// stored value. ok is false once iteration is exhausted.
func (c *Cursor) Next() (key []byte, v value.Value, ok bool, err error) {
	var rawKey, rawVal []byte
	if !c.started {
		c.started = true
		if c.seekKey != nil {
			rawKey, rawVal, ok = c.cur.Seek(c.seekKey)
		} else {
			rawKey, rawVal, ok = c.cur.First()
		}
	} else {
		rawKey, rawVal, ok = c.cur.Next()
	}
	if !ok {
		return nil, value.Value{}, false, nil
	}
	dv, err := value.Decode(rawVal)
	if err != nil {
		return nil, value.Value{}, false, rkv.NewError(rkv.DataError, "%v", err)
	}
	return rawKey, dv, true, nil
}

// Close releases the cursor. Safe to call more than once.
func (c *Cursor) Close() { c.cur.Close() }

func readTransform(bytes []byte, err error) (value.Value, bool, error) {
	if err != nil {
		wrapped := rkv.FromBackendError(err)
		if rkv.IsNotFound(wrapped) {
			return value.Value{}, false, nil
		}
		return value.Value{}, false, wrapped
	}
	v, derr := value.Decode(bytes)
	if derr != nil {
		return value.Value{}, false, rkv.NewError(rkv.DataError, "%v", derr)
	}
	return v, true, nil
}

func putTransform(err error) error {
	if err == nil {
		return nil
	}
	return rkv.FromBackendError(err)
}
