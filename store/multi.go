// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"github.com/kvshelf/rkv"
	"github.com/kvshelf/rkv/backend"
	"github.com/kvshelf/rkv/value"
)

// MultiStore associates each key with an ordered, possibly-empty set of
// values (a DUP_SORT database).
type MultiStore struct {
	env *rkv.Environment
	db  backend.Database
}

// OpenMulti opens (creating if needed) a multi-valued database.
func OpenMulti(env *rkv.Environment, name string, dupFixed bool) (*MultiStore, error) {
	flags := backend.DupSort
	if dupFixed {
		flags |= backend.DupFixed
	}
	db, err := env.CreateDB(name, flags)
	if err != nil {
		return nil, err
	}
	return &MultiStore{env: env, db: db}, nil
}

func (s *MultiStore) checkEnv(got *rkv.Environment) error {
	if got != s.env {
		return rkv.NewError(rkv.InvalidTransaction, "store used with a transaction from a different environment")
	}
	return nil
}

// MultiIter iterates the run of values stored under a single key.
type MultiIter struct {
	cur     backend.Cursor
	key     []byte
	started bool
}

// Get returns an iterator over every value stored under k.
func (s *MultiStore) Get(r *rkv.Reader, k []byte) (*MultiIter, error) {
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
	return &MultiIter{cur: cur, key: k}, nil
}

// GetFirst returns just the first value stored under k.
func (s *MultiStore) GetFirst(r *rkv.Reader, k []byte) (value.Value, bool, error) {
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

// Put inserts v under k, permitting duplicate entries.
func (s *MultiStore) Put(w *rkv.Writer, k []byte, v value.Value) error {
	return s.PutWithFlags(w, k, v, 0)
}

// PutWithFlags is Put, honoring flags (e.g. NoDupData to reject an exact
// key/value pair that already exists).
func (s *MultiStore) PutWithFlags(w *rkv.Writer, k []byte, v value.Value, flags backend.WriteFlags) error {
	if err := s.checkEnv(w.Env()); err != nil {
		return err
	}
	txn, err := w.Txn()
	if err != nil {
		return err
	}
	encoded := value.Encode(v)
	err = putTransform(txn.Put(s.db, k, encoded, flags))
	if err == nil {
		w.RecordPut(len(encoded))
	}
	return err
}

// DeleteAll removes every value stored under k.
func (s *MultiStore) DeleteAll(w *rkv.Writer, k []byte) error {
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

// Delete removes only the single key/value pair (k, v).
func (s *MultiStore) Delete(w *rkv.Writer, k []byte, v value.Value) error {
	if err := s.checkEnv(w.Env()); err != nil {
		return err
	}
	txn, err := w.Txn()
	if err != nil {
		return err
	}
	err = putTransform(txn.Del(s.db, k, value.Encode(v)))
	if err == nil {
		w.RecordDelete()
	}
	return err
}

// Clear removes every key (and all of its duplicate values) from the store.
func (s *MultiStore) Clear(w *rkv.Writer) error {
	if err := s.checkEnv(w.Env()); err != nil {
		return err
	}
	txn, err := w.Txn()
	if err != nil {
		return err
	}
	return putTransform(txn.Clear(s.db))
}

// Next advances the iterator, decoding the value it lands on. ok is false
// once the key's value run is exhausted.
func (it *MultiIter) Next() (v value.Value, ok bool, err error) {
	var rawKey, rawVal []byte
	if !it.started {
		it.started = true
		rawKey, rawVal, ok = it.cur.SeekDup(it.key, nil)
	} else {
		rawKey, rawVal, ok = it.cur.NextDup()
	}
	if !ok || rawKey == nil {
		return value.Value{}, false, nil
	}
	dv, derr := value.Decode(rawVal)
	if derr != nil {
		return value.Value{}, false, rkv.NewError(rkv.DataError, "%v", derr)
	}
	return dv, true, nil
}

// Close releases the iterator's cursor.
func (it *MultiIter) Close() { it.cur.Close() }
