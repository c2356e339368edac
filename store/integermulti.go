// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"github.com/kvshelf/rkv"
	"github.com/kvshelf/rkv/backend"
	"github.com/kvshelf/rkv/value"
)

// MultiIntegerStore is a MultiStore keyed by a fixed-width integer.
type MultiIntegerStore[K PrimitiveInt] struct {
	inner *MultiStore
}

// OpenMultiInteger opens (creating if needed) a multi-valued, integer-keyed
// database.
func OpenMultiInteger[K PrimitiveInt](env *rkv.Environment, name string, dupFixed bool) (*MultiIntegerStore[K], error) {
	flags := backend.DupSort | backend.IntegerKey
	if dupFixed {
		flags |= backend.DupFixed
	}
	db, err := env.CreateDB(name, flags)
	if err != nil {
		return nil, err
	}
	return &MultiIntegerStore[K]{inner: &MultiStore{env: env, db: db}}, nil
}

func (s *MultiIntegerStore[K]) Get(r *rkv.Reader, k K) (*MultiIter, error) {
	return s.inner.Get(r, encodeKey(k))
}

func (s *MultiIntegerStore[K]) GetFirst(r *rkv.Reader, k K) (value.Value, bool, error) {
	return s.inner.GetFirst(r, encodeKey(k))
}

func (s *MultiIntegerStore[K]) Put(w *rkv.Writer, k K, v value.Value) error {
	return s.inner.Put(w, encodeKey(k), v)
}

func (s *MultiIntegerStore[K]) PutWithFlags(w *rkv.Writer, k K, v value.Value, flags backend.WriteFlags) error {
	return s.inner.PutWithFlags(w, encodeKey(k), v, flags)
}

func (s *MultiIntegerStore[K]) DeleteAll(w *rkv.Writer, k K) error {
	return s.inner.DeleteAll(w, encodeKey(k))
}

func (s *MultiIntegerStore[K]) Delete(w *rkv.Writer, k K, v value.Value) error {
	return s.inner.Delete(w, encodeKey(k), v)
}

// Clear removes every key (and all of its duplicate values) from the store.
func (s *MultiIntegerStore[K]) Clear(w *rkv.Writer) error {
	return s.inner.Clear(w)
}
