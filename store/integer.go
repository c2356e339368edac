// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"encoding/binary"

	"github.com/kvshelf/rkv"
	"github.com/kvshelf/rkv/backend"
	"github.com/kvshelf/rkv/value"
)

// PrimitiveInt is the set of integer key types IntegerStore and
// MultiIntegerStore accept. Keys are encoded big-endian so that byte
// comparison (used by every backend's IntegerKey database) matches numeric
// order.
type PrimitiveInt interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64
}

func encodeKey[K PrimitiveInt](k K) []byte {
	switch v := any(k).(type) {
	case uint8:
		return []byte{v}
	case int8:
		return []byte{byte(v) ^ 0x80}
	case uint16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, v)
		return b
	case int16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v)^(1<<15))
		return b
	case uint32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b
	case int32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v)^(1<<31))
		return b
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v)
		return b
	case int64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v)^(1<<63))
		return b
	default:
		panic("store: unsupported PrimitiveInt type")
	}
}

// IntegerStore is a SingleStore keyed by a fixed-width integer.
type IntegerStore[K PrimitiveInt] struct {
	inner *SingleStore
}

// OpenInteger opens (creating if needed) a single-valued, integer-keyed
// database.
func OpenInteger[K PrimitiveInt](env *rkv.Environment, name string) (*IntegerStore[K], error) {
	inner, err := openSingleWithFlags(env, name, backend.IntegerKey)
	if err != nil {
		return nil, err
	}
	return &IntegerStore[K]{inner: inner}, nil
}

func (s *IntegerStore[K]) Get(r *rkv.Reader, k K) (value.Value, bool, error) {
	return s.inner.Get(r, encodeKey(k))
}

func (s *IntegerStore[K]) Put(w *rkv.Writer, k K, v value.Value) error {
	return s.inner.Put(w, encodeKey(k), v)
}

func (s *IntegerStore[K]) Delete(w *rkv.Writer, k K) error {
	return s.inner.Delete(w, encodeKey(k))
}

// Clear removes every key from the store.
func (s *IntegerStore[K]) Clear(w *rkv.Writer) error {
	return s.inner.Clear(w)
}

// IterStart returns a Cursor positioned before the first key, in numeric
// order (the underlying database is IntegerKey, so byte order and numeric
// order of the big-endian encoded keys coincide).
func (s *IntegerStore[K]) IterStart(r *rkv.Reader) (*Cursor, error) {
	return s.inner.IterStart(r)
}

// IterFrom returns a Cursor positioned at the first key >= k.
func (s *IntegerStore[K]) IterFrom(r *rkv.Reader, k K) (*Cursor, error) {
	return s.inner.IterFrom(r, encodeKey(k))
}

// KeyCodec is the escape hatch for keys that aren't one of the PrimitiveInt
// types but still want a deterministic, order-preserving byte encoding
// (e.g. a composite key, or a fixed-point decimal). Types implementing it
// can be used with CustomStore the way OpenInteger uses the builtin integer
// types.
type KeyCodec interface {
	EncodeKey() []byte
}

// CustomStore is a SingleStore keyed by any type implementing KeyCodec.
type CustomStore[K KeyCodec] struct {
	inner *SingleStore
}

// OpenCustom opens (creating if needed) a single-valued database keyed by a
// KeyCodec-encoded key. flags lets the caller opt into IntegerKey when the
// codec's output happens to be a fixed-width big-endian integer.
func OpenCustom[K KeyCodec](env *rkv.Environment, name string, flags backend.DatabaseFlags) (*CustomStore[K], error) {
	inner, err := openSingleWithFlags(env, name, flags)
	if err != nil {
		return nil, err
	}
	return &CustomStore[K]{inner: inner}, nil
}

func (s *CustomStore[K]) Get(r *rkv.Reader, k K) (value.Value, bool, error) {
	return s.inner.Get(r, k.EncodeKey())
}

func (s *CustomStore[K]) Put(w *rkv.Writer, k K, v value.Value) error {
	return s.inner.Put(w, k.EncodeKey(), v)
}

func (s *CustomStore[K]) Delete(w *rkv.Writer, k K) error {
	return s.inner.Delete(w, k.EncodeKey())
}

// Clear removes every key from the store.
func (s *CustomStore[K]) Clear(w *rkv.Writer) error {
	return s.inner.Clear(w)
}

// IterStart returns a Cursor positioned before the first key, in the
// encoded byte order of K.EncodeKey.
func (s *CustomStore[K]) IterStart(r *rkv.Reader) (*Cursor, error) {
	return s.inner.IterStart(r)
}

// IterFrom returns a Cursor positioned at the first key >= k.
func (s *CustomStore[K]) IterFrom(r *rkv.Reader, k K) (*Cursor, error) {
	return s.inner.IterFrom(r, k.EncodeKey())
}
