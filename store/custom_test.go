// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"testing"

	"github.com/kvshelf/rkv/value"
)

// compositeKey is a two-part key (tenant, id) with a deterministic,
// order-preserving encoding: fixed-width tenant followed by id.
type compositeKey struct {
	tenant uint16
	id     uint32
}

func (k compositeKey) EncodeKey() []byte {
	b := make([]byte, 6)
	b[0] = byte(k.tenant >> 8)
	b[1] = byte(k.tenant)
	b[2] = byte(k.id >> 24)
	b[3] = byte(k.id >> 16)
	b[4] = byte(k.id >> 8)
	b[5] = byte(k.id)
	return b
}

func TestCustomStorePutGetDelete(t *testing.T) {
	env := newTestEnv(t)
	s, err := OpenCustom[compositeKey](env, "accounts", 0)
	if err != nil {
		t.Fatalf("OpenCustom: %v", err)
	}

	k := compositeKey{tenant: 7, id: 42}

	w, _ := env.Write(ctx())
	if err := s.Put(w, k, value.Str("acme")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, _ := env.Read(ctx())
	got, ok, err := s.Get(r, k)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected value")
	}
	if str, _ := got.AsStr(); str != "acme" {
		t.Fatalf("got %q, want %q", str, "acme")
	}
	r.Abort()

	w2, _ := env.Write(ctx())
	if err := s.Delete(w2, k); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := w2.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r2, _ := env.Read(ctx())
	defer r2.Abort()
	if _, ok, _ := s.Get(r2, k); ok {
		t.Fatal("expected key to be gone after Delete")
	}
}

func TestCustomStoreIterationOrder(t *testing.T) {
	env := newTestEnv(t)
	s, err := OpenCustom[compositeKey](env, "accounts", 0)
	if err != nil {
		t.Fatalf("OpenCustom: %v", err)
	}

	w, _ := env.Write(ctx())
	keys := []compositeKey{
		{tenant: 2, id: 1},
		{tenant: 1, id: 99},
		{tenant: 1, id: 5},
	}
	for _, k := range keys {
		if err := s.Put(w, k, value.U64(uint64(k.id))); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, _ := env.Read(ctx())
	defer r.Abort()
	cur, err := s.IterStart(r)
	if err != nil {
		t.Fatalf("IterStart: %v", err)
	}
	defer cur.Close()

	var order []uint32
	for {
		_, v, ok, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		n, _ := v.AsU64()
		order = append(order, uint32(n))
	}
	want := []uint32{5, 99, 1} // (tenant=1,id=5) < (tenant=1,id=99) < (tenant=2,id=1)
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}
