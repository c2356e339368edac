// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"testing"

	"github.com/kvshelf/rkv/backend"
	"github.com/kvshelf/rkv/value"
)

func TestMultiStoreDuplicateValues(t *testing.T) {
	env := newTestEnv(t)
	s, err := OpenMulti(env, "tags", false)
	if err != nil {
		t.Fatalf("OpenMulti: %v", err)
	}

	w, _ := env.Write(ctx())
	for _, v := range []uint64{3, 1, 2} {
		if err := s.Put(w, []byte("k"), value.U64(v)); err != nil {
			t.Fatalf("Put(%d): %v", v, err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, _ := env.Read(ctx())
	defer r.Abort()

	it, err := s.Get(r, []byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer it.Close()

	var got []uint64
	for {
		v, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		n, _ := v.AsU64()
		got = append(got, n)
	}
	want := []uint64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v (values under one key must come back sorted)", got, want)
		}
	}
}

func TestMultiStoreNoDupData(t *testing.T) {
	env := newTestEnv(t)
	s, err := OpenMulti(env, "tags", false)
	if err != nil {
		t.Fatalf("OpenMulti: %v", err)
	}

	w, _ := env.Write(ctx())
	if err := s.Put(w, []byte("k"), value.U64(1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	err = s.PutWithFlags(w, []byte("k"), value.U64(1), backend.NoDupData)
	if err == nil {
		t.Fatal("expected NoDupData to reject an exact duplicate pair")
	}
	w.Abort()
}

func TestMultiStoreDeleteAllAndDeleteOne(t *testing.T) {
	env := newTestEnv(t)
	s, err := OpenMulti(env, "tags", false)
	if err != nil {
		t.Fatalf("OpenMulti: %v", err)
	}

	w, _ := env.Write(ctx())
	_ = s.Put(w, []byte("k"), value.U64(1))
	_ = s.Put(w, []byte("k"), value.U64(2))
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	w2, _ := env.Write(ctx())
	if err := s.Delete(w2, []byte("k"), value.U64(1)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := w2.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, _ := env.Read(ctx())
	it, _ := s.Get(r, []byte("k"))
	var remaining []uint64
	for {
		v, ok, _ := it.Next()
		if !ok {
			break
		}
		n, _ := v.AsU64()
		remaining = append(remaining, n)
	}
	it.Close()
	r.Abort()
	if len(remaining) != 1 || remaining[0] != 2 {
		t.Fatalf("got %v, want [2]", remaining)
	}

	w3, _ := env.Write(ctx())
	if err := s.DeleteAll(w3, []byte("k")); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if err := w3.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r2, _ := env.Read(ctx())
	defer r2.Abort()
	it2, _ := s.Get(r2, []byte("k"))
	defer it2.Close()
	_, ok, _ := it2.Next()
	if ok {
		t.Fatal("expected no values after DeleteAll")
	}
}

func TestMultiStoreClear(t *testing.T) {
	env := newTestEnv(t)
	s, err := OpenMulti(env, "tags", false)
	if err != nil {
		t.Fatalf("OpenMulti: %v", err)
	}

	w, _ := env.Write(ctx())
	_ = s.Put(w, []byte("k1"), value.U64(1))
	_ = s.Put(w, []byte("k2"), value.U64(2))
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	w2, _ := env.Write(ctx())
	if err := s.Clear(w2); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := w2.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, _ := env.Read(ctx())
	defer r.Abort()
	for _, k := range []string{"k1", "k2"} {
		it, err := s.Get(r, []byte(k))
		if err != nil {
			t.Fatalf("Get(%s): %v", k, err)
		}
		_, ok, _ := it.Next()
		it.Close()
		if ok {
			t.Fatalf("expected %s to be empty after Clear", k)
		}
	}
}

func TestMultiStoreGetFirst(t *testing.T) {
	env := newTestEnv(t)
	s, err := OpenMulti(env, "tags", false)
	if err != nil {
		t.Fatalf("OpenMulti: %v", err)
	}

	w, _ := env.Write(ctx())
	_ = s.Put(w, []byte("k"), value.U64(5))
	_ = s.Put(w, []byte("k"), value.U64(1))
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, _ := env.Read(ctx())
	defer r.Abort()
	v, ok, err := s.GetFirst(r, []byte("k"))
	if err != nil {
		t.Fatalf("GetFirst: %v", err)
	}
	if !ok {
		t.Fatal("expected a value")
	}
	n, _ := v.AsU64()
	if n != 1 {
		t.Fatalf("GetFirst: got %d, want 1 (lowest value in sorted run)", n)
	}
}
