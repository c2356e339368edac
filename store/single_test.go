// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"testing"

	"github.com/kvshelf/rkv/value"
)

func TestSingleStorePutGet(t *testing.T) {
	env := newTestEnv(t)
	s, err := OpenSingle(env, "things")
	if err != nil {
		t.Fatalf("OpenSingle: %v", err)
	}

	w, err := env.Write(ctx())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Put(w, []byte("a"), value.Str("apple")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, err := env.Read(ctx())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer r.Abort()

	got, ok, err := s.Get(r, []byte("a"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get: expected a value")
	}
	str, _ := got.AsStr()
	if str != "apple" {
		t.Fatalf("Get: got %q, want %q", str, "apple")
	}

	_, ok, err = s.Get(r, []byte("missing"))
	if err != nil {
		t.Fatalf("Get(missing): %v", err)
	}
	if ok {
		t.Fatal("Get(missing): expected absent")
	}
}

func TestSingleStoreOverwriteAndDelete(t *testing.T) {
	env := newTestEnv(t)
	s, err := OpenSingle(env, "things")
	if err != nil {
		t.Fatalf("OpenSingle: %v", err)
	}

	w, _ := env.Write(ctx())
	_ = s.Put(w, []byte("a"), value.U64(1))
	_ = s.Put(w, []byte("a"), value.U64(2))
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, _ := env.Read(ctx())
	got, ok, _ := s.Get(r, []byte("a"))
	if !ok {
		t.Fatal("expected value after overwrite")
	}
	if n, _ := got.AsU64(); n != 2 {
		t.Fatalf("got %d, want 2 (overwrite should win)", n)
	}
	r.Abort()

	w2, _ := env.Write(ctx())
	if err := s.Delete(w2, []byte("a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := w2.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r2, _ := env.Read(ctx())
	defer r2.Abort()
	_, ok, _ = s.Get(r2, []byte("a"))
	if ok {
		t.Fatal("expected key to be gone after Delete")
	}
}

func TestSingleStoreIteration(t *testing.T) {
	env := newTestEnv(t)
	s, err := OpenSingle(env, "things")
	if err != nil {
		t.Fatalf("OpenSingle: %v", err)
	}

	w, _ := env.Write(ctx())
	for _, k := range []string{"b", "a", "c"} {
		if err := s.Put(w, []byte(k), value.Str(k)); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
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

	var keys []string
	for {
		k, _, ok, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		keys = append(keys, string(k))
	}
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("got %v, want %v", keys, want)
		}
	}
}

func TestSingleStoreCrossEnvironmentRejected(t *testing.T) {
	envA := newTestEnv(t)
	envB := newTestEnv(t)

	s, err := OpenSingle(envA, "things")
	if err != nil {
		t.Fatalf("OpenSingle: %v", err)
	}

	wB, err := envB.Write(ctx())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	defer wB.Abort()

	if err := s.Put(wB, []byte("a"), value.Bool(true)); err == nil {
		t.Fatal("expected error using a store with a transaction from a different environment")
	}
}

func TestSingleStoreClear(t *testing.T) {
	env := newTestEnv(t)
	s, err := OpenSingle(env, "things")
	if err != nil {
		t.Fatalf("OpenSingle: %v", err)
	}

	w, _ := env.Write(ctx())
	_ = s.Put(w, []byte("a"), value.U64(1))
	_ = s.Put(w, []byte("b"), value.U64(2))
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
	cur, _ := s.IterStart(r)
	defer cur.Close()
	_, _, ok, _ := cur.Next()
	if ok {
		t.Fatal("expected store to be empty after Clear")
	}
}
