// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package safemode

import (
	"context"
	"testing"

	"github.com/kvshelf/rkv/backend"
)

func TestOpenDBFailsWhileReaderIsLive(t *testing.T) {
	env, err := NewBuilder().SetMakeDirIfNeeded(true).Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := env.CreateDB("things", 0); err != nil {
		t.Fatalf("CreateDB: %v", err)
	}

	r, err := env.BeginRoTxn(context.Background())
	if err != nil {
		t.Fatalf("BeginRoTxn: %v", err)
	}

	if _, err := env.CreateDB("more", 0); err != backend.ErrDbsIllegalOpen {
		t.Fatalf("CreateDB while a reader is live: got %v, want ErrDbsIllegalOpen", err)
	}
	if _, err := env.OpenDB("things"); err != backend.ErrDbsIllegalOpen {
		t.Fatalf("OpenDB while a reader is live: got %v, want ErrDbsIllegalOpen", err)
	}

	r.Abort()

	if _, err := env.CreateDB("more", 0); err != nil {
		t.Fatalf("CreateDB after the reader ended: %v", err)
	}
}

func TestOpenDBAllowedOnceEveryReaderHasEnded(t *testing.T) {
	env, err := NewBuilder().SetMakeDirIfNeeded(true).Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := env.CreateDB("things", 0); err != nil {
		t.Fatalf("CreateDB: %v", err)
	}

	r1, err := env.BeginRoTxn(context.Background())
	if err != nil {
		t.Fatalf("BeginRoTxn: %v", err)
	}
	r2, err := env.BeginRoTxn(context.Background())
	if err != nil {
		t.Fatalf("BeginRoTxn: %v", err)
	}

	r1.Abort()
	if _, err := env.CreateDB("more", 0); err != backend.ErrDbsIllegalOpen {
		t.Fatalf("CreateDB with one of two readers still live: got %v, want ErrDbsIllegalOpen", err)
	}

	r2.Abort()
	if _, err := env.CreateDB("more", 0); err != nil {
		t.Fatalf("CreateDB after every reader ended: %v", err)
	}
}

func TestRoTxnAbortIsIdempotent(t *testing.T) {
	env, err := NewBuilder().SetMakeDirIfNeeded(true).Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r, err := env.BeginRoTxn(context.Background())
	if err != nil {
		t.Fatalf("BeginRoTxn: %v", err)
	}
	r.Abort()
	r.Abort()

	if _, err := env.CreateDB("things", 0); err != nil {
		t.Fatalf("CreateDB after a double Abort: %v", err)
	}
}

func TestReopenReloadsPersistedData(t *testing.T) {
	dir := t.TempDir()

	env1, err := NewBuilder().SetMakeDirIfNeeded(true).Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db, err := env1.CreateDB("things", 0)
	if err != nil {
		t.Fatalf("CreateDB: %v", err)
	}
	w, err := env1.BeginRwTxn(context.Background())
	if err != nil {
		t.Fatalf("BeginRwTxn: %v", err)
	}
	if err := w.Put(db, []byte("k"), []byte("v"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := env1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	env2, err := NewBuilder().Open(dir)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	db2, err := env2.OpenDB("things")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	r, err := env2.BeginRoTxn(context.Background())
	if err != nil {
		t.Fatalf("BeginRoTxn: %v", err)
	}
	defer r.Abort()
	got, err := r.Get(db2, []byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}
}
