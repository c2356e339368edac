// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package rkv is an embedded, transactional key-value store with a single
// façade over three storage engines: a memory-mapped B+tree (backend/boltengine,
// the default), a pure in-process MVCC engine with no cgo and no mmap
// (backend/safemode), and a SQL-backed engine (backend/sqlengine). A caller
// picks a Kind, builds an *Environment rooted at a directory with
// NewEnvironmentBuilder, opens typed Stores (see the store package) on it,
// and issues Gets and Puts inside explicit Read or Write transactions.
//
// A Reader observes a stable snapshot for its whole lifetime, unaffected by
// concurrent or later writers; an Environment admits only one live Writer at
// a time. Neither kind of transaction outlives its Commit/Abort call without
// becoming an error to use further — rkv has no borrow checker, so this is
// enforced with a runtime "closed" flag rather than at compile time.
//
// Typical use:
//
//	env, err := rkv.NewEnvironmentBuilder(rkv.Bolt).SetMakeDirIfNeeded(true).Open("/tmp/mydb")
//	single, err := store.OpenSingle(env, "mystore")
//	w, err := env.Write(ctx)
//	err = single.Put(w, []byte("a"), value.Str("1"))
//	err = w.Commit()
//
// Multiple processes should not open the same directory concurrently with
// two different *Environment values; within one process, package manager
// enforces that at most one *Environment exists per (canonical path,
// backend kind) pair.
package rkv
