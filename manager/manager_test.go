// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package manager

import (
	"context"
	"sync"
	"testing"

	"github.com/kvshelf/rkv"
)

func openSafeMode(path string) (*rkv.Environment, error) {
	return rkv.NewEnvironmentBuilder(rkv.SafeMode).SetMakeDirIfNeeded(true).Open(path)
}

func TestGetOrCreateReturnsSameEnvironment(t *testing.T) {
	m := New()
	dir := t.TempDir()

	env1, err := m.GetOrCreate(dir, rkv.SafeMode, openSafeMode)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	env2, err := m.GetOrCreate(dir, rkv.SafeMode, openSafeMode)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if env1 != env2 {
		t.Fatal("expected the same *rkv.Environment for repeated opens of the same path/kind")
	}

	if got, ok := m.Get(dir, rkv.SafeMode); !ok || got != env1 {
		t.Fatal("Get did not return the registered environment")
	}

	if err := m.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
}

func TestGetOrCreateDifferentKindsAreDistinct(t *testing.T) {
	m := New()
	defer m.CloseAll()
	dir := t.TempDir()

	safeEnv, err := m.GetOrCreate(dir, rkv.SafeMode, openSafeMode)
	if err != nil {
		t.Fatalf("GetOrCreate(SafeMode): %v", err)
	}
	boltEnv, err := m.GetOrCreate(dir, rkv.Bolt, func(path string) (*rkv.Environment, error) {
		return rkv.NewEnvironmentBuilder(rkv.Bolt).SetMakeDirIfNeeded(true).Open(path)
	})
	if err != nil {
		t.Fatalf("GetOrCreate(Bolt): %v", err)
	}
	if safeEnv == boltEnv {
		t.Fatal("expected distinct environments for distinct backend kinds at the same path")
	}
}

func TestReleaseClosesOnLastReference(t *testing.T) {
	m := New()
	dir := t.TempDir()

	if _, err := m.GetOrCreate(dir, rkv.SafeMode, openSafeMode); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := m.GetOrCreate(dir, rkv.SafeMode, openSafeMode); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if err := m.Release(dir, rkv.SafeMode); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := m.Get(dir, rkv.SafeMode); !ok {
		t.Fatal("expected the environment to still be registered after one of two releases")
	}

	if err := m.Release(dir, rkv.SafeMode); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := m.Get(dir, rkv.SafeMode); ok {
		t.Fatal("expected the environment to be gone after its last release")
	}
}

func TestCloseAllLeavesOutstandingReferencesOpen(t *testing.T) {
	m := New()
	dir := t.TempDir()

	env, err := m.GetOrCreate(dir, rkv.SafeMode, openSafeMode)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := m.GetOrCreate(dir, rkv.SafeMode, openSafeMode); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if err := m.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if _, ok := m.Get(dir, rkv.SafeMode); !ok {
		t.Fatal("expected the environment to still be registered after CloseAll with an outstanding reference")
	}

	// The outstanding reference must still be usable.
	r, err := env.Read(context.Background())
	if err != nil {
		t.Fatalf("Read on outstanding reference after CloseAll: %v", err)
	}
	r.Abort()

	if err := m.Release(dir, rkv.SafeMode); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := m.Get(dir, rkv.SafeMode); ok {
		t.Fatal("expected the environment to be gone after its last reference is released")
	}
}

func TestGetOrCreateConcurrentCallsDedupe(t *testing.T) {
	m := New()
	defer m.CloseAll()
	dir := t.TempDir()

	const n = 8
	envs := make([]*rkv.Environment, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			envs[i], errs[i] = m.GetOrCreate(dir, rkv.SafeMode, openSafeMode)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("GetOrCreate[%d]: %v", i, err)
		}
		if envs[i] != envs[0] {
			t.Fatalf("goroutine %d got a different environment than goroutine 0", i)
		}
	}
}
