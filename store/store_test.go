// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"testing"

	"github.com/kvshelf/rkv"
)

// newTestEnv opens a fresh safemode environment rooted at a temp directory.
// safemode is pure Go (no cgo, no mmap) so it is the cheapest backend to
// exercise the store façade against; the façade itself is backend-agnostic.
func newTestEnv(t *testing.T) *rkv.Environment {
	t.Helper()
	dir := t.TempDir()
	env, err := rkv.NewEnvironmentBuilder(rkv.SafeMode).
		SetMakeDirIfNeeded(true).
		Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func ctx() context.Context { return context.Background() }
