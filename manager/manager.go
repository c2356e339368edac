// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package manager enforces a process-wide invariant the rest of rkv does not:
// at most one *rkv.Environment is ever open for a given (canonical path,
// backend kind) pair at a time. Opening the same environment twice from two
// different *bolt.DB/*sql.DB/in-memory handles would let two writers race
// each other outside rkv's own single-writer guarantee, so callers that want
// that guarantee enforced across their whole process should go through a
// Manager instead of calling rkv.NewEnvironmentBuilder directly.
package manager

import (
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kvshelf/rkv"
)

type key struct {
	path string
	kind rkv.Kind
}

// Manager is a process-wide registry of open Environments, keyed by
// canonical path and backend kind. The zero value is ready to use.
type Manager struct {
	mu    sync.Mutex
	group singleflight.Group
	envs  map[key]*handle
}

type handle struct {
	env      *rkv.Environment
	refCount int
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{envs: make(map[key]*handle)}
}

// GetOrCreate returns the already-open Environment for (path, kind) if one
// exists, incrementing its reference count; otherwise it calls open to
// create one, registers it, and returns it with a reference count of one.
//
// Concurrent GetOrCreate calls for the same (path, kind) that both miss the
// registry are deduplicated by singleflight: only one of them actually calls
// open, and both get back the same *rkv.Environment.
func (m *Manager) GetOrCreate(path string, kind rkv.Kind, open func(string) (*rkv.Environment, error)) (*rkv.Environment, error) {
	canonical, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	k := key{path: canonical, kind: kind}

	m.mu.Lock()
	if h, ok := m.envs[k]; ok {
		h.refCount++
		m.mu.Unlock()
		return h.env, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(canonical+"\x00"+kind.String(), func() (interface{}, error) {
		m.mu.Lock()
		if h, ok := m.envs[k]; ok {
			h.refCount++
			m.mu.Unlock()
			return h.env, nil
		}
		m.mu.Unlock()

		env, err := open(canonical)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if h, ok := m.envs[k]; ok {
			// Lost the race to another singleflight call key collision; close
			// the redundant environment and use the winner's.
			h.refCount++
			env.Close()
			return h.env, nil
		}
		if m.envs == nil {
			m.envs = make(map[key]*handle)
		}
		m.envs[k] = &handle{env: env, refCount: 1}
		return env, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rkv.Environment), nil
}

// Get returns the already-open Environment for (path, kind), or (nil, false)
// if it has not been opened through this Manager.
func (m *Manager) Get(path string, kind rkv.Kind) (*rkv.Environment, bool) {
	canonical, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.envs[key{path: canonical, kind: kind}]
	if !ok {
		return nil, false
	}
	return h.env, true
}

// Release decrements the reference count for (path, kind) and closes the
// underlying Environment once it reaches zero. Releasing an environment not
// tracked by this Manager is a no-op.
func (m *Manager) Release(path string, kind rkv.Kind) error {
	canonical, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	k := key{path: canonical, kind: kind}

	m.mu.Lock()
	h, ok := m.envs[k]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	h.refCount--
	if h.refCount > 0 {
		m.mu.Unlock()
		return nil
	}
	delete(m.envs, k)
	m.mu.Unlock()
	return h.env.Close()
}

// CloseAll releases this Manager's own reference to every environment it has
// open, as if Release had been called once per (path, kind) it is tracking.
// An environment held by other callers (refCount still above zero after the
// decrement) stays open and registered; only environments whose count
// reaches zero are actually closed.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	toClose := make([]*handle, 0, len(m.envs))
	for k, h := range m.envs {
		h.refCount--
		if h.refCount <= 0 {
			toClose = append(toClose, h)
			delete(m.envs, k)
		}
	}
	m.mu.Unlock()

	var firstErr error
	for _, h := range toClose {
		if err := h.env.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
