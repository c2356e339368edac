// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package safemode

import (
	"bytes"
	"sort"
)

// valueSet is a sorted, deduplicated set of values stored under one key,
// standing in for the BTreeSet<Box<[u8]>> of the implementation this engine
// is modeled on.
type valueSet struct {
	values [][]byte
}

func (s *valueSet) search(v []byte) (int, bool) {
	i := sort.Search(len(s.values), func(i int) bool { return bytes.Compare(s.values[i], v) >= 0 })
	return i, i < len(s.values) && bytes.Equal(s.values[i], v)
}

func (s *valueSet) insert(v []byte) {
	i, found := s.search(v)
	if found {
		return
	}
	s.values = append(s.values, nil)
	copy(s.values[i+1:], s.values[i:])
	s.values[i] = v
}

func (s *valueSet) remove(v []byte) bool {
	i, found := s.search(v)
	if !found {
		return false
	}
	s.values = append(s.values[:i], s.values[i+1:]...)
	return true
}

func (s *valueSet) clone() *valueSet {
	cp := make([][]byte, len(s.values))
	for i, v := range s.values {
		b := make([]byte, len(v))
		copy(b, v)
		cp[i] = b
	}
	return &valueSet{values: cp}
}

// snapshot is one database's entire in-memory state at a point in time.
type snapshot struct {
	m map[string]*valueSet
}

func newSnapshot() *snapshot { return &snapshot{m: make(map[string]*valueSet)} }

func (s *snapshot) entry(key []byte) *valueSet {
	k := string(key)
	set, ok := s.m[k]
	if !ok {
		set = &valueSet{}
		s.m[k] = set
	}
	return set
}

func (s *snapshot) get(key []byte) ([]byte, bool) {
	set, ok := s.m[string(key)]
	if !ok || len(set.values) == 0 {
		return nil, false
	}
	return set.values[0], true
}

func (s *snapshot) putOne(key, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	s.m[string(key)] = &valueSet{values: [][]byte{v}}
}

func (s *snapshot) putDup(key, value []byte) bool {
	set := s.entry(key)
	if _, found := set.search(value); found {
		return false
	}
	v := make([]byte, len(value))
	copy(v, value)
	set.insert(v)
	return true
}

func (s *snapshot) delExact(key, value []byte) bool {
	set, ok := s.m[string(key)]
	if !ok {
		return false
	}
	return set.remove(value)
}

func (s *snapshot) delAll(key []byte) bool {
	k := string(key)
	set, ok := s.m[k]
	if !ok || len(set.values) == 0 {
		return false
	}
	delete(s.m, k)
	return true
}

func (s *snapshot) clear() { s.m = make(map[string]*valueSet) }

func (s *snapshot) sortedKeys() []string {
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *snapshot) clone() *snapshot {
	cp := newSnapshot()
	for k, set := range s.m {
		cp.m[k] = set.clone()
	}
	return cp
}
