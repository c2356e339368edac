// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package safemode

import "bytes"

// Cursor walks a snapshot's sorted keys and, within a key, its sorted value
// run. The snapshot is already a private clone held by the owning
// transaction, so the cursor needs no locking of its own.
type Cursor struct {
	s      *snapshot
	keys   []string
	pos    int
	valIdx int

	dupKey []byte
	dupPos int
}

func newCursor(s *snapshot) *Cursor {
	return &Cursor{s: s, keys: s.sortedKeys(), pos: -1}
}

// at returns the pair at (pos, valIdx), skipping forward over any key whose
// value set is exhausted. A full scan walks every value of every key's
// value set, not just the first, so it enumerates duplicates too.
func (c *Cursor) at() (key, value []byte, ok bool) {
	for c.pos >= 0 && c.pos < len(c.keys) {
		k := c.keys[c.pos]
		set := c.s.m[k]
		if c.valIdx < len(set.values) {
			return []byte(k), set.values[c.valIdx], true
		}
		c.pos++
		c.valIdx = 0
	}
	return nil, nil, false
}

func (c *Cursor) First() (key, value []byte, ok bool) {
	c.pos = 0
	c.valIdx = 0
	return c.at()
}

func (c *Cursor) Next() (key, value []byte, ok bool) {
	c.valIdx++
	return c.at()
}

func (c *Cursor) Seek(k []byte) (key, value []byte, ok bool) {
	for i, kk := range c.keys {
		if bytes.Compare([]byte(kk), k) >= 0 {
			c.pos = i
			c.valIdx = 0
			return c.at()
		}
	}
	c.pos = len(c.keys)
	c.valIdx = 0
	return nil, nil, false
}

func (c *Cursor) SeekDup(k, v []byte) (key, value []byte, ok bool) {
	c.dupKey = k
	set, exists := c.s.m[string(k)]
	if !exists {
		c.dupPos = 0
		return nil, nil, false
	}
	if v == nil {
		c.dupPos = 0
		return c.atDup(set)
	}
	i, _ := set.search(v)
	c.dupPos = i
	return c.atDup(set)
}

func (c *Cursor) atDup(set *valueSet) (key, value []byte, ok bool) {
	if c.dupPos < 0 || c.dupPos >= len(set.values) {
		return nil, nil, false
	}
	return c.dupKey, set.values[c.dupPos], true
}

func (c *Cursor) NextDup() (key, value []byte, ok bool) {
	set, exists := c.s.m[string(c.dupKey)]
	if !exists {
		return nil, nil, false
	}
	c.dupPos++
	return c.atDup(set)
}

func (c *Cursor) Close() {}
