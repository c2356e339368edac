// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package boltengine

import (
	bolt "go.etcd.io/bbolt"

	"github.com/kvshelf/rkv/backend"
)

// Cursor iterates a bucket's top-level keys. For DUP_SORT databases,
// SeekDup/NextDup descend into the nested bucket for the current key
// instead of walking top-level keys.
type Cursor struct {
	bucket *bolt.Bucket
	cur    *bolt.Cursor
	flags  backend.DatabaseFlags

	dupKey []byte
	dupCur *bolt.Cursor

	// scanKey/scanSub track the current key's nested dup bucket during a
	// First/Next full scan of a DUP_SORT database, so Next can keep walking
	// one key's value run before advancing to the next top-level key.
	scanKey []byte
	scanSub *bolt.Cursor
}

func (c *Cursor) ensureCursor() *bolt.Cursor {
	if c.cur == nil {
		c.cur = c.bucket.Cursor()
	}
	return c.cur
}

func (c *Cursor) First() (key, value []byte, ok bool) {
	k, v := c.ensureCursor().First()
	return c.emit(k, v)
}

func (c *Cursor) Next() (key, value []byte, ok bool) {
	if c.scanSub != nil {
		if sv, _ := c.scanSub.Next(); sv != nil {
			return c.scanKey, sv, true
		}
	}
	k, v := c.ensureCursor().Next()
	return c.emit(k, v)
}

func (c *Cursor) Seek(k []byte) (key, value []byte, ok bool) {
	gotKey, gotVal := c.ensureCursor().Seek(k)
	return c.emit(gotKey, gotVal)
}

// emit normalizes a (key, value) pair freshly returned by the top-level
// bucket cursor. For a DUP_SORT database the top-level "value" is always
// nil (each key holds a nested bucket, not a value), so emit descends into
// it and returns its first value, remembering the sub-cursor so a
// subsequent Next continues that key's dup run before moving on.
func (c *Cursor) emit(k, v []byte) (key, value []byte, ok bool) {
	c.scanKey, c.scanSub = nil, nil
	if k == nil {
		return nil, nil, false
	}
	if !c.flags.Has(backend.DupSort) {
		return k, v, true
	}
	sub := c.bucket.Bucket(k)
	if sub == nil {
		return k, v, true
	}
	subCur := sub.Cursor()
	sv, _ := subCur.First()
	if sv == nil {
		return k, nil, true
	}
	c.scanKey, c.scanSub = k, subCur
	return k, sv, true
}

// SeekDup positions at the first value of the DUP_SORT run under key k. The
// v argument is unused when absent (nil); when present, it seeks directly
// to that value within the run.
func (c *Cursor) SeekDup(k, v []byte) (key, value []byte, ok bool) {
	sub := c.bucket.Bucket(k)
	if sub == nil {
		return nil, nil, false
	}
	c.dupKey = k
	c.dupCur = sub.Cursor()
	var subKey []byte
	if v != nil {
		subKey, _ = c.dupCur.Seek(v)
	} else {
		subKey, _ = c.dupCur.First()
	}
	if subKey == nil {
		return nil, nil, false
	}
	return k, subKey, true
}

func (c *Cursor) NextDup() (key, value []byte, ok bool) {
	if c.dupCur == nil {
		return nil, nil, false
	}
	subKey, _ := c.dupCur.Next()
	if subKey == nil {
		return nil, nil, false
	}
	return c.dupKey, subKey, true
}

func (c *Cursor) Close() {}
