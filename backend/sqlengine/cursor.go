// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package sqlengine

import (
	"context"
	"database/sql"
)

// Cursor is a materialized, key-then-value ordered snapshot of a table.
// SQLite has no notion of a live server-side cursor over a *sql.Tx the way
// bolt or safemode can hand back a pointer into memory, so the rows are
// read into memory up front; the transaction's snapshot isolation still
// guarantees they reflect a single consistent view.
type Cursor struct {
	tx    *sql.Tx
	table string

	rows    []kv
	pos     int
	loaded  bool
	dupKey  []byte
	dupRows []kv
	dupPos  int
}

type kv struct {
	key   []byte
	value []byte
}

func (c *Cursor) ensureLoaded() {
	if c.loaded {
		return
	}
	c.loaded = true
	rows, err := c.tx.QueryContext(context.Background(), "SELECT key, value FROM "+c.table+" ORDER BY key, value")
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var k, v []byte
		if rows.Scan(&k, &v) != nil {
			return
		}
		c.rows = append(c.rows, kv{k, v})
	}
}

func (c *Cursor) First() (key, value []byte, ok bool) {
	c.ensureLoaded()
	c.pos = 0
	return c.at(c.pos)
}

func (c *Cursor) Next() (key, value []byte, ok bool) {
	c.ensureLoaded()
	c.pos++
	return c.at(c.pos)
}

func (c *Cursor) Seek(k []byte) (key, value []byte, ok bool) {
	c.ensureLoaded()
	for i, r := range c.rows {
		if string(r.key) >= string(k) {
			c.pos = i
			return c.at(c.pos)
		}
	}
	c.pos = len(c.rows)
	return nil, nil, false
}

func (c *Cursor) at(i int) (key, value []byte, ok bool) {
	if i < 0 || i >= len(c.rows) {
		return nil, nil, false
	}
	return c.rows[i].key, c.rows[i].value, true
}

func (c *Cursor) SeekDup(k, v []byte) (key, value []byte, ok bool) {
	c.ensureLoaded()
	c.dupKey = k
	c.dupRows = c.dupRows[:0]
	for _, r := range c.rows {
		if string(r.key) == string(k) {
			c.dupRows = append(c.dupRows, r)
		}
	}
	c.dupPos = 0
	if v != nil {
		for i, r := range c.dupRows {
			if string(r.value) >= string(v) {
				c.dupPos = i
				return c.at2(c.dupPos)
			}
		}
		c.dupPos = len(c.dupRows)
		return nil, nil, false
	}
	return c.at2(c.dupPos)
}

func (c *Cursor) NextDup() (key, value []byte, ok bool) {
	c.dupPos++
	return c.at2(c.dupPos)
}

func (c *Cursor) at2(i int) (key, value []byte, ok bool) {
	if i < 0 || i >= len(c.dupRows) {
		return nil, nil, false
	}
	return c.dupKey, c.dupRows[i].value, true
}

func (c *Cursor) Close() {}
