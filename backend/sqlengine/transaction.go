// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package sqlengine

import (
	"context"
	"database/sql"

	"github.com/kvshelf/rkv/backend"
)

// RoTxn wraps a read-only database/sql transaction. Abort is what returns
// the connection to the rendezvous channel; until a RoTxn is aborted, every
// other transaction on the environment waits for the connection.
type RoTxn struct {
	env  *Environment
	conn *sql.Conn
	tx   *sql.Tx
}

func (t *RoTxn) table(db backend.Database) string { return db.(*Database).table }

func (t *RoTxn) Get(db backend.Database, key []byte) ([]byte, error) {
	d := db.(*Database)
	var value []byte
	row := t.tx.QueryRowContext(context.Background(), "SELECT value FROM "+d.table+" WHERE key = ? ORDER BY value LIMIT 1", key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return nil, backend.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (t *RoTxn) OpenCursor(db backend.Database) (backend.Cursor, error) {
	return &Cursor{tx: t.tx, table: t.table(db)}, nil
}

func (t *RoTxn) Abort() {
	t.tx.Rollback()
	t.env.connections <- t.conn
}

// RwTxn wraps a read-write database/sql transaction.
type RwTxn struct {
	RoTxn
	finished bool
}

func (t *RwTxn) Put(db backend.Database, key, value []byte, flags backend.WriteFlags) error {
	d := db.(*Database)
	ctx := context.Background()
	if d.flags.Has(backend.DupSort) {
		if flags.Has(backend.NoDupData) {
			var exists int
			err := t.tx.QueryRowContext(ctx, "SELECT 1 FROM "+d.table+" WHERE key = ? AND value = ?", key, value).Scan(&exists)
			if err == nil {
				return backend.ErrKeyExists
			}
			if err != sql.ErrNoRows {
				return err
			}
		}
		_, err := t.tx.ExecContext(ctx, "INSERT OR IGNORE INTO "+d.table+"(key, value) VALUES (?, ?)", key, value)
		return err
	}
	if flags.Has(backend.NoOverwrite) {
		var exists int
		err := t.tx.QueryRowContext(ctx, "SELECT 1 FROM "+d.table+" WHERE key = ?", key).Scan(&exists)
		if err == nil {
			return backend.ErrKeyExists
		}
		if err != sql.ErrNoRows {
			return err
		}
	}
	_, err := t.tx.ExecContext(ctx, "INSERT INTO "+d.table+"(key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, value)
	return err
}

func (t *RwTxn) Del(db backend.Database, key, value []byte) error {
	d := db.(*Database)
	ctx := context.Background()
	var res sql.Result
	var err error
	if value != nil {
		res, err = t.tx.ExecContext(ctx, "DELETE FROM "+d.table+" WHERE key = ? AND value = ?", key, value)
	} else {
		res, err = t.tx.ExecContext(ctx, "DELETE FROM "+d.table+" WHERE key = ?", key)
	}
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return backend.ErrNotFound
	}
	return nil
}

func (t *RwTxn) Clear(db backend.Database) error {
	_, err := t.tx.ExecContext(context.Background(), "DELETE FROM "+t.table(db))
	return err
}

func (t *RwTxn) Commit() error {
	err := t.tx.Commit()
	t.finished = true
	t.env.connections <- t.conn
	return err
}

func (t *RwTxn) Abort() {
	if t.finished {
		return
	}
	t.tx.Rollback()
	t.finished = true
	t.env.connections <- t.conn
}
