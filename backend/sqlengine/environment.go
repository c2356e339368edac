// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package sqlengine adapts database/sql over modernc.org/sqlite (a cgo-free
// SQLite) to the backend.Environment interface. Every named database is a
// two-column table (key BLOB PRIMARY KEY, value BLOB). Unlike bolt and
// safemode, sqlengine holds exactly one *sql.Conn, rendezvoused through a
// capacity-1 channel: a transaction checks the connection out for its
// lifetime and returns it on Commit/Abort, so transactions of either kind
// run one at a time. A live reader blocks a writer and other readers (and
// ListDBs/OpenDB/CreateDB/Stat) until it is aborted.
package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/kvshelf/rkv/backend"
)

// Builder constructs a sqlengine-backed Environment.
type Builder struct {
	maxDBs          uint32
	makeDirIfNeeded bool
	recovery        backend.RecoveryStrategy
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) SetMaxDBs(n uint32) backend.Builder        { b.maxDBs = n; return b }
func (b *Builder) SetMaxReaders(uint32) backend.Builder      { return b }
func (b *Builder) SetMapSize(int64) backend.Builder          { return b }
func (b *Builder) SetMakeDirIfNeeded(v bool) backend.Builder { b.makeDirIfNeeded = v; return b }
func (b *Builder) SetCorruptionRecoveryStrategy(s backend.RecoveryStrategy) backend.Builder {
	b.recovery = s
	return b
}

func (b *Builder) Open(path string) (backend.Environment, error) {
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		if !b.makeDirIfNeeded {
			return nil, fmt.Errorf("sqlengine: directory does not exist: %s", path)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
	}

	dsn := filepath.Join(path, "db.sqlite")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS __rkv_meta__ (name TEXT PRIMARY KEY, flags INTEGER NOT NULL, dup_sort INTEGER NOT NULL)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlengine: init meta table: %w", backend.ErrFileInvalid)
	}

	conn, err := db.Conn(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}

	connections := make(chan *sql.Conn, 1)
	connections <- conn

	return &Environment{path: path, db: db, connections: connections}, nil
}

// Environment owns a single-connection sqlite handle, rendezvoused through
// connections so only one RoTxn/RwTxn is live against it at a time.
type Environment struct {
	path        string
	db          *sql.DB
	connections chan *sql.Conn
}

func (e *Environment) ListDBs() ([]string, error) {
	conn := <-e.connections
	defer func() { e.connections <- conn }()

	rows, err := conn.QueryContext(context.Background(), "SELECT name FROM __rkv_meta__")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (e *Environment) OpenDB(name string) (backend.Database, error) {
	conn := <-e.connections
	defer func() { e.connections <- conn }()

	var stored int
	err := conn.QueryRowContext(context.Background(), "SELECT flags FROM __rkv_meta__ WHERE name = ?", name).Scan(&stored)
	if err == sql.ErrNoRows {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	flags := backend.DatabaseFlags(stored)
	return &Database{name: name, flags: flags, table: tableName(name)}, nil
}

func (e *Environment) CreateDB(name string, flags backend.DatabaseFlags) (backend.Database, error) {
	conn := <-e.connections
	defer func() { e.connections <- conn }()

	ctx := context.Background()
	dup := 0
	if flags.Has(backend.DupSort) {
		dup = 1
	}

	var existingFlags int
	err := conn.QueryRowContext(ctx, "SELECT flags FROM __rkv_meta__ WHERE name = ?", name).Scan(&existingFlags)
	switch {
	case err == sql.ErrNoRows:
		table := tableName(name)
		schema := "key BLOB PRIMARY KEY, value BLOB NOT NULL"
		if flags.Has(backend.DupSort) {
			schema = "key BLOB NOT NULL, value BLOB NOT NULL, PRIMARY KEY (key, value)"
		}
		if _, err := conn.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+table+" ("+schema+")"); err != nil {
			return nil, err
		}
		if _, err := conn.ExecContext(ctx, "INSERT INTO __rkv_meta__(name, flags, dup_sort) VALUES (?, ?, ?)", name, int(flags), dup); err != nil {
			return nil, err
		}
		return &Database{name: name, flags: flags, table: table}, nil
	case err != nil:
		return nil, err
	case existingFlags != int(flags):
		return nil, backend.ErrDBFlagsMismatch
	default:
		return &Database{name: name, flags: flags, table: tableName(name)}, nil
	}
}

func tableName(name string) string {
	if name == "" {
		name = "default"
	}
	return "kv_" + name
}

func (e *Environment) BeginRoTxn(ctx context.Context) (backend.RoTransaction, error) {
	conn := <-e.connections
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		e.connections <- conn
		return nil, err
	}
	return &RoTxn{env: e, conn: conn, tx: tx}, nil
}

func (e *Environment) BeginRwTxn(ctx context.Context) (backend.RwTransaction, error) {
	conn := <-e.connections
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		e.connections <- conn
		return nil, err
	}
	return &RwTxn{RoTxn: RoTxn{env: e, conn: conn, tx: tx}}, nil
}

func (e *Environment) Sync(bool) error { return nil }

func (e *Environment) Stat(db backend.Database) (backend.Stat, error) {
	conn := <-e.connections
	defer func() { e.connections <- conn }()
	var n uint64
	row := conn.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+db.(*Database).table)
	if err := row.Scan(&n); err != nil {
		return backend.Stat{}, err
	}
	return backend.Stat{Entries: n}, nil
}

func (e *Environment) Info() (backend.Info, error) {
	fi, err := os.Stat(filepath.Join(e.path, "db.sqlite"))
	if err != nil {
		return backend.Info{}, err
	}
	return backend.Info{MapSize: uint64(fi.Size())}, nil
}

// Freelist has no meaning for a SQL-backed environment; there is no
// memory-mapped page allocator to report on.
func (e *Environment) Freelist() (uint64, error) { return 0, backend.ErrUnsupported }

// LoadRatio has no meaning for a SQL-backed environment.
func (e *Environment) LoadRatio() (float64, error) { return 0, backend.ErrUnsupported }

func (e *Environment) SetMapSize(int64) error { return backend.ErrUnsupported }

func (e *Environment) FilesOnDisk() []string {
	return []string{filepath.Join(e.path, "db.sqlite")}
}

func (e *Environment) Close() error { return e.db.Close() }

// Database identifies the table backing a named rkv database.
type Database struct {
	name  string
	flags backend.DatabaseFlags
	table string
}

func (d *Database) Name() string { return d.name }

func (d *Database) Flags() backend.DatabaseFlags { return d.flags }
