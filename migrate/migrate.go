// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package migrate copies every database from one open Environment to
// another, including across backend kinds (e.g. bolt to safemode). It exists
// to let a caller switch backend engines without hand-rolling a dump/restore
// of their own.
//
// Migration is restricted to SingleStore-shaped databases: DupSort and
// IntegerKey databases are rejected, since a faithful migration of either
// would require the destination engine to support the same flag (not
// guaranteed) and, for IntegerKey, the same native integer width.
package migrate

import (
	"context"

	"github.com/kvshelf/rkv"
	"github.com/kvshelf/rkv/backend"
	"github.com/kvshelf/rkv/store"
)

// Environment transfers every key/value pair in every database of src into
// dst. dst must not already contain any databases; src must contain at
// least one. It stops with an Unsupported error at the first DupSort or
// IntegerKey database it meets; databases copied before that one stay
// committed in dst.
func Environment(ctx context.Context, src, dst *rkv.Environment) error {
	names, err := src.ListDBs()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return rkv.NewError(rkv.SourceEmpty, "migration source %s has no databases", src.Path())
	}

	dstNames, err := dst.ListDBs()
	if err != nil {
		return err
	}
	if len(dstNames) != 0 {
		return rkv.NewError(rkv.DestinationNotEmpty, "migration destination %s is not empty", dst.Path())
	}

	for _, name := range names {
		if err := migrateOne(ctx, src, dst, name); err != nil {
			return err
		}
	}
	return nil
}

func migrateOne(ctx context.Context, src, dst *rkv.Environment, name string) error {
	srcDB, err := src.OpenDB(name)
	if err != nil {
		return err
	}
	if flags := srcDB.Flags(); flags.Has(backend.DupSort) || flags.Has(backend.IntegerKey) {
		return rkv.NewError(rkv.Unsupported, "database %q uses DupSort or IntegerKey, which migrate does not support", name)
	}

	srcStore, err := store.OpenSingle(src, name)
	if err != nil {
		return err
	}
	dstStore, err := store.OpenSingle(dst, name)
	if err != nil {
		return err
	}

	reader, err := src.Read(ctx)
	if err != nil {
		return err
	}
	defer reader.Abort()

	writer, err := dst.Write(ctx)
	if err != nil {
		return err
	}

	cur, err := srcStore.IterStart(reader)
	if err != nil {
		writer.Abort()
		return err
	}
	defer cur.Close()

	for {
		key, val, ok, err := cur.Next()
		if err != nil {
			writer.Abort()
			return err
		}
		if !ok {
			break
		}
		if err := dstStore.Put(writer, key, val); err != nil {
			writer.Abort()
			return err
		}
	}

	return writer.Commit()
}
