// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package value implements the self-describing, type-tagged value codec used
// throughout rkv. Every value stored in a database is a single type-tag byte
// followed by a compact, platform-independent encoding of the payload:
// little-endian for integers, instants and length prefixes, and big-endian
// order-preserving bits for F64.
package value

import (
	"github.com/google/uuid"
)

// Tag identifies the type of a Value on the wire. Tags are stable small
// positive integers; never renumber an existing tag.
type Tag byte

const (
	TagBool  Tag = 1
	TagU64   Tag = 2
	TagI64   Tag = 3
	TagF64   Tag = 4
	TagInstant Tag = 5
	TagUuid  Tag = 6
	TagStr   Tag = 7
	TagJson  Tag = 8
	TagBlob  Tag = 9
)

func (t Tag) String() string {
	switch t {
	case TagBool:
		return "Bool"
	case TagU64:
		return "U64"
	case TagI64:
		return "I64"
	case TagF64:
		return "F64"
	case TagInstant:
		return "Instant"
	case TagUuid:
		return "Uuid"
	case TagStr:
		return "Str"
	case TagJson:
		return "Json"
	case TagBlob:
		return "Blob"
	default:
		return "Unknown"
	}
}

// Value is a borrowed, tagged scalar or blob. A decoded Blob variant
// references transaction-owned bytes and must not be retained past the end
// of the transaction that produced it; callers who need to keep a value
// should convert it with Owned. Str/Json payloads are Go strings and hold
// their own copy.
type Value struct {
	tag     Tag
	boolean bool
	u64     uint64
	i64     int64
	f64     float64
	instant int64
	uuid    uuid.UUID
	str     string
	blob    []byte
}

func Bool(v bool) Value    { return Value{tag: TagBool, boolean: v} }
func U64(v uint64) Value   { return Value{tag: TagU64, u64: v} }
func I64(v int64) Value    { return Value{tag: TagI64, i64: v} }
func F64(v float64) Value  { return Value{tag: TagF64, f64: v} }
func Instant(v int64) Value { return Value{tag: TagInstant, instant: v} }
func Uuid(v uuid.UUID) Value { return Value{tag: TagUuid, uuid: v} }
func Str(v string) Value   { return Value{tag: TagStr, str: v} }
func Json(v string) Value  { return Value{tag: TagJson, str: v} }
func Blob(v []byte) Value  { return Value{tag: TagBlob, blob: v} }

// Tag returns the wire tag of v.
func (v Value) Tag() Tag { return v.tag }

func (v Value) AsBool() (bool, bool)       { return v.boolean, v.tag == TagBool }
func (v Value) AsU64() (uint64, bool)      { return v.u64, v.tag == TagU64 }
func (v Value) AsI64() (int64, bool)       { return v.i64, v.tag == TagI64 }
func (v Value) AsF64() (float64, bool)     { return v.f64, v.tag == TagF64 }
func (v Value) AsInstant() (int64, bool)   { return v.instant, v.tag == TagInstant }
func (v Value) AsUuid() (uuid.UUID, bool)  { return v.uuid, v.tag == TagUuid }
func (v Value) AsStr() (string, bool)      { return v.str, v.tag == TagStr }
func (v Value) AsJson() (string, bool)     { return v.str, v.tag == TagJson }
func (v Value) AsBlob() ([]byte, bool)     { return v.blob, v.tag == TagBlob }

// Equal reports whether v and other have the same tag and payload.
func (v Value) Equal(other Value) bool {
	if v.tag != other.tag {
		return false
	}
	switch v.tag {
	case TagBool:
		return v.boolean == other.boolean
	case TagU64:
		return v.u64 == other.u64
	case TagI64:
		return v.i64 == other.i64
	case TagF64:
		return totalOrderBits(v.f64) == totalOrderBits(other.f64)
	case TagInstant:
		return v.instant == other.instant
	case TagUuid:
		return v.uuid == other.uuid
	case TagStr, TagJson:
		return v.str == other.str
	case TagBlob:
		if len(v.blob) != len(other.blob) {
			return false
		}
		for i := range v.blob {
			if v.blob[i] != other.blob[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Owned returns a copy of v whose backing storage (string/blob payloads) is
// independent of any transaction. It is safe to retain past the end of a
// transaction.
func (v Value) Owned() Value {
	if v.tag == TagBlob {
		cpy := make([]byte, len(v.blob))
		copy(cpy, v.blob)
		v.blob = cpy
	}
	// strings are immutable in Go; no copy needed for Str/Json.
	return v
}
