// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package value

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// canonicalNaNBits is the bit pattern every NaN collapses to before encoding, so
// that NaN has one deterministic, last-sorting position.
const canonicalNaNBits uint64 = 0x7ff8000000000000

// totalOrderBits maps a float64's bits onto a uint64 space such that unsigned,
// big-endian byte-lexicographic comparison of the result matches the
// numeric total order (NaN sorts last, by convention of this package).
func totalOrderBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if math.IsNaN(f) {
		bits = canonicalNaNBits
	}
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func fromTotalOrderBits(bits uint64) float64 {
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

// Encode returns the tagged wire encoding of v: little-endian except for
// F64, whose order-preserving bits are written big-endian so that encoded
// floats compare in numeric order. Encode never fails for a
// legally-constructed Value.
func Encode(v Value) []byte {
	switch v.tag {
	case TagBool:
		b := byte(0)
		if v.boolean {
			b = 1
		}
		return []byte{byte(TagBool), b}
	case TagU64:
		buf := make([]byte, 9)
		buf[0] = byte(TagU64)
		binary.LittleEndian.PutUint64(buf[1:], v.u64)
		return buf
	case TagI64:
		buf := make([]byte, 9)
		buf[0] = byte(TagI64)
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.i64))
		return buf
	case TagF64:
		buf := make([]byte, 9)
		buf[0] = byte(TagF64)
		binary.BigEndian.PutUint64(buf[1:], totalOrderBits(v.f64))
		return buf
	case TagInstant:
		buf := make([]byte, 9)
		buf[0] = byte(TagInstant)
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.instant))
		return buf
	case TagUuid:
		buf := make([]byte, 1+16)
		buf[0] = byte(TagUuid)
		copy(buf[1:], v.uuid[:])
		return buf
	case TagStr:
		return encodeLengthPrefixed(TagStr, []byte(v.str))
	case TagJson:
		return encodeLengthPrefixed(TagJson, []byte(v.str))
	case TagBlob:
		buf := make([]byte, 1+len(v.blob))
		buf[0] = byte(TagBlob)
		copy(buf[1:], v.blob)
		return buf
	default:
		panic(fmt.Sprintf("value: encode of unconstructed Value (tag %d)", v.tag))
	}
}

func encodeLengthPrefixed(tag Tag, payload []byte) []byte {
	buf := make([]byte, 1+8+len(payload))
	buf[0] = byte(tag)
	binary.LittleEndian.PutUint64(buf[1:9], uint64(len(payload)))
	copy(buf[9:], payload)
	return buf
}

// DecodeError is returned by Decode and DecodeExpecting.
type DecodeError struct {
	Kind     DecodeErrorKind
	Expected Tag
	Actual   Tag
	Err      error
}

// DecodeErrorKind enumerates the ways a decode can fail.
type DecodeErrorKind int

const (
	Empty DecodeErrorKind = iota
	UnknownType
	DecodePayload
	InvalidUuid
	UnexpectedType
)

func (e *DecodeError) Error() string {
	switch e.Kind {
	case Empty:
		return "value: empty byte slice"
	case UnknownType:
		return fmt.Sprintf("value: unknown type tag %d", e.Actual)
	case DecodePayload:
		return fmt.Sprintf("value: decode payload for tag %d: %v", e.Expected, e.Err)
	case InvalidUuid:
		return "value: uuid payload is not exactly 16 bytes"
	case UnexpectedType:
		return fmt.Sprintf("value: expected tag %d, got %d", e.Expected, e.Actual)
	default:
		return "value: decode error"
	}
}

// Decode parses a tagged value from bytes produced by Encode.
func Decode(bytes []byte) (Value, error) {
	if len(bytes) == 0 {
		return Value{}, &DecodeError{Kind: Empty}
	}
	tag := Tag(bytes[0])
	payload := bytes[1:]
	switch tag {
	case TagBool:
		if len(payload) != 1 {
			return Value{}, &DecodeError{Kind: DecodePayload, Expected: tag, Err: fmt.Errorf("want 1 byte, got %d", len(payload))}
		}
		return Bool(payload[0] != 0), nil
	case TagU64:
		if len(payload) != 8 {
			return Value{}, &DecodeError{Kind: DecodePayload, Expected: tag, Err: fmt.Errorf("want 8 bytes, got %d", len(payload))}
		}
		return U64(binary.LittleEndian.Uint64(payload)), nil
	case TagI64:
		if len(payload) != 8 {
			return Value{}, &DecodeError{Kind: DecodePayload, Expected: tag, Err: fmt.Errorf("want 8 bytes, got %d", len(payload))}
		}
		return I64(int64(binary.LittleEndian.Uint64(payload))), nil
	case TagF64:
		if len(payload) != 8 {
			return Value{}, &DecodeError{Kind: DecodePayload, Expected: tag, Err: fmt.Errorf("want 8 bytes, got %d", len(payload))}
		}
		return F64(fromTotalOrderBits(binary.BigEndian.Uint64(payload))), nil
	case TagInstant:
		if len(payload) != 8 {
			return Value{}, &DecodeError{Kind: DecodePayload, Expected: tag, Err: fmt.Errorf("want 8 bytes, got %d", len(payload))}
		}
		return Instant(int64(binary.LittleEndian.Uint64(payload))), nil
	case TagUuid:
		if len(payload) != 16 {
			return Value{}, &DecodeError{Kind: InvalidUuid}
		}
		var id uuid.UUID
		copy(id[:], payload)
		return Uuid(id), nil
	case TagStr:
		s, err := decodeLengthPrefixed(tag, payload)
		if err != nil {
			return Value{}, err
		}
		return Str(string(s)), nil
	case TagJson:
		s, err := decodeLengthPrefixed(tag, payload)
		if err != nil {
			return Value{}, err
		}
		return Json(string(s)), nil
	case TagBlob:
		return Blob(payload), nil
	default:
		return Value{}, &DecodeError{Kind: UnknownType, Actual: tag}
	}
}

func decodeLengthPrefixed(tag Tag, payload []byte) ([]byte, error) {
	if len(payload) < 8 {
		return nil, &DecodeError{Kind: DecodePayload, Expected: tag, Err: fmt.Errorf("missing length prefix")}
	}
	n := binary.LittleEndian.Uint64(payload[:8])
	rest := payload[8:]
	if uint64(len(rest)) != n {
		return nil, &DecodeError{Kind: DecodePayload, Expected: tag, Err: fmt.Errorf("length prefix %d does not match remaining %d bytes", n, len(rest))}
	}
	return rest, nil
}

// DecodeExpecting decodes bytes and requires the resulting tag to equal
// expected, raising UnexpectedType only when the decoded tag differs from it.
func DecodeExpecting(expected Tag, bytes []byte) (Value, error) {
	v, err := Decode(bytes)
	if err != nil {
		return Value{}, err
	}
	if v.tag != expected {
		return Value{}, &DecodeError{Kind: UnexpectedType, Expected: expected, Actual: v.tag}
	}
	return v, nil
}
