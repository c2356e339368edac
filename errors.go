// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package rkv

import (
	"errors"
	"fmt"

	"github.com/kvshelf/rkv/backend"
)

// ErrCode enumerates the unified error kinds returned by every rkv operation,
// regardless of which backend produced them.
type ErrCode int

const (
	InternalErr ErrCode = iota
	DirectoryDoesNotExist
	EnvironmentDoesNotExist
	DataError
	KeyValuePairNotFound
	KeyValuePairBadSize
	KeyExists
	MapFull
	DbsFull
	ReadersFull
	FileInvalid
	EnvironmentFull
	LockPoisoned
	ReadTransactionAlreadyExists
	OpenAttemptedDuringTransaction
	DbsIllegalOpen
	DbFlagsMismatch
	ResizeFailed
	IoError
	InvalidTransaction
	SourceEmpty
	DestinationNotEmpty
	Unsupported
	BackendErr
)

var errCodeNames = map[ErrCode]string{
	InternalErr:                    "internal error",
	DirectoryDoesNotExist:          "directory does not exist",
	EnvironmentDoesNotExist:        "environment does not exist",
	DataError:                      "data error",
	KeyValuePairNotFound:           "key/value pair not found",
	KeyValuePairBadSize:            "key/value pair bad size",
	KeyExists:                      "key already exists",
	MapFull:                        "map full",
	DbsFull:                        "databases full",
	ReadersFull:                    "readers full",
	FileInvalid:                    "file invalid",
	EnvironmentFull:                "environment full",
	LockPoisoned:                   "lock poisoned",
	ReadTransactionAlreadyExists:   "read transaction already exists on this thread",
	OpenAttemptedDuringTransaction: "open attempted during transaction",
	DbsIllegalOpen:                 "database open/create illegal while a read transaction is live",
	DbFlagsMismatch:                "database already exists with different flags",
	ResizeFailed:                   "resize failed",
	IoError:                        "I/O error",
	InvalidTransaction:             "invalid transaction",
	SourceEmpty:                    "migration source has no databases",
	DestinationNotEmpty:            "migration destination is not empty",
	Unsupported:                    "operation not supported by this backend",
	BackendErr:                     "backend error",
}

// Error is the unified error type returned from every rkv operation. A
// backend-specific cause, if any, is preserved in Cause.
type Error struct {
	Code    ErrCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rkv: %s: %s", errCodeNames[e.Code], e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("rkv: %s: %v", errCodeNames[e.Code], e.Cause)
	}
	return fmt.Sprintf("rkv: %s", errCodeNames[e.Code])
}

// Unwrap allows errors.Is/errors.As to reach the backend-specific cause.
func (e *Error) Unwrap() error { return e.Cause }

// NewError constructs an *Error with the given code and formatted message.
func NewError(code ErrCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError constructs an *Error with the given code wrapping cause.
func WrapError(code ErrCode, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// FromBackendError classifies a raw error returned by a backend.Environment
// or backend.Transaction method into the unified taxonomy, recognizing the
// sentinel errors every engine in backend/ returns for conditions callers
// need to distinguish (not found, key exists, map full, ...).
func FromBackendError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return WrapError(KeyValuePairNotFound, err)
	case errors.Is(err, backend.ErrKeyExists):
		return WrapError(KeyExists, err)
	case errors.Is(err, backend.ErrBadValSize):
		return WrapError(KeyValuePairBadSize, err)
	case errors.Is(err, backend.ErrMapFull):
		return WrapError(MapFull, err)
	case errors.Is(err, backend.ErrDbsFull):
		return WrapError(DbsFull, err)
	case errors.Is(err, backend.ErrReadersFull):
		return WrapError(ReadersFull, err)
	case errors.Is(err, backend.ErrFileInvalid):
		return WrapError(FileInvalid, err)
	case errors.Is(err, backend.ErrDBFlagsMismatch):
		return WrapError(DbFlagsMismatch, err)
	case errors.Is(err, backend.ErrUnsupported):
		return WrapError(Unsupported, err)
	case errors.Is(err, backend.ErrDbsIllegalOpen):
		return WrapError(DbsIllegalOpen, err)
	default:
		return WrapError(BackendErr, err)
	}
}

func codeIs(err error, code ErrCode) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}

// IsNotFound returns true if err is a KeyValuePairNotFound error.
func IsNotFound(err error) bool { return codeIs(err, KeyValuePairNotFound) }

// IsKeyExists returns true if err is a KeyExists error.
func IsKeyExists(err error) bool { return codeIs(err, KeyExists) }

// IsMapFull returns true if err is a MapFull error.
func IsMapFull(err error) bool { return codeIs(err, MapFull) }

// IsLockPoisoned returns true if err is a LockPoisoned error.
func IsLockPoisoned(err error) bool { return codeIs(err, LockPoisoned) }

// IsDbsIllegalOpen returns true if err is a DbsIllegalOpen error.
func IsDbsIllegalOpen(err error) bool { return codeIs(err, DbsIllegalOpen) }

// IsSourceEmpty returns true if err is a SourceEmpty error.
func IsSourceEmpty(err error) bool { return codeIs(err, SourceEmpty) }

// IsDestinationNotEmpty returns true if err is a DestinationNotEmpty error.
func IsDestinationNotEmpty(err error) bool { return codeIs(err, DestinationNotEmpty) }

// IsUnsupported returns true if err is an Unsupported error.
func IsUnsupported(err error) bool { return codeIs(err, Unsupported) }
