// Package dberrors declares the sentinel error kinds used throughout the
// storage core. Call sites wrap these with github.com/pkg/errors so a
// caller can test the kind with errors.Is while a top-level handler can
// still print a full stack trace with "%+v".
package dberrors

import "errors"

var (
	// ErrSchemaMismatch is returned when a tuple's schema does not match
	// the target file or page.
	ErrSchemaMismatch = errors.New("tuple schema does not match target")

	// ErrPageFull is returned when a slotted page has no empty slot left
	// for an insertion.
	ErrPageFull = errors.New("page has no empty slot")

	// ErrSlotEmpty is returned when a delete references a slot that is not
	// marked used, or a RecordId that names a different page.
	ErrSlotEmpty = errors.New("slot is empty or record id does not match page")

	// ErrNoSuchField is returned by schema/tuple field lookups.
	ErrNoSuchField = errors.New("no such field")

	// ErrNoSuchTable is returned by catalog lookups.
	ErrNoSuchTable = errors.New("no such table")

	// ErrTransactionAborted is raised by client-side policy (never by the
	// buffer pool itself) to signal that the caller's transaction must be
	// rolled back.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrBufferFull is returned when every page in the buffer pool's cache
	// is dirty and eviction cannot proceed.
	ErrBufferFull = errors.New("no clean page available for eviction")

	// ErrIoFailure wraps underlying file I/O errors.
	ErrIoFailure = errors.New("storage i/o failure")
)
