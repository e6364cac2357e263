// Package txid mints the monotonic transaction identifiers used across the
// lock manager, buffer pool, and access methods. It deliberately knows
// nothing about what a transaction does -- that bookkeeping lives in the
// buffer pool's undo lists and the lock manager's ownership maps.
package txid

import "sync/atomic"

// ID identifies a transaction for the lifetime of a single process run.
// Zero is never minted and is reserved as "no transaction".
type ID uint64

var counter uint64

// New mints a fresh, process-wide monotonically increasing transaction id.
func New() ID {
	return ID(atomic.AddUint64(&counter, 1))
}

// Reset restarts the id counter. Only tests should call this.
func Reset() {
	atomic.StoreUint64(&counter, 0)
}
