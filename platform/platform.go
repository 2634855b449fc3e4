// Package platform isolates the few facts that differ between hosts:
// the monotonic clock, mutex aliases, and the atomic primitives the
// hot paths use. Every other package reaches code.hybscloud.com/atomix
// only through platform; the cold-path mutexes elsewhere in the engine
// are declared with sync directly.
package platform

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// Mutex and RWMutex are re-exports of sync's types. The other packages
// of this module currently declare their mutexes with sync directly.
type Mutex = sync.Mutex
type RWMutex = sync.RWMutex

// Atomic primitive aliases. These are thin re-exports of atomix's
// explicit-ordering types: every field that needs acquire/release
// semantics (queue head/tail, calibration active-page pointer, DAQ
// list state) goes through one of these instead of sync/atomic, which
// defaults to sequential consistency and hides the ordering intent.
type (
	Uint64 = atomix.Uint64
	Uint32 = atomix.Uint32
	Int32  = atomix.Int32
	Int64  = atomix.Int64
	Bool   = atomix.Bool
)

// Pointer is an atomic pointer to an immutable value of type T, used
// for lock-free publication. Only calseg uses it, for a segment's
// active view, pending view and current working-page generation.
type Pointer[T any] = atomix.Pointer[T]
