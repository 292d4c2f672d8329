// Package epoch is the in-process stand-in for the epoch-based
// reclamation collaborator spec.md §5/§9 describes as host-supplied:
// enter_epoch/exit_epoch/synchronize. No epoch-reclamation library
// appears anywhere in the retrieved example pack, so this is a minimal
// reader-count implementation on sync/atomic rather than a wired
// third-party dependency (see DESIGN.md).
//
// Every program run (package vm, Exec) holds an epoch guard for its
// whole duration, so an interior pointer returned by the map_lookup_elem
// helper stays valid until the run returns; hashtable entry deletion
// defers the block's return to the allocator until no reader is active,
// which is checked opportunistically on every Exit and Defer call as
// well as blockingly by Synchronize (used by map_deinit for a hard
// teardown guarantee).
package epoch

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gramework/utils/nocopy"
)

func goschedYield() { runtime.Gosched() }

// global is the process-wide registry spec.md §5 describes: every
// vm.Exec call enters it for the duration of one program run, so that
// any lookup_from_kern pointer handed to a helper stays valid until that
// run returns, regardless of which map it came from.
var global = NewRegistry()

// Enter marks the calling goroutine as inside a program execution.
func Enter() Guard { return global.Enter() }

// Defer schedules fn to run after the next full grace period.
func Defer(fn func()) { global.Defer(fn) }

// Synchronize blocks until every reader active when it was called has
// exited, then runs deferred reclamations.
func Synchronize() { global.Synchronize() }


// Registry tracks active readers and pending reclamations. The
// package-level functions share one process-wide Registry.
type Registry struct {
	active int64

	mu      sync.Mutex
	pending []func()

	nocopy nocopy.NoCopy
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Guard is returned by Enter and must be released by calling Exit
// exactly once.
type Guard struct {
	r *Registry
}

// Enter marks the calling goroutine as an active reader. The returned
// Guard must be released with Exit.
func (r *Registry) Enter() Guard {
	atomic.AddInt64(&r.active, 1)
	return Guard{r: r}
}

// Exit releases a Guard obtained from Enter. When this is the last
// active reader to leave, it opportunistically drains whatever
// reclamations are pending — without this, a hashtable under steady
// insert/delete churn would only ever reclaim at map_deinit, leaking
// every deleted entry's block for the map's whole lifetime.
func (g Guard) Exit() {
	if atomic.AddInt64(&g.r.active, -1) == 0 {
		g.r.tryReclaim()
	}
}

// Defer schedules fn to run once no reader is active. Used by the
// hashtable backend to return an unlinked entry's block to the
// allocator only after the grace period. If no reader is active right
// now — the common case for a delete made outside any vm.Exec — fn (and
// anything else already pending) runs immediately instead of waiting
// for the next Exit or Synchronize to notice.
func (r *Registry) Defer(fn func()) {
	r.mu.Lock()
	r.pending = append(r.pending, fn)
	r.mu.Unlock()
	r.tryReclaim()
}

// tryReclaim drains and runs every pending reclamation iff no reader is
// active at this instant. It never blocks; callers that need a hard
// grace-period guarantee use Synchronize instead.
func (r *Registry) tryReclaim() {
	if atomic.LoadInt64(&r.active) != 0 {
		return
	}
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// Synchronize blocks until it observes an instant with no active reader
// (readers that enter after the call also delay it), then runs every
// deferred reclamation pending at that point. map_deinit (package
// ebpfmap) calls this before releasing backend state.
func (r *Registry) Synchronize() {
	for atomic.LoadInt64(&r.active) != 0 {
		// Programs run to completion without blocking (spec.md §5); the
		// grace period is expected to be microseconds, so a busy-wait
		// with Gosched is appropriate over a condition variable here.
		goschedYield()
	}
	r.tryReclaim()
}
