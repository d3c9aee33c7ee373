// Package interrupt defers termination signals across critical sections.
//
// The lifecycle engine mutates a source tree in several steps (apply diff,
// apply local patches, write the version marker); a SIGINT delivered halfway
// through would leave the tree in a state nobody can reason about. Mutating
// code therefore runs between Lock and Guard.Release: a signal received while
// locked is latched and serviced at Release, a signal received while unlocked
// terminates the process immediately.
package interrupt

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
)

var (
	pending atomic.Bool
	locked  atomic.Bool
	status  atomic.Int32

	// stubbed in tests
	exit = os.Exit
)

// Guard marks a critical section. It is not reentrant: at most one Guard is
// live at any time.
type Guard struct {
	released bool
}

// Install registers the signal handler. Must be called once, from main,
// before the first Lock.
func Install() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range c {
			zap.S().Errorf("interrupted by %v", sig)
			status.Store(int32(exitStatus(sig)))
			if locked.Load() {
				pending.Store(true)
			} else {
				exit(exitStatus(sig))
			}
		}
	}()
}

// Lock enters the critical section. Calling Lock while a Guard is live is a
// programming error and panics.
func Lock() *Guard {
	if !locked.CompareAndSwap(false, true) {
		panic("interrupt: recursive Lock")
	}
	return &Guard{}
}

// Release leaves the critical section. If a signal arrived while the section
// was locked, the process exits here instead of returning. Releasing an
// already released Guard is a no-op, so Release is safe to defer on every
// exit path.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	if pending.Load() {
		zap.S().Debug("servicing deferred interrupt")
		exit(int(status.Load()))
	}
	locked.Store(false)
}

func exitStatus(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}
