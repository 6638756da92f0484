package seq

import (
	"context"

	"PLedger/tools/errs"
)

// flight is the single-flight discipline guarding an Allocator's counters.
type flight interface {
	acquire(ctx context.Context) error
	release()
}

// tokenGate is a one-slot semaphore: holding the token means owning the
// counters. Unlike sync.Mutex a waiter can give up when its context ends.
type tokenGate chan struct{}

func newTokenGate() tokenGate {
	g := make(tokenGate, 1)
	g <- struct{}{}
	return g
}

func (g tokenGate) acquire(ctx context.Context) error {
	select {
	case <-g:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err())
	}
}

func (g tokenGate) release() {
	g <- struct{}{}
}
