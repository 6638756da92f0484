// Package seq hands out per-account sequence numbers to concurrent senders.
//
// A ledger accepts transactions from one account only with strictly increasing,
// gap-free sequence numbers. An Allocator reserves numbers locally so many
// goroutines can sign and submit in parallel, keeps the reserved run within
// InFlightLimit of what the ledger has committed, and falls back to re-reading
// the ledger when the two views stop converging.
package seq

import (
	"context"
	"sync/atomic"
	"time"

	"PLedger/logger"
	"PLedger/tools/errs"
	"PLedger/tools/safe"

	"go.uber.org/zap"
)

// LedgerQuery reads an account's committed sequence number, i.e. the number the
// ledger expects on the account's next transaction.
type LedgerQuery interface {
	SequenceNumber(ctx context.Context, address string) (uint64, error)
}

// LedgerQueryFunc adapts a function to LedgerQuery.
type LedgerQueryFunc func(ctx context.Context, address string) (uint64, error)

func (f LedgerQueryFunc) SequenceNumber(ctx context.Context, address string) (uint64, error) {
	return f(ctx, address)
}

type Options struct {
	InFlightLimit uint64        // max gap between issued and committed
	PollInterval  time.Duration // delay between ledger polls while waiting
	ResyncTimeout time.Duration // wait budget before a forced resync
}

func DefaultOptions() Options {
	return Options{
		InFlightLimit: 50,
		PollInterval:  10 * time.Millisecond,
		ResyncTimeout: 30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.InFlightLimit == 0 {
		o.InFlightLimit = d.InFlightLimit
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.ResyncTimeout <= 0 {
		o.ResyncTimeout = d.ResyncTimeout
	}
	return o
}

// Outcome tells the caller whether a result was reached by ordinary progress
// or by discarding local state in favour of the ledger.
type Outcome uint8

const (
	InSync   Outcome = iota
	Resynced         // divergence detected, counters reseeded from the ledger
)

func (o Outcome) String() string {
	if o == Resynced {
		return "resynced"
	}
	return "in_sync"
}

// Ticket is one issued sequence number.
type Ticket struct {
	Seq     uint64
	Outcome Outcome
}

type Stats struct {
	Address      string
	Ready        bool
	NextToIssue  uint64
	LastObserved uint64
	InFlight     uint64
	Resyncs      uint64
}

// Allocator is bound to one account. All mutating methods are serialized by a
// single-flight gate; at most one of them runs at a time. Counters are atomics
// only so that Stats can be read without taking the gate.
type Allocator struct {
	address string
	query   LedgerQuery
	opts    Options
	log     *zap.Logger
	gate    flight

	ready    atomic.Bool
	next     atomic.Uint64
	observed atomic.Uint64
	resyncs  atomic.Uint64
}

func New(address string, query LedgerQuery, opts Options, log *zap.Logger) *Allocator {
	safe.MustNotNil(query, "ledger query")
	return &Allocator{
		address: address,
		query:   query,
		opts:    opts.withDefaults(),
		log:     logger.OrDefault(log).Named("seq").With(zap.String("account", address)),
		gate:    newTokenGate(),
	}
}

func (a *Allocator) Address() string  { return a.address }
func (a *Allocator) Options() Options { return a.opts }

// Initialize reseeds both counters from the ledger's committed number.
func (a *Allocator) Initialize(ctx context.Context) error {
	if err := a.gate.acquire(ctx); err != nil {
		return err
	}
	defer a.gate.release()
	return a.seed(ctx)
}

// Refresh re-reads the committed number. Issued numbers are kept, except that
// next is raised to the committed number when the ledger is ahead of it, so
// next never falls below observed.
func (a *Allocator) Refresh(ctx context.Context) error {
	if err := a.gate.acquire(ctx); err != nil {
		return err
	}
	defer a.gate.release()
	if !a.ready.Load() {
		return a.seed(ctx)
	}
	return a.refresh(ctx)
}

// Allocate returns the next sequence number for the account. It blocks while
// InFlightLimit numbers are outstanding, polling the ledger every PollInterval;
// after ResyncTimeout without progress it reseeds from the ledger and reports
// Outcome Resynced.
func (a *Allocator) Allocate(ctx context.Context) (Ticket, error) {
	if err := a.gate.acquire(ctx); err != nil {
		return Ticket{}, err
	}
	defer a.gate.release()

	if !a.ready.Load() {
		if err := a.seed(ctx); err != nil {
			return Ticket{}, err
		}
	}

	outcome := InSync
	if a.inFlight() >= a.opts.InFlightLimit {
		var err error
		if outcome, err = a.awaitWindow(ctx); err != nil {
			return Ticket{}, err
		}
	}

	n := a.next.Add(1) - 1
	return Ticket{Seq: n, Outcome: outcome}, nil
}

// Synchronize blocks until every issued number has been observed committed.
// If that does not happen within ResyncTimeout the counters are reseeded from
// the ledger and Resynced is returned. A reseed accepts the ledger as truth, so
// an issued number that never committed is not reported as an error; callers
// that care must check the outcome.
func (a *Allocator) Synchronize(ctx context.Context) (Outcome, error) {
	if err := a.gate.acquire(ctx); err != nil {
		return InSync, err
	}
	defer a.gate.release()

	if a.drained() {
		return InSync, nil
	}

	start := time.Now()
	stuck := false
	a.tryRefresh(ctx)
	for !a.drained() {
		if time.Since(start) > a.opts.ResyncTimeout {
			if !stuck {
				stuck = true
				a.log.Warn("issued sequence numbers did not commit in time, resyncing",
					zap.Uint64("next", a.next.Load()),
					zap.Uint64("observed", a.observed.Load()),
					zap.Duration("waited", time.Since(start)))
			}
			if err := a.forceResync(ctx); err == nil {
				return Resynced, nil
			}
		}
		if err := sleep(ctx, a.opts.PollInterval); err != nil {
			return InSync, errs.WrapMsg(err, "synchronize", "account", a.address)
		}
		a.tryRefresh(ctx)
	}
	return InSync, nil
}

func (a *Allocator) Stats() Stats {
	next, observed := a.next.Load(), a.observed.Load()
	s := Stats{
		Address:      a.address,
		Ready:        a.ready.Load(),
		NextToIssue:  next,
		LastObserved: observed,
		Resyncs:      a.resyncs.Load(),
	}
	if next > observed {
		s.InFlight = next - observed
	}
	return s
}

// awaitWindow waits, gate held, until the in-flight gap is below the limit.
func (a *Allocator) awaitWindow(ctx context.Context) (Outcome, error) {
	outcome := InSync
	start := time.Now()
	stuck := false // warned for the current timeout
	a.tryRefresh(ctx)
	for a.inFlight() >= a.opts.InFlightLimit {
		if time.Since(start) > a.opts.ResyncTimeout {
			if !stuck {
				stuck = true
				a.log.Warn("in-flight window stuck, resyncing",
					zap.Uint64("next", a.next.Load()),
					zap.Uint64("observed", a.observed.Load()),
					zap.Uint64("limit", a.opts.InFlightLimit),
					zap.Duration("waited", time.Since(start)))
			}
			if err := a.forceResync(ctx); err == nil {
				outcome = Resynced
				start, stuck = time.Now(), false
				continue
			}
		}
		if err := sleep(ctx, a.opts.PollInterval); err != nil {
			return outcome, errs.WrapMsg(err, "wait for in-flight window", "account", a.address)
		}
		a.tryRefresh(ctx)
	}
	return outcome, nil
}

func (a *Allocator) seed(ctx context.Context) error {
	v, err := a.fetch(ctx)
	if err != nil {
		return err
	}
	a.next.Store(v)
	a.observed.Store(v)
	a.ready.Store(true)
	return nil
}

func (a *Allocator) refresh(ctx context.Context) error {
	v, err := a.fetch(ctx)
	if err != nil {
		return err
	}
	a.observed.Store(v)
	// someone else is sending from this account; never issue below the ledger
	if v > a.next.Load() {
		a.log.Info("ledger ahead of local counter, skipping forward",
			zap.Uint64("next", a.next.Load()), zap.Uint64("observed", v))
		a.next.Store(v)
	}
	return nil
}

// tryRefresh treats a failed read as no progress for this attempt. It runs
// once per poll, so failures are logged at debug without the stack.
func (a *Allocator) tryRefresh(ctx context.Context) {
	if err := a.refresh(ctx); err != nil {
		a.log.Debug("refresh committed sequence number failed", zap.String("error", err.Error()))
	}
}

func (a *Allocator) forceResync(ctx context.Context) error {
	if err := a.seed(ctx); err != nil {
		a.log.Debug("forced resync failed, will retry", zap.String("error", err.Error()))
		return err
	}
	a.resyncs.Add(1)
	a.log.Info("resynced from ledger", zap.Uint64("next", a.next.Load()))
	return nil
}

func (a *Allocator) fetch(ctx context.Context) (uint64, error) {
	v, err := a.query.SequenceNumber(ctx, a.address)
	if err != nil {
		return 0, errs.ErrLedgerUnavailable.WrapErr(err, "query sequence number", "account", a.address)
	}
	return v, nil
}

func (a *Allocator) inFlight() uint64 {
	return a.next.Load() - a.observed.Load()
}

func (a *Allocator) drained() bool {
	return a.observed.Load() == a.next.Load()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
