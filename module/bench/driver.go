// Package bench drives concurrent coin transfers from a set of funded
// accounts through per-account sequence allocators.
package bench

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"PLedger/logger"
	"PLedger/module/account"
	"PLedger/module/seq"
	"PLedger/module/transfer"
	"PLedger/service/faucet"
	"PLedger/service/ledger"
	"PLedger/tools/errs"
	"PLedger/tools/safe"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Accounts       int
	Transfers      int // per account
	Concurrency    int
	FundAmount     uint64
	TransferAmount uint64
	Gas            transfer.GasOptions // ChainID 0 asks the node
	Allocator      seq.Options
}

// Tracker is told about every allocator the driver creates.
type Tracker interface {
	Track(a *seq.Allocator)
}

type Report struct {
	Submitted        uint64
	Failed           uint64
	Committed        uint64 // sum of the senders' final sequence numbers
	ResyncedAccounts int
	Elapsed          time.Duration
	TPS              float64
}

type Driver struct {
	cfg     Config
	node    *ledger.Client
	faucet  *faucet.Client
	pub     transfer.Publisher
	tracker Tracker
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Driver)

func WithPublisher(p transfer.Publisher) Option { return func(d *Driver) { d.pub = p } }

func WithTracker(t Tracker) Option { return func(d *Driver) { d.tracker = t } }

func WithLogger(l *zap.Logger) Option { return func(d *Driver) { d.log = l } }

func New(cfg Config, node *ledger.Client, fc *faucet.Client, opts ...Option) *Driver {
	safe.MustNotNil(node, "ledger client")
	safe.MustNotNil(fc, "faucet client")
	d := &Driver{cfg: cfg, node: node, faucet: fc, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	d.log = logger.OrDefault(d.log).Named("bench")
	if d.pub == nil {
		d.pub = transfer.NewLogPublisher(d.log)
	}
	if d.cfg.Concurrency <= 0 {
		d.cfg.Concurrency = 1
	}
	return d
}

type sender struct {
	acct  *account.Account
	alloc *seq.Allocator
}

// Run funds fresh senders, issues Transfers from each, then waits for every
// allocator to drain. Individual submission failures are counted, not retried.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	var rep Report
	if d.cfg.Accounts <= 0 || d.cfg.Transfers < 0 {
		return rep, errs.ErrArgs.WrapMsg("bench needs at least one account", "accounts", d.cfg.Accounts)
	}
	if d.cfg.Gas.ChainID == 0 {
		info, err := d.node.Info(ctx)
		if err != nil {
			return rep, err
		}
		d.cfg.Gas.ChainID = info.ChainID
	}

	receiver, err := account.Generate()
	if err != nil {
		return rep, err
	}
	senders, err := d.prepare(ctx)
	if err != nil {
		return rep, err
	}
	d.log.Info("senders funded", zap.Int("accounts", len(senders)), zap.String("receiver", receiver.Address().String()))

	var submitted, failed atomic.Uint64
	start := d.now()

	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Concurrency)
	for i := 0; i < d.cfg.Transfers; i++ {
		for _, s := range senders {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := d.issue(ctx, s, receiver.Address()); err != nil {
					failed.Add(1)
					return nil
				}
				submitted.Add(1)
				return nil
			})
		}
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return rep, errs.WrapMsg(err, "bench interrupted")
	}

	resynced, err := d.drain(ctx, senders)
	if err != nil {
		return rep, err
	}
	rep.Elapsed = d.now().Sub(start)

	for _, s := range senders {
		n, err := d.node.SequenceNumber(ctx, s.acct.Address().String())
		if err != nil {
			d.log.Warn("read final sequence number", zap.String("account", s.acct.Address().String()), zap.Error(err))
			continue
		}
		rep.Committed += n
	}
	rep.Submitted, rep.Failed, rep.ResyncedAccounts = submitted.Load(), failed.Load(), resynced
	if secs := rep.Elapsed.Seconds(); secs > 0 {
		rep.TPS = float64(rep.Committed) / secs
	}
	d.log.Info("bench finished",
		zap.Uint64("submitted", rep.Submitted),
		zap.Uint64("failed", rep.Failed),
		zap.Uint64("committed", rep.Committed),
		zap.Int("resynced_accounts", rep.ResyncedAccounts),
		zap.Duration("elapsed", rep.Elapsed),
		zap.Float64("tps", rep.TPS))
	return rep, nil
}

// prepare creates, funds and initializes one allocator per sender.
func (d *Driver) prepare(ctx context.Context) ([]*sender, error) {
	senders := make([]*sender, d.cfg.Accounts)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i := range senders {
		g.Go(func() error {
			acct, err := account.Generate()
			if err != nil {
				return err
			}
			addr := acct.Address().String()
			if err := d.faucet.FundAndWait(gctx, d.node, addr, d.cfg.FundAmount); err != nil {
				return errs.WrapMsg(err, "fund sender", "account", addr)
			}
			alloc := seq.New(addr, d.node, d.cfg.Allocator, d.log)
			if err := alloc.Initialize(gctx); err != nil {
				return err
			}
			if d.tracker != nil {
				d.tracker.Track(alloc)
			}
			senders[i] = &sender{acct: acct, alloc: alloc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return senders, nil
}

func (d *Driver) issue(ctx context.Context, s *sender, to account.Address) error {
	addr := s.acct.Address().String()
	tk, err := s.alloc.Allocate(ctx)
	if err != nil {
		d.log.Warn("allocate failed", zap.String("account", addr), zap.Error(err))
		return err
	}
	if tk.Outcome == seq.Resynced {
		d.publish(ctx, transfer.NewEvent(transfer.EventResynced, addr, tk.Seq))
	}

	raw := transfer.NewCoinTransfer(s.acct.Address(), tk.Seq, to, d.cfg.TransferAmount, d.cfg.Gas, d.now())
	stx := transfer.Sign(s.acct, raw)
	pending, err := d.node.SubmitTransaction(ctx, stx)
	if err != nil {
		ev := transfer.NewEvent(transfer.EventRejected, addr, tk.Seq)
		ev.Hash, ev.Detail = stx.Hash(), err.Error()
		d.publish(ctx, ev)
		d.log.Debug("submit failed", zap.String("account", addr), zap.Uint64("seq", tk.Seq), zap.Error(err))
		return err
	}
	ev := transfer.NewEvent(transfer.EventSubmitted, addr, tk.Seq)
	ev.Hash = pending.Hash
	d.publish(ctx, ev)
	return nil
}

// drain synchronizes every sender and returns how many needed a forced resync
// at any point of the run.
func (d *Driver) drain(ctx context.Context, senders []*sender) (int, error) {
	var (
		mu       sync.Mutex
		resynced int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for _, s := range senders {
		g.Go(func() error {
			addr := s.acct.Address().String()
			out, err := s.alloc.Synchronize(gctx)
			if err != nil {
				return err
			}
			st := s.alloc.Stats()
			kind := transfer.EventSynchronized
			if out == seq.Resynced {
				kind = transfer.EventResynced
			}
			d.publish(gctx, transfer.NewEvent(kind, addr, st.NextToIssue))
			if st.Resyncs > 0 {
				mu.Lock()
				resynced++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return resynced, nil
}

func (d *Driver) publish(ctx context.Context, ev transfer.Event) {
	if err := d.pub.Publish(ctx, ev); err != nil {
		d.log.Warn("publish event", zap.String("kind", string(ev.Kind)), zap.String("account", ev.Account), zap.Error(err))
	}
}
