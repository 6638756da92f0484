// Package localnet is a single-node ledger simulator speaking the same REST
// dialect as service/ledger. It orders each account's transactions by sequence
// number, parks out-of-order submissions until the gap fills, and can drop
// accepted transactions on purpose to exercise client-side recovery.
package localnet

import (
	"context"
	"encoding/hex"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"PLedger/logger"
	"PLedger/module/account"
	"PLedger/module/transfer"
	"PLedger/tools/errs"
	"PLedger/tools/safe"

	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

const (
	VMStatusExecuted            = "Executed successfully"
	VMStatusInsufficientBalance = "Move abort: EINSUFFICIENT_BALANCE"
	VMStatusBadPayload          = "Invalid payload"
)

// faucetAddress is the sender recorded on mint transactions (0x1).
var faucetAddress = account.Address{account.AddressLength - 1: 1}

type Options struct {
	ChainID uint8
	// BlockInterval 0 commits inside Submit; otherwise Run commits on a ticker.
	BlockInterval time.Duration
	// DropRate is the probability an accepted transaction silently vanishes.
	DropRate float64
	// MaxParked bounds how far ahead of the account sequence a submission may be.
	MaxParked uint64
	Rand      *rand.Rand
	Now       func() time.Time
}

type Ledger struct {
	store Store
	opts  Options
	log   *zap.Logger

	mu      sync.Mutex
	parked  map[account.Address]map[uint64]transfer.SignedTransaction
	pending map[string]transfer.SignedTransaction // hash -> accepted, uncommitted
	mints   uint64
	dropped uint64
}

func New(store Store, opts Options, log *zap.Logger) *Ledger {
	safe.MustNotNil(store, "store")
	if opts.MaxParked == 0 {
		opts.MaxParked = 100
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		store:   store,
		opts:    opts,
		log:     logger.OrDefault(log).Named("localnet"),
		parked:  make(map[account.Address]map[uint64]transfer.SignedTransaction),
		pending: make(map[string]transfer.SignedTransaction),
	}
}

func (l *Ledger) ChainID() uint8 { return l.opts.ChainID }

func (l *Ledger) Version(ctx context.Context) (uint64, error) { return l.store.Version(ctx) }

func (l *Ledger) Now() time.Time { return l.opts.Now() }

// Dropped reports how many accepted transactions were discarded.
func (l *Ledger) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

func (l *Ledger) Account(ctx context.Context, addr account.Address) (AccountState, error) {
	st, ok, err := l.store.GetAccount(ctx, addr)
	if err != nil {
		return st, err
	}
	if !ok {
		return st, errs.ErrAccountNotFound.WrapMsg("", "address", addr)
	}
	return st, nil
}

// Txn returns a committed record, or a pending one with pending set.
func (l *Ledger) Txn(ctx context.Context, hash string) (rec TxnRecord, pending bool, err error) {
	l.mu.Lock()
	stx, ok := l.pending[hash]
	l.mu.Unlock()
	if ok {
		return TxnRecord{
			Hash:           hash,
			Sender:         stx.Raw.Sender.String(),
			SequenceNumber: stx.Raw.SequenceNumber,
		}, true, nil
	}
	rec, ok, err = l.store.GetTxn(ctx, hash)
	if err != nil {
		return rec, false, err
	}
	if !ok {
		return rec, false, errs.ErrTxnNotFound.WrapMsg("", "hash", hash)
	}
	return rec, false, nil
}

// Submit validates stx and accepts it into the account's parking area.
func (l *Ledger) Submit(ctx context.Context, stx transfer.SignedTransaction) (string, error) {
	raw := stx.Raw
	if raw.ChainID != l.opts.ChainID {
		return "", errs.ErrArgs.WrapMsg("wrong chain id", "got", raw.ChainID, "want", l.opts.ChainID)
	}
	if err := stx.Verify(); err != nil {
		return "", err
	}
	if raw.Expired(l.opts.Now()) {
		return "", errs.ErrTxnExpired.WrapMsg("", "expiration", raw.ExpirationTimestampSecs)
	}
	if _, _, err := raw.Payload.CoinTransfer(); err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.Account(ctx, raw.Sender)
	if err != nil {
		return "", err
	}
	if raw.SequenceNumber < st.SequenceNumber {
		return "", errs.ErrSequenceTooOld.WrapMsg("", "got", raw.SequenceNumber, "account", st.SequenceNumber)
	}
	if raw.SequenceNumber >= st.SequenceNumber+l.opts.MaxParked {
		return "", errs.ErrSequenceTooNew.WrapMsg("", "got", raw.SequenceNumber, "account", st.SequenceNumber)
	}

	hash := stx.Hash()
	if l.opts.DropRate > 0 && l.opts.Rand.Float64() < l.opts.DropRate {
		l.dropped++
		l.log.Debug("dropping accepted transaction",
			zap.String("sender", raw.Sender.String()), zap.Uint64("seq", raw.SequenceNumber), zap.String("hash", hash))
		return hash, nil
	}

	slots := l.parked[raw.Sender]
	if slots == nil {
		slots = make(map[uint64]transfer.SignedTransaction)
		l.parked[raw.Sender] = slots
	}
	// a later submission with the same number replaces the parked one
	if old, ok := slots[raw.SequenceNumber]; ok {
		delete(l.pending, old.Hash())
	}
	slots[raw.SequenceNumber] = stx
	l.pending[hash] = stx

	if l.opts.BlockInterval <= 0 {
		if err := l.commitLocked(ctx); err != nil {
			return "", err
		}
	}
	return hash, nil
}

// Mint credits amount to addr, creating the account if needed.
func (l *Ledger) Mint(ctx context.Context, addr account.Address, amount uint64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok, err := l.store.GetAccount(ctx, addr)
	if err != nil {
		return "", err
	}
	if !ok {
		st = AccountState{Address: addr, AuthKey: addr}
	}
	st.Balance += amount
	if err := l.store.PutAccount(ctx, st); err != nil {
		return "", err
	}

	version, err := l.store.NextVersion(ctx)
	if err != nil {
		return "", err
	}
	l.mints++
	h := sha3.Sum256([]byte(addr.String() + ":" + strconv.FormatUint(version, 10) + ":" + strconv.FormatUint(amount, 10)))
	rec := TxnRecord{
		Hash:           "0x" + hex.EncodeToString(h[:]),
		Sender:         faucetAddress.String(),
		SequenceNumber: l.mints - 1,
		Version:        version,
		Success:        true,
		VMStatus:       VMStatusExecuted,
		CommittedAt:    l.opts.Now(),
	}
	if err := l.store.PutTxn(ctx, rec); err != nil {
		return "", err
	}
	return rec.Hash, nil
}

// Run produces a block every BlockInterval until ctx ends. It returns
// immediately when BlockInterval is 0.
func (l *Ledger) Run(ctx context.Context) error {
	if l.opts.BlockInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(l.opts.BlockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.ProduceBlock(ctx); err != nil {
				l.log.Error("produce block", zap.Error(err))
			}
		}
	}
}

// ProduceBlock expires stale parked transactions and commits every run that
// is contiguous with its account's sequence number.
func (l *Ledger) ProduceBlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneExpiredLocked()
	return l.commitLocked(ctx)
}

func (l *Ledger) pruneExpiredLocked() {
	now := l.opts.Now()
	for sender, slots := range l.parked {
		for n, stx := range slots {
			if stx.Raw.Expired(now) {
				delete(slots, n)
				delete(l.pending, stx.Hash())
			}
		}
		if len(slots) == 0 {
			delete(l.parked, sender)
		}
	}
}

func (l *Ledger) commitLocked(ctx context.Context) error {
	for sender, slots := range l.parked {
		st, err := l.Account(ctx, sender)
		if err != nil {
			return err
		}
		committed := 0
		for {
			stx, ok := slots[st.SequenceNumber]
			if !ok {
				break
			}
			if err := l.executeLocked(ctx, &st, stx); err != nil {
				return err
			}
			delete(slots, stx.Raw.SequenceNumber)
			committed++
		}
		if committed > 0 {
			if err := l.store.PutAccount(ctx, st); err != nil {
				return err
			}
		}
		if len(slots) == 0 {
			delete(l.parked, sender)
		}
	}
	return nil
}

// executeLocked applies stx to sender (already loaded into st) and records it.
// Failed execution still consumes the sequence number.
func (l *Ledger) executeLocked(ctx context.Context, st *AccountState, stx transfer.SignedTransaction) error {
	hash := stx.Hash()
	rec := TxnRecord{
		Hash:           hash,
		Sender:         st.Address.String(),
		SequenceNumber: stx.Raw.SequenceNumber,
		CommittedAt:    l.opts.Now(),
	}

	to, amount, err := stx.Raw.Payload.CoinTransfer()
	switch {
	case err != nil:
		rec.VMStatus = VMStatusBadPayload
	case st.Balance < amount:
		rec.VMStatus = VMStatusInsufficientBalance
	case to == st.Address:
		rec.Success, rec.VMStatus = true, VMStatusExecuted
	default:
		recv, ok, err := l.store.GetAccount(ctx, to)
		if err != nil {
			return err
		}
		if !ok {
			recv = AccountState{Address: to, AuthKey: to}
		}
		recv.Balance += amount
		if err := l.store.PutAccount(ctx, recv); err != nil {
			return err
		}
		st.Balance -= amount
		rec.Success, rec.VMStatus = true, VMStatusExecuted
	}
	st.SequenceNumber++

	if rec.Version, err = l.store.NextVersion(ctx); err != nil {
		return err
	}
	if err := l.store.PutTxn(ctx, rec); err != nil {
		return err
	}
	delete(l.pending, hash)
	return nil
}
