package localnet

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"PLedger/module/account"
	"PLedger/module/transfer"
	"PLedger/tools/errs"
)

const testChain = 4

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestAccount(t *testing.T, b byte) *account.Account {
	t.Helper()
	acct, err := account.FromSeed(bytes.Repeat([]byte{b}, 32))
	if err != nil {
		t.Fatal(err)
	}
	return acct
}

func newTestLedger(t *testing.T, opts Options) (*Ledger, *clock) {
	t.Helper()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	opts.ChainID = testChain
	opts.Now = clk.Now
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	return New(NewMemoryStore(), opts, nil), clk
}

func signTransfer(from *account.Account, seq uint64, to account.Address, amount uint64, now time.Time) transfer.SignedTransaction {
	raw := transfer.NewCoinTransfer(from.Address(), seq, to, amount, transfer.GasOptions{
		MaxGasAmount: 2000,
		GasUnitPrice: 100,
		Expiration:   30 * time.Second,
		ChainID:      testChain,
	}, now)
	return transfer.Sign(from, raw)
}

func mustAccount(t *testing.T, l *Ledger, addr account.Address) AccountState {
	t.Helper()
	st, err := l.Account(context.Background(), addr)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestMintCreatesAccount(t *testing.T) {
	l, _ := newTestLedger(t, Options{})
	ctx := context.Background()
	alice := newTestAccount(t, 1)

	if _, err := l.Account(ctx, alice.Address()); !errors.Is(err, errs.ErrAccountNotFound) {
		t.Fatalf("want account not found, got %v", err)
	}
	h1, err := l.Mint(ctx, alice.Address(), 500)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := l.Mint(ctx, alice.Address(), 500)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("mint hashes collide")
	}
	st := mustAccount(t, l, alice.Address())
	if st.Balance != 1000 || st.SequenceNumber != 0 {
		t.Fatalf("state = %+v", st)
	}
	rec, pending, err := l.Txn(ctx, h1)
	if err != nil || pending || !rec.Success {
		t.Fatalf("mint txn = %+v pending=%v err=%v", rec, pending, err)
	}
}

func TestSubmitCommitsInOrder(t *testing.T) {
	l, clk := newTestLedger(t, Options{})
	ctx := context.Background()
	alice, bob := newTestAccount(t, 1), newTestAccount(t, 2)
	if _, err := l.Mint(ctx, alice.Address(), 1000); err != nil {
		t.Fatal(err)
	}

	for i := uint64(0); i < 3; i++ {
		hash, err := l.Submit(ctx, signTransfer(alice, i, bob.Address(), 100, clk.Now()))
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		rec, pending, err := l.Txn(ctx, hash)
		if err != nil || pending || !rec.Success || rec.SequenceNumber != i {
			t.Fatalf("txn %d = %+v pending=%v err=%v", i, rec, pending, err)
		}
	}
	if st := mustAccount(t, l, alice.Address()); st.SequenceNumber != 3 || st.Balance != 700 {
		t.Fatalf("alice = %+v", st)
	}
	if st := mustAccount(t, l, bob.Address()); st.Balance != 300 {
		t.Fatalf("bob = %+v", st)
	}
}

func TestOutOfOrderIsParkedUntilGapFills(t *testing.T) {
	l, clk := newTestLedger(t, Options{})
	ctx := context.Background()
	alice, bob := newTestAccount(t, 1), newTestAccount(t, 2)
	if _, err := l.Mint(ctx, alice.Address(), 1000); err != nil {
		t.Fatal(err)
	}

	h1, err := l.Submit(ctx, signTransfer(alice, 1, bob.Address(), 10, clk.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if _, pending, err := l.Txn(ctx, h1); err != nil || !pending {
		t.Fatalf("seq 1 should be pending, pending=%v err=%v", pending, err)
	}
	if st := mustAccount(t, l, alice.Address()); st.SequenceNumber != 0 {
		t.Fatalf("seq advanced past a gap: %+v", st)
	}

	if _, err := l.Submit(ctx, signTransfer(alice, 0, bob.Address(), 10, clk.Now())); err != nil {
		t.Fatal(err)
	}
	if st := mustAccount(t, l, alice.Address()); st.SequenceNumber != 2 {
		t.Fatalf("alice = %+v", st)
	}
	if _, pending, err := l.Txn(ctx, h1); err != nil || pending {
		t.Fatalf("seq 1 should be committed, pending=%v err=%v", pending, err)
	}
}

func TestParkedSlotIsReplaced(t *testing.T) {
	l, clk := newTestLedger(t, Options{})
	ctx := context.Background()
	alice, bob, carol := newTestAccount(t, 1), newTestAccount(t, 2), newTestAccount(t, 3)
	if _, err := l.Mint(ctx, alice.Address(), 1000); err != nil {
		t.Fatal(err)
	}

	first, err := l.Submit(ctx, signTransfer(alice, 1, bob.Address(), 10, clk.Now()))
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.Submit(ctx, signTransfer(alice, 1, carol.Address(), 10, clk.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := l.Txn(ctx, first); !errors.Is(err, errs.ErrTxnNotFound) {
		t.Fatalf("replaced txn should be gone, got %v", err)
	}
	if _, err := l.Submit(ctx, signTransfer(alice, 0, bob.Address(), 10, clk.Now())); err != nil {
		t.Fatal(err)
	}
	if rec, _, err := l.Txn(ctx, second); err != nil || !rec.Success {
		t.Fatalf("replacement = %+v err=%v", rec, err)
	}
	if st := mustAccount(t, l, carol.Address()); st.Balance != 10 {
		t.Fatalf("carol = %+v", st)
	}
}

func TestSubmitRejections(t *testing.T) {
	l, clk := newTestLedger(t, Options{MaxParked: 5})
	ctx := context.Background()
	alice, bob := newTestAccount(t, 1), newTestAccount(t, 2)
	if _, err := l.Submit(ctx, signTransfer(alice, 0, bob.Address(), 1, clk.Now())); !errors.Is(err, errs.ErrAccountNotFound) {
		t.Fatalf("unfunded sender: %v", err)
	}
	if _, err := l.Mint(ctx, alice.Address(), 1000); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Submit(ctx, signTransfer(alice, 0, bob.Address(), 1, clk.Now())); err != nil {
		t.Fatal(err)
	}

	tooOld := signTransfer(alice, 0, bob.Address(), 1, clk.Now())
	tooNew := signTransfer(alice, 6, bob.Address(), 1, clk.Now())
	badSig := signTransfer(alice, 1, bob.Address(), 1, clk.Now())
	badSig.Signature[0] ^= 0xff
	wrongSigner := signTransfer(bob, 1, bob.Address(), 1, clk.Now())
	wrongSigner.Raw.Sender = alice.Address()
	wrongChain := signTransfer(alice, 1, bob.Address(), 1, clk.Now())
	wrongChain.Raw.ChainID = testChain + 1
	expired := signTransfer(alice, 1, bob.Address(), 1, clk.Now().Add(-time.Minute))

	cases := []struct {
		name string
		stx  transfer.SignedTransaction
		want error
	}{
		{"too old", tooOld, errs.ErrSequenceTooOld},
		{"too new", tooNew, errs.ErrSequenceTooNew},
		{"bad signature", badSig, errs.ErrInvalidSignature},
		{"wrong signer", wrongSigner, errs.ErrInvalidSignature},
		{"wrong chain", wrongChain, errs.ErrArgs},
		{"expired", expired, errs.ErrTxnExpired},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := l.Submit(ctx, c.stx); !errors.Is(err, c.want) {
				t.Fatalf("want %v, got %v", c.want, err)
			}
		})
	}
	if st := mustAccount(t, l, alice.Address()); st.SequenceNumber != 1 {
		t.Fatalf("rejections moved the sequence: %+v", st)
	}
}

func TestInsufficientBalanceConsumesSequence(t *testing.T) {
	l, clk := newTestLedger(t, Options{})
	ctx := context.Background()
	alice, bob := newTestAccount(t, 1), newTestAccount(t, 2)
	if _, err := l.Mint(ctx, alice.Address(), 5); err != nil {
		t.Fatal(err)
	}
	hash, err := l.Submit(ctx, signTransfer(alice, 0, bob.Address(), 50, clk.Now()))
	if err != nil {
		t.Fatal(err)
	}
	rec, _, err := l.Txn(ctx, hash)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Success || rec.VMStatus != VMStatusInsufficientBalance {
		t.Fatalf("rec = %+v", rec)
	}
	if st := mustAccount(t, l, alice.Address()); st.SequenceNumber != 1 || st.Balance != 5 {
		t.Fatalf("alice = %+v", st)
	}
}

func TestDropRateDiscardsAcceptedTransactions(t *testing.T) {
	l, clk := newTestLedger(t, Options{DropRate: 1})
	ctx := context.Background()
	alice, bob := newTestAccount(t, 1), newTestAccount(t, 2)
	if _, err := l.Mint(ctx, alice.Address(), 1000); err != nil {
		t.Fatal(err)
	}
	hash, err := l.Submit(ctx, signTransfer(alice, 0, bob.Address(), 1, clk.Now()))
	if err != nil {
		t.Fatalf("a dropped transaction is still accepted: %v", err)
	}
	if _, _, err := l.Txn(ctx, hash); !errors.Is(err, errs.ErrTxnNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if l.Dropped() != 1 {
		t.Fatalf("dropped = %d", l.Dropped())
	}
	if st := mustAccount(t, l, alice.Address()); st.SequenceNumber != 0 {
		t.Fatalf("alice = %+v", st)
	}
}

func TestBlockIntervalDefersCommitAndPrunesExpired(t *testing.T) {
	l, clk := newTestLedger(t, Options{BlockInterval: time.Hour})
	ctx := context.Background()
	alice, bob := newTestAccount(t, 1), newTestAccount(t, 2)
	if _, err := l.Mint(ctx, alice.Address(), 1000); err != nil {
		t.Fatal(err)
	}

	h0, err := l.Submit(ctx, signTransfer(alice, 0, bob.Address(), 1, clk.Now()))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := l.Submit(ctx, signTransfer(alice, 2, bob.Address(), 1, clk.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if _, pending, _ := l.Txn(ctx, h0); !pending {
		t.Fatal("commit happened before a block")
	}
	if err := l.ProduceBlock(ctx); err != nil {
		t.Fatal(err)
	}
	if _, pending, err := l.Txn(ctx, h0); err != nil || pending {
		t.Fatalf("seq 0 after block: pending=%v err=%v", pending, err)
	}
	if _, pending, _ := l.Txn(ctx, h2); !pending {
		t.Fatal("seq 2 committed across a gap")
	}

	clk.Advance(time.Minute)
	if err := l.ProduceBlock(ctx); err != nil {
		t.Fatal(err)
	}
	if _, _, err := l.Txn(ctx, h2); !errors.Is(err, errs.ErrTxnNotFound) {
		t.Fatalf("expired parked txn should be pruned, got %v", err)
	}
	if st := mustAccount(t, l, alice.Address()); st.SequenceNumber != 1 {
		t.Fatalf("alice = %+v", st)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	l, _ := newTestLedger(t, Options{BlockInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
