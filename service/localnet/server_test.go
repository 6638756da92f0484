package localnet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"PLedger/module/seq"
	"PLedger/service/faucet"
	"PLedger/service/ledger"
	pledgerredis "PLedger/service/storage/redis"
	"PLedger/tools/errs"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

type harness struct {
	ledger *Ledger
	clock  *clock
	node   *ledger.Client
	faucet *faucet.Client
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	l, clk := newTestLedger(t, opts)
	srv := httptest.NewServer(NewServer(l, nil).Handler())
	t.Cleanup(srv.Close)
	return &harness{
		ledger: l,
		clock:  clk,
		node:   ledger.New(ledger.Options{BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second}, nil),
		faucet: faucet.New(srv.URL, 5*time.Second, nil),
	}
}

func TestServerIndex(t *testing.T) {
	h := newHarness(t, Options{})
	info, err := h.node.Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.ChainID != testChain || info.LedgerVersion != "0" {
		t.Fatalf("info = %+v", info)
	}
}

func TestServerFundAndTransfer(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	alice, bob := newTestAccount(t, 1), newTestAccount(t, 2)

	if _, err := h.node.Account(ctx, alice.Address().String()); !errors.Is(err, errs.ErrAccountNotFound) {
		t.Fatalf("want account not found, got %v", err)
	}
	if err := h.faucet.FundAndWait(ctx, h.node, alice.Address().String(), 1000); err != nil {
		t.Fatal(err)
	}
	bal, err := h.node.Balance(ctx, alice.Address().String())
	if err != nil || bal != 1000 {
		t.Fatalf("balance = %d err=%v", bal, err)
	}

	pending, err := h.node.SubmitTransaction(ctx, signTransfer(alice, 0, bob.Address(), 250, h.clock.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if pending.Hash == "" || pending.SequenceNumber != "0" {
		t.Fatalf("pending = %+v", pending)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	txn, err := h.node.WaitForTransaction(waitCtx, pending.Hash, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if !txn.Success || txn.Pending() || txn.Version == "" {
		t.Fatalf("txn = %+v", txn)
	}

	n, err := h.node.SequenceNumber(ctx, alice.Address().String())
	if err != nil || n != 1 {
		t.Fatalf("seq = %d err=%v", n, err)
	}
	if bal, _ := h.node.Balance(ctx, bob.Address().String()); bal != 250 {
		t.Fatalf("bob balance = %d", bal)
	}

	if _, err := h.node.SubmitTransaction(ctx, signTransfer(alice, 0, bob.Address(), 1, h.clock.Now())); !errors.Is(err, errs.ErrSequenceTooOld) {
		t.Fatalf("resubmit: want too old, got %v", err)
	}
}

func TestServerErrors(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()

	if _, err := h.node.Account(ctx, "0xzz"); !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("bad address: %v", err)
	}
	if _, err := h.node.TransactionByHash(ctx, "0x01"); !errors.Is(err, errs.ErrTxnNotFound) {
		t.Fatalf("unknown hash: %v", err)
	}
	if _, err := h.faucet.Fund(ctx, "0x1", 0); err != nil {
		t.Fatalf("zero mint: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := h.node.WaitForTransaction(waitCtx, "0x02", 10*time.Millisecond); !errors.Is(err, errs.ErrTimeout) {
		t.Fatalf("wait unknown: %v", err)
	}
}

func TestServerRejectsMalformedBody(t *testing.T) {
	h := newHarness(t, Options{})
	srv := httptest.NewServer(NewServer(h.ledger, nil).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/transactions", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAllocatorAgainstLocalnet(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	alice, bob := newTestAccount(t, 1), newTestAccount(t, 2)
	if err := h.faucet.FundAndWait(ctx, h.node, alice.Address().String(), 1000); err != nil {
		t.Fatal(err)
	}

	alloc := seq.New(alice.Address().String(), h.node, seq.Options{InFlightLimit: 4, PollInterval: time.Millisecond, ResyncTimeout: time.Second}, nil)
	for i := 0; i < 10; i++ {
		tk, err := alloc.Allocate(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if tk.Seq != uint64(i) || tk.Outcome != seq.InSync {
			t.Fatalf("ticket %d = %+v", i, tk)
		}
		if _, err := h.node.SubmitTransaction(ctx, signTransfer(alice, tk.Seq, bob.Address(), 1, h.clock.Now())); err != nil {
			t.Fatal(err)
		}
	}
	out, err := alloc.Synchronize(ctx)
	if err != nil || out != seq.InSync {
		t.Fatalf("synchronize = %v err=%v", out, err)
	}
	if st := alloc.Stats(); st.NextToIssue != 10 || st.LastObserved != 10 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestAllocatorRecoversFromDroppedTransaction(t *testing.T) {
	h := newHarness(t, Options{DropRate: 1})
	ctx := context.Background()
	alice, bob := newTestAccount(t, 1), newTestAccount(t, 2)
	if err := h.faucet.FundAndWait(ctx, h.node, alice.Address().String(), 1000); err != nil {
		t.Fatal(err)
	}

	alloc := seq.New(alice.Address().String(), h.node, seq.Options{InFlightLimit: 1, PollInterval: time.Millisecond, ResyncTimeout: 20 * time.Millisecond}, nil)
	tk, err := alloc.Allocate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.node.SubmitTransaction(ctx, signTransfer(alice, tk.Seq, bob.Address(), 1, h.clock.Now())); err != nil {
		t.Fatal(err)
	}

	// the ledger never commits seq 0, so the next allocation has to resync
	tk, err = alloc.Allocate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tk.Seq != 0 || tk.Outcome != seq.Resynced {
		t.Fatalf("ticket = %+v", tk)
	}
	if alloc.Stats().Resyncs != 1 {
		t.Fatalf("stats = %+v", alloc.Stats())
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("PLEDGER_REDIS_ADDR")
	if addr == "" {
		t.Skip("PLEDGER_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := pledgerredis.NewClient(ctx, pledgerredis.Config{Addr: addr})
	if err != nil {
		t.Fatal(err)
	}
	defer rdb.Close()
	prefix := "pledger-test-" + time.Now().Format("150405.000000")
	store := NewRedisStore(rdb, prefix)
	t.Cleanup(func() {
		keys, _ := rdb.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
	})

	clk := &clock{now: time.Now()}
	l := New(store, Options{ChainID: testChain, Now: clk.Now}, nil)
	alice, bob := newTestAccount(t, 1), newTestAccount(t, 2)
	if _, err := l.Mint(ctx, alice.Address(), 100); err != nil {
		t.Fatal(err)
	}
	hash, err := l.Submit(ctx, signTransfer(alice, 0, bob.Address(), 40, clk.Now()))
	if err != nil {
		t.Fatal(err)
	}
	rec, pending, err := l.Txn(ctx, hash)
	if err != nil || pending || !rec.Success || rec.Version != 2 {
		t.Fatalf("rec = %+v pending=%v err=%v", rec, pending, err)
	}
	st := mustAccount(t, l, alice.Address())
	if st.SequenceNumber != 1 || st.Balance != 60 || st.AuthKey != alice.Address() {
		t.Fatalf("alice = %+v", st)
	}
	if v, _ := store.Version(ctx); v != 2 {
		t.Fatalf("version = %d", v)
	}
}
