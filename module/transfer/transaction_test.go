package transfer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"PLedger/module/account"
	"PLedger/tools/errs"
)

func newSigned(t *testing.T, seq uint64) (*account.Account, account.Address, SignedTransaction) {
	t.Helper()
	sender, err := account.Generate()
	if err != nil {
		t.Fatal(err)
	}
	to, err := account.Generate()
	if err != nil {
		t.Fatal(err)
	}
	now := time.Unix(1_700_000_000, 0)
	raw := NewCoinTransfer(sender.Address(), seq, to.Address(), 250, GasOptions{
		MaxGasAmount: 2000,
		GasUnitPrice: 100,
		Expiration:   time.Minute,
		ChainID:      4,
	}, now)
	return sender, to.Address(), Sign(sender, raw)
}

func TestSignVerify(t *testing.T) {
	_, to, stx := newSigned(t, 3)
	if err := stx.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	gotTo, amount, err := stx.Raw.Payload.CoinTransfer()
	if err != nil {
		t.Fatal(err)
	}
	if gotTo != to || amount != 250 {
		t.Errorf("CoinTransfer() = %s, %d", gotTo, amount)
	}
	if stx.Raw.ExpirationTimestampSecs != 1_700_000_060 {
		t.Errorf("expiration = %d", stx.Raw.ExpirationTimestampSecs)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	_, _, stx := newSigned(t, 3)

	bumped := stx
	bumped.Raw.SequenceNumber = 4
	if err := bumped.Verify(); !errors.Is(err, errs.ErrInvalidSignature) {
		t.Errorf("changed sequence number: err = %v", err)
	}

	other, _ := account.Generate()
	stolen := stx
	stolen.PublicKey = other.PublicKey()
	stolen.Signature = other.Sign(stx.Raw.SigningMessage())
	if err := stolen.Verify(); !errors.Is(err, errs.ErrInvalidSignature) {
		t.Errorf("foreign key: err = %v", err)
	}
}

func TestHashCoversSequenceNumber(t *testing.T) {
	sender, _, a := newSigned(t, 1)
	raw := a.Raw
	raw.SequenceNumber = 2
	b := Sign(sender, raw)
	if a.Hash() == b.Hash() {
		t.Error("different sequence numbers produced the same hash")
	}
	if len(a.Hash()) != 66 {
		t.Errorf("hash %q is not 32 bytes of hex", a.Hash())
	}
}

func TestEncodeDeterministic(t *testing.T) {
	_, _, stx := newSigned(t, 9)
	if !bytes.Equal(stx.Raw.Encode(), stx.Raw.Encode()) {
		t.Error("Encode is not deterministic")
	}
}

func TestWireDecode(t *testing.T) {
	_, _, stx := newSigned(t, 77)
	back, err := stx.Wire().Decode()
	if err != nil {
		t.Fatal(err)
	}
	if err := back.Verify(); err != nil {
		t.Fatalf("decoded transaction does not verify: %v", err)
	}
	if back.Hash() != stx.Hash() {
		t.Error("hash changed through the wire form")
	}

	w := stx.Wire()
	w.SequenceNumber = "-1"
	if _, err := w.Decode(); !errors.Is(err, errs.ErrArgs) {
		t.Errorf("negative sequence number: err = %v", err)
	}
	w = stx.Wire()
	w.Payload.Type = "script_payload"
	if _, err := w.Decode(); !errors.Is(err, errs.ErrArgs) {
		t.Errorf("script payload: err = %v", err)
	}
}

func TestExpired(t *testing.T) {
	_, _, stx := newSigned(t, 0)
	if stx.Raw.Expired(time.Unix(1_700_000_059, 0)) {
		t.Error("expired one second early")
	}
	if !stx.Raw.Expired(time.Unix(1_700_000_060, 0)) {
		t.Error("not expired at the deadline")
	}
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func TestMultiPublisher(t *testing.T) {
	ok := &recordingPublisher{}
	bad := &recordingPublisher{err: errors.New("broker down")}
	m := MultiPublisher{NewLogPublisher(nil), ok, bad}

	ev := NewEvent(EventSubmitted, "0x1", 5)
	err := m.Publish(context.Background(), ev)
	if err == nil || !errors.Is(err, bad.err) {
		t.Errorf("Publish err = %v, want the failing publisher's error", err)
	}
	if len(ok.events) != 1 || len(bad.events) != 1 {
		t.Errorf("fan-out incomplete: %d, %d", len(ok.events), len(bad.events))
	}
	if ok.events[0].ID == 0 || ok.events[0].Seq != 5 {
		t.Errorf("event = %+v", ok.events[0])
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
