package account

import (
	"bytes"
	"errors"
	"testing"

	"PLedger/tools/errs"
)

func TestGenerateSignVerify(t *testing.T) {
	acct, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("transfer 100")
	sig := acct.Sign(msg)
	if !Verify(acct.PublicKey(), msg, sig) {
		t.Fatal("signature did not verify")
	}
	if Verify(acct.PublicKey(), []byte("transfer 101"), sig) {
		t.Fatal("signature verified for a different message")
	}
	if acct.Address() != AuthKey(acct.PublicKey()) {
		t.Error("address is not the auth key of the public key")
	}
}

func TestFromPrivateKeyHexRoundTrip(t *testing.T) {
	acct, err := FromSeed(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatal(err)
	}
	again, err := FromPrivateKeyHex(acct.PrivateKeyHex())
	if err != nil {
		t.Fatal(err)
	}
	if again.Address() != acct.Address() {
		t.Errorf("address changed: %s vs %s", again.Address(), acct.Address())
	}
	if _, err := FromSeed([]byte{1, 2}); !errors.Is(err, errs.ErrArgs) {
		t.Errorf("short seed: err = %v", err)
	}
}

func TestParseAddress(t *testing.T) {
	one, err := ParseAddress("0x1")
	if err != nil {
		t.Fatal(err)
	}
	if one[AddressLength-1] != 1 || !bytes.Equal(one[:AddressLength-1], make([]byte, AddressLength-1)) {
		t.Errorf("0x1 parsed as %s", one)
	}

	acct, _ := Generate()
	back, err := ParseAddress(acct.Address().String())
	if err != nil || back != acct.Address() {
		t.Errorf("round trip: %s, %v", back, err)
	}

	for _, bad := range []string{"", "0x", "0xzz", "0x" + string(bytes.Repeat([]byte("a"), 65))} {
		if _, err := ParseAddress(bad); !errors.Is(err, errs.ErrArgs) {
			t.Errorf("ParseAddress(%q) err = %v", bad, err)
		}
	}
}

func TestAddressText(t *testing.T) {
	acct, _ := Generate()
	b, _ := acct.Address().MarshalText()
	var a Address
	if err := a.UnmarshalText(b); err != nil || a != acct.Address() {
		t.Errorf("UnmarshalText: %s, %v", a, err)
	}
	if !(Address{}).IsZero() || a.IsZero() {
		t.Error("IsZero mismatch")
	}
}
