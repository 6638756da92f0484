package account

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"PLedger/tools/errs"

	"golang.org/x/crypto/sha3"
)

const (
	AddressLength = 32

	// ed25519SingleSigScheme is appended to the public key before hashing it
	// into an authentication key.
	ed25519SingleSigScheme byte = 0x00
)

type Address [AddressLength]byte

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool { return a == Address{} }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAddress accepts 0x-prefixed or bare hex; short forms such as "0x1" are
// left-padded with zeros.
func ParseAddress(s string) (Address, error) {
	var a Address
	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if h == "" || len(h) > 2*AddressLength {
		return a, errs.ErrArgs.WrapMsg("invalid address length", "address", s)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return a, errs.ErrArgs.WrapMsg("invalid address hex", "address", s)
	}
	copy(a[AddressLength-len(raw):], raw)
	return a, nil
}

// AuthKey derives the authentication key, and so the initial address, of an
// ed25519 public key.
func AuthKey(pub ed25519.PublicKey) Address {
	h := sha3.New256()
	h.Write(pub)
	h.Write([]byte{ed25519SingleSigScheme})
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// Account is a local keypair with its on-chain address.
type Account struct {
	priv    ed25519.PrivateKey
	address Address
}

func Generate() (*Account, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errs.WrapMsg(err, "generate ed25519 key")
	}
	return fromPrivateKey(priv), nil
}

// FromSeed builds an account from a 32 byte ed25519 seed.
func FromSeed(seed []byte) (*Account, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errs.ErrArgs.WrapMsg("invalid seed length", "len", len(seed))
	}
	return fromPrivateKey(ed25519.NewKeyFromSeed(seed)), nil
}

// FromPrivateKeyHex parses the hex seed printed by PrivateKeyHex.
func FromPrivateKeyHex(s string) (*Account, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("invalid private key hex")
	}
	return FromSeed(seed)
}

func fromPrivateKey(priv ed25519.PrivateKey) *Account {
	return &Account{
		priv:    priv,
		address: AuthKey(priv.Public().(ed25519.PublicKey)),
	}
}

func (a *Account) Address() Address { return a.address }

func (a *Account) PublicKey() ed25519.PublicKey {
	return a.priv.Public().(ed25519.PublicKey)
}

func (a *Account) PrivateKeyHex() string {
	return "0x" + hex.EncodeToString(a.priv.Seed())
}

func (a *Account) Sign(msg []byte) []byte {
	return ed25519.Sign(a.priv, msg)
}

// Verify checks sig over msg for pub.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}
