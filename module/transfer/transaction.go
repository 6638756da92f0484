package transfer

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"

	"PLedger/module/account"
	"PLedger/tools/errs"

	"golang.org/x/crypto/sha3"
)

const (
	CoinTransferFunction = "0x1::coin::transfer"
	NativeCoinType       = "0x1::pledger_coin::Coin"

	rawTxnSalt = "PLEDGER::RawTransaction"
	txnSalt    = "PLEDGER::Transaction"
)

// EntryFunction is a call to an on-chain function with string-encoded arguments.
type EntryFunction struct {
	Function      string
	TypeArguments []string
	Arguments     []string
}

type RawTransaction struct {
	Sender                  account.Address
	SequenceNumber          uint64
	Payload                 EntryFunction
	MaxGasAmount            uint64
	GasUnitPrice            uint64
	ExpirationTimestampSecs uint64
	ChainID                 uint8
}

type GasOptions struct {
	MaxGasAmount uint64
	GasUnitPrice uint64
	Expiration   time.Duration // relative to the build time
	ChainID      uint8
}

func NewCoinTransfer(sender account.Address, seq uint64, to account.Address, amount uint64, gas GasOptions, now time.Time) RawTransaction {
	return RawTransaction{
		Sender:         sender,
		SequenceNumber: seq,
		Payload: EntryFunction{
			Function:      CoinTransferFunction,
			TypeArguments: []string{NativeCoinType},
			Arguments:     []string{to.String(), strconv.FormatUint(amount, 10)},
		},
		MaxGasAmount:            gas.MaxGasAmount,
		GasUnitPrice:            gas.GasUnitPrice,
		ExpirationTimestampSecs: uint64(now.Add(gas.Expiration).Unix()),
		ChainID:                 gas.ChainID,
	}
}

// CoinTransfer extracts recipient and amount from a coin transfer payload.
func (p EntryFunction) CoinTransfer() (account.Address, uint64, error) {
	if p.Function != CoinTransferFunction || len(p.Arguments) != 2 {
		return account.Address{}, 0, errs.ErrArgs.WrapMsg("not a coin transfer", "function", p.Function)
	}
	to, err := account.ParseAddress(p.Arguments[0])
	if err != nil {
		return account.Address{}, 0, err
	}
	amount, err := strconv.ParseUint(p.Arguments[1], 10, 64)
	if err != nil {
		return account.Address{}, 0, errs.ErrArgs.WrapMsg("invalid amount", "amount", p.Arguments[1])
	}
	return to, amount, nil
}

// Encode is the canonical byte form of r: fixed width little-endian integers
// and uvarint length-prefixed strings, in field order.
func (r RawTransaction) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(r.Sender[:])
	putU64(&buf, r.SequenceNumber)
	putString(&buf, r.Payload.Function)
	putStrings(&buf, r.Payload.TypeArguments)
	putStrings(&buf, r.Payload.Arguments)
	putU64(&buf, r.MaxGasAmount)
	putU64(&buf, r.GasUnitPrice)
	putU64(&buf, r.ExpirationTimestampSecs)
	buf.WriteByte(r.ChainID)
	return buf.Bytes()
}

// SigningMessage is what the sender signs: a domain separator followed by
// the encoded transaction.
func (r RawTransaction) SigningMessage() []byte {
	prefix := sha3.Sum256([]byte(rawTxnSalt))
	return append(prefix[:], r.Encode()...)
}

func (r RawTransaction) Expired(now time.Time) bool {
	return uint64(now.Unix()) >= r.ExpirationTimestampSecs
}

type SignedTransaction struct {
	Raw       RawTransaction
	PublicKey ed25519.PublicKey
	Signature []byte
}

func Sign(acct *account.Account, raw RawTransaction) SignedTransaction {
	return SignedTransaction{
		Raw:       raw,
		PublicKey: acct.PublicKey(),
		Signature: acct.Sign(raw.SigningMessage()),
	}
}

// Verify checks that the public key owns the sender address and signed the
// transaction.
func (s SignedTransaction) Verify() error {
	if len(s.PublicKey) != ed25519.PublicKeySize {
		return errs.ErrInvalidSignature.WrapMsg("bad public key length", "len", len(s.PublicKey))
	}
	if account.AuthKey(s.PublicKey) != s.Raw.Sender {
		return errs.ErrInvalidSignature.WrapMsg("public key does not match sender", "sender", s.Raw.Sender)
	}
	if !account.Verify(s.PublicKey, s.Raw.SigningMessage(), s.Signature) {
		return errs.ErrInvalidSignature.WrapMsg("signature mismatch", "sender", s.Raw.Sender)
	}
	return nil
}

func (s SignedTransaction) Hash() string {
	prefix := sha3.Sum256([]byte(txnSalt))
	h := sha3.New256()
	h.Write(prefix[:])
	h.Write(s.Raw.Encode())
	h.Write(s.PublicKey)
	h.Write(s.Signature)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func putU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putLen(buf *bytes.Buffer, n int) {
	var b [binary.MaxVarintLen64]byte
	buf.Write(b[:binary.PutUvarint(b[:], uint64(n))])
}

func putString(buf *bytes.Buffer, s string) {
	putLen(buf, len(s))
	buf.WriteString(s)
}

func putStrings(buf *bytes.Buffer, ss []string) {
	putLen(buf, len(ss))
	for _, s := range ss {
		putString(buf, s)
	}
}
