package transfer

import (
	"encoding/hex"
	"strconv"
	"strings"

	"PLedger/module/account"
	"PLedger/tools/errs"
)

const (
	EntryFunctionPayloadType = "entry_function_payload"
	Ed25519SignatureType     = "ed25519_signature"
)

// WireTransaction is the JSON body of POST /transactions. Integers wider than
// 32 bits travel as decimal strings.
type WireTransaction struct {
	Sender                  string        `json:"sender"`
	SequenceNumber          string        `json:"sequence_number"`
	MaxGasAmount            string        `json:"max_gas_amount"`
	GasUnitPrice            string        `json:"gas_unit_price"`
	ExpirationTimestampSecs string        `json:"expiration_timestamp_secs"`
	ChainID                 uint8         `json:"chain_id"`
	Payload                 WirePayload   `json:"payload"`
	Signature               WireSignature `json:"signature"`
}

type WirePayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []string `json:"arguments"`
}

type WireSignature struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

func (s SignedTransaction) Wire() WireTransaction {
	r := s.Raw
	return WireTransaction{
		Sender:                  r.Sender.String(),
		SequenceNumber:          strconv.FormatUint(r.SequenceNumber, 10),
		MaxGasAmount:            strconv.FormatUint(r.MaxGasAmount, 10),
		GasUnitPrice:            strconv.FormatUint(r.GasUnitPrice, 10),
		ExpirationTimestampSecs: strconv.FormatUint(r.ExpirationTimestampSecs, 10),
		ChainID:                 r.ChainID,
		Payload: WirePayload{
			Type:          EntryFunctionPayloadType,
			Function:      r.Payload.Function,
			TypeArguments: r.Payload.TypeArguments,
			Arguments:     r.Payload.Arguments,
		},
		Signature: WireSignature{
			Type:      Ed25519SignatureType,
			PublicKey: "0x" + hex.EncodeToString(s.PublicKey),
			Signature: "0x" + hex.EncodeToString(s.Signature),
		},
	}
}

// Decode converts w back into a SignedTransaction. It does not verify the
// signature.
func (w WireTransaction) Decode() (SignedTransaction, error) {
	var (
		s   SignedTransaction
		err error
	)
	if w.Payload.Type != EntryFunctionPayloadType {
		return s, errs.ErrArgs.WrapMsg("unsupported payload type", "type", w.Payload.Type)
	}
	if w.Signature.Type != Ed25519SignatureType {
		return s, errs.ErrArgs.WrapMsg("unsupported signature type", "type", w.Signature.Type)
	}
	if s.Raw.Sender, err = account.ParseAddress(w.Sender); err != nil {
		return s, err
	}
	for _, f := range []struct {
		name string
		in   string
		out  *uint64
	}{
		{"sequence_number", w.SequenceNumber, &s.Raw.SequenceNumber},
		{"max_gas_amount", w.MaxGasAmount, &s.Raw.MaxGasAmount},
		{"gas_unit_price", w.GasUnitPrice, &s.Raw.GasUnitPrice},
		{"expiration_timestamp_secs", w.ExpirationTimestampSecs, &s.Raw.ExpirationTimestampSecs},
	} {
		if *f.out, err = strconv.ParseUint(f.in, 10, 64); err != nil {
			return s, errs.ErrArgs.WrapMsg("invalid u64", "field", f.name, "value", f.in)
		}
	}
	s.Raw.ChainID = w.ChainID
	s.Raw.Payload = EntryFunction{
		Function:      w.Payload.Function,
		TypeArguments: w.Payload.TypeArguments,
		Arguments:     w.Payload.Arguments,
	}
	if s.PublicKey, err = decodeHex(w.Signature.PublicKey); err != nil {
		return s, errs.ErrArgs.WrapMsg("invalid public key hex")
	}
	if s.Signature, err = decodeHex(w.Signature.Signature); err != nil {
		return s, errs.ErrArgs.WrapMsg("invalid signature hex")
	}
	return s, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
