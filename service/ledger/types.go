package ledger

import (
	"PLedger/tools/errs"
)

const (
	TypePendingTransaction = "pending_transaction"
	TypeUserTransaction    = "user_transaction"
)

// REST error codes shared by the client and the local ledger.
const (
	CodeAccountNotFound      = "account_not_found"
	CodeTransactionNotFound  = "transaction_not_found"
	CodeSequenceNumberTooOld = "sequence_number_too_old"
	CodeSequenceNumberTooNew = "sequence_number_too_new"
	CodeInvalidSignature     = "invalid_signature"
	CodeInvalidInput         = "invalid_input"
	CodeInsufficientBalance  = "insufficient_balance"
	CodeTransactionExpired   = "transaction_expired"
	CodeInternal             = "internal_error"
)

type IndexResponse struct {
	ChainID         uint8  `json:"chain_id"`
	LedgerVersion   string `json:"ledger_version"`
	LedgerTimestamp string `json:"ledger_timestamp"`
}

type AccountResponse struct {
	SequenceNumber    string `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

type BalanceResponse struct {
	Balance string `json:"balance"`
}

type Transaction struct {
	Type           string `json:"type"`
	Hash           string `json:"hash"`
	Sender         string `json:"sender"`
	SequenceNumber string `json:"sequence_number"`
	Version        string `json:"version,omitempty"`
	Success        bool   `json:"success"`
	VMStatus       string `json:"vm_status,omitempty"`
}

func (t Transaction) Pending() bool { return t.Type == TypePendingTransaction }

// APIError is the body of every non-2xx response.
type APIError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

func (e *APIError) Error() string { return e.ErrorCode + ": " + e.Message }

// CodeError maps a REST error code onto the local error codes.
func (e *APIError) CodeError() *errs.CodeError {
	switch e.ErrorCode {
	case CodeAccountNotFound:
		return errs.ErrAccountNotFound
	case CodeTransactionNotFound:
		return errs.ErrTxnNotFound
	case CodeSequenceNumberTooOld:
		return errs.ErrSequenceTooOld
	case CodeSequenceNumberTooNew:
		return errs.ErrSequenceTooNew
	case CodeInvalidSignature:
		return errs.ErrInvalidSignature
	case CodeInvalidInput:
		return errs.ErrArgs
	case CodeInsufficientBalance:
		return errs.ErrInsufficientBalance
	case CodeTransactionExpired:
		return errs.ErrTxnExpired
	}
	return errs.ErrLedgerUnavailable
}

// ErrorCodeOf is the inverse of APIError.CodeError, used when serving errors.
func ErrorCodeOf(err error) string {
	switch errs.Code(err) {
	case errs.AccountNotFoundError:
		return CodeAccountNotFound
	case errs.TxnNotFoundError:
		return CodeTransactionNotFound
	case errs.SequenceTooOldError:
		return CodeSequenceNumberTooOld
	case errs.SequenceTooNewError:
		return CodeSequenceNumberTooNew
	case errs.InvalidSignatureError:
		return CodeInvalidSignature
	case errs.ArgsError:
		return CodeInvalidInput
	case errs.InsufficientBalanceErr:
		return CodeInsufficientBalance
	case errs.TxnExpiredError:
		return CodeTransactionExpired
	}
	return CodeInternal
}
