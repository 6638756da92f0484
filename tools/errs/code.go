package errs

const (
	ServerInternalError    = 500
	ArgsError              = 1001
	LedgerUnavailableError = 1101 // ledger read/write failed
	AccountNotFoundError   = 1102
	SequenceTooOldError    = 1103
	SequenceTooNewError    = 1104
	InvalidSignatureError  = 1105
	InsufficientBalanceErr = 1106
	TxnNotFoundError       = 1107
	TxnExpiredError        = 1108
	TimeoutError           = 1109
)

var (
	ErrInternal            = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrArgs                = NewCodeError(ArgsError, "ArgsError")
	ErrLedgerUnavailable   = NewCodeError(LedgerUnavailableError, "LedgerUnavailable")
	ErrAccountNotFound     = NewCodeError(AccountNotFoundError, "AccountNotFound")
	ErrSequenceTooOld      = NewCodeError(SequenceTooOldError, "SequenceNumberTooOld")
	ErrSequenceTooNew      = NewCodeError(SequenceTooNewError, "SequenceNumberTooNew")
	ErrInvalidSignature    = NewCodeError(InvalidSignatureError, "InvalidSignature")
	ErrInsufficientBalance = NewCodeError(InsufficientBalanceErr, "InsufficientBalance")
	ErrTxnNotFound         = NewCodeError(TxnNotFoundError, "TransactionNotFound")
	ErrTxnExpired          = NewCodeError(TxnExpiredError, "TransactionExpired")
	ErrTimeout             = NewCodeError(TimeoutError, "Timeout")
)

func init() {
	// a timed out ledger call is also an unavailable ledger
	_ = DefaultCodeRelation.Add(LedgerUnavailableError, TimeoutError)
}
