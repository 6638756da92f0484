package ledger

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"PLedger/logger"
	"PLedger/module/transfer"
	"PLedger/tools/errs"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type Options struct {
	BaseURL string        // node REST root, e.g. http://127.0.0.1:8080/v1
	Timeout time.Duration // per request
}

// Client talks to a ledger node's REST API. It satisfies seq.LedgerQuery.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

func New(opts Options, log *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	hc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	return &Client{
		http: hc,
		log:  logger.OrDefault(log).Named("ledger"),
	}
}

func (c *Client) Info(ctx context.Context) (IndexResponse, error) {
	var out IndexResponse
	err := c.do(ctx, http.MethodGet, "/", nil, &out, nil)
	return out, err
}

type AccountInfo struct {
	SequenceNumber    uint64
	AuthenticationKey string
}

func (c *Client) Account(ctx context.Context, address string) (AccountInfo, error) {
	var out AccountResponse
	if err := c.do(ctx, http.MethodGet, "/accounts/{address}", map[string]string{"address": address}, &out, nil); err != nil {
		return AccountInfo{}, err
	}
	n, err := strconv.ParseUint(out.SequenceNumber, 10, 64)
	if err != nil {
		return AccountInfo{}, errs.ErrLedgerUnavailable.WrapMsg("malformed sequence_number", "value", out.SequenceNumber)
	}
	return AccountInfo{SequenceNumber: n, AuthenticationKey: out.AuthenticationKey}, nil
}

// SequenceNumber returns the sequence number the ledger expects next from address.
func (c *Client) SequenceNumber(ctx context.Context, address string) (uint64, error) {
	info, err := c.Account(ctx, address)
	if err != nil {
		return 0, err
	}
	return info.SequenceNumber, nil
}

func (c *Client) Balance(ctx context.Context, address string) (uint64, error) {
	var out BalanceResponse
	if err := c.do(ctx, http.MethodGet, "/accounts/{address}/balance", map[string]string{"address": address}, &out, nil); err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(out.Balance, 10, 64)
	if err != nil {
		return 0, errs.ErrLedgerUnavailable.WrapMsg("malformed balance", "value", out.Balance)
	}
	return n, nil
}

// SubmitTransaction posts stx and returns the pending transaction the node
// accepted. Acceptance does not mean the transaction will commit.
func (c *Client) SubmitTransaction(ctx context.Context, stx transfer.SignedTransaction) (Transaction, error) {
	var out Transaction
	err := c.do(ctx, http.MethodPost, "/transactions", nil, &out, stx.Wire())
	return out, err
}

func (c *Client) TransactionByHash(ctx context.Context, hash string) (Transaction, error) {
	var out Transaction
	err := c.do(ctx, http.MethodGet, "/transactions/by_hash/{hash}", map[string]string{"hash": hash}, &out, nil)
	return out, err
}

// WaitForTransaction polls until hash is committed. Unknown hashes are polled
// too, since a node may not have indexed a fresh submission yet; the wait is
// bounded by ctx.
func (c *Client) WaitForTransaction(ctx context.Context, hash string, poll time.Duration) (Transaction, error) {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		txn, err := c.TransactionByHash(ctx, hash)
		switch {
		case err == nil && !txn.Pending():
			return txn, nil
		case err != nil && !errors.Is(err, errs.ErrTxnNotFound):
			if ctx.Err() == nil {
				c.log.Debug("poll transaction failed", zap.String("hash", hash), zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return Transaction{}, errs.ErrTimeout.WrapErr(ctx.Err(), "wait for transaction", "hash", hash)
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]string, out any, body any) error {
	apiErr := &APIError{}
	req := c.http.R().
		SetContext(ctx).
		SetResult(out).
		SetError(apiErr)
	if params != nil {
		req.SetPathParams(params)
	}
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return errs.ErrLedgerUnavailable.WrapErr(err, method+" "+path)
	}
	if resp.IsError() {
		if apiErr.ErrorCode == "" {
			apiErr.ErrorCode = CodeInternal
			apiErr.Message = resp.Status()
		}
		return apiErr.CodeError().WrapErr(apiErr, method+" "+path, "status", resp.StatusCode())
	}
	return nil
}
