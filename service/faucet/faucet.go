package faucet

import (
	"context"
	"strconv"
	"time"

	"PLedger/logger"
	"PLedger/service/ledger"
	"PLedger/tools/errs"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client mints test coins through a faucet's POST /mint endpoint.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		log:  logger.OrDefault(log).Named("faucet"),
	}
}

// Fund asks the faucet to mint amount into address, creating the account if
// needed, and returns the hashes of the faucet's transactions.
func (c *Client) Fund(ctx context.Context, address string, amount uint64) ([]string, error) {
	var hashes []string
	apiErr := &ledger.APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"address": address,
			"amount":  strconv.FormatUint(amount, 10),
		}).
		SetResult(&hashes).
		SetError(apiErr).
		Post("/mint")
	if err != nil {
		return nil, errs.ErrLedgerUnavailable.WrapErr(err, "faucet mint", "address", address)
	}
	if resp.IsError() {
		if apiErr.ErrorCode == "" {
			apiErr.ErrorCode, apiErr.Message = ledger.CodeInternal, resp.Status()
		}
		return nil, apiErr.CodeError().WrapErr(apiErr, "faucet mint", "address", address)
	}
	c.log.Debug("funded", zap.String("address", address), zap.Uint64("amount", amount), zap.Strings("hashes", hashes))
	return hashes, nil
}

// FundAndWait funds address and waits for every faucet transaction to commit.
func (c *Client) FundAndWait(ctx context.Context, node *ledger.Client, address string, amount uint64) error {
	hashes, err := c.Fund(ctx, address, amount)
	if err != nil {
		return err
	}
	for _, h := range hashes {
		txn, err := node.WaitForTransaction(ctx, h, 50*time.Millisecond)
		if err != nil {
			return err
		}
		if !txn.Success {
			return errs.ErrLedgerUnavailable.WrapMsg("faucet transaction failed", "hash", h, "vm_status", txn.VMStatus)
		}
	}
	return nil
}
