package localnet

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"PLedger/logger"
	mid "PLedger/middleware"
	"PLedger/module/account"
	"PLedger/module/transfer"
	"PLedger/service/ledger"
	"PLedger/tools/errs"
	"PLedger/tools/safe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// Server exposes a Ledger over the node REST API under /v1 plus the faucet's
// POST /mint.
type Server struct {
	ledger *Ledger
	log    *zap.Logger
	engine *gin.Engine
}

func NewServer(l *Ledger, log *zap.Logger) *Server {
	s := &Server{ledger: l, log: logger.OrDefault(log).Named("localnet.http")}

	mids := mid.NewManager(mid.RequestID(), mid.AccessLog(s.log))
	r := gin.New()
	r.Use(mid.Recovery(s.log), mids.Use())

	opt := mid.RouteOpt{Timeout: requestTimeout}
	v1 := r.Group("/v1")
	// resty joins "/" onto the base URL, so both forms reach the index
	mid.GET(r, "/v1", s.index, opt)
	mid.GET(v1, "/", s.index, opt)
	mid.GET(v1, "/accounts/:address", s.getAccount, opt)
	mid.GET(v1, "/accounts/:address/balance", s.getBalance, opt)
	mid.POST(v1, "/transactions", s.submit, opt)
	mid.GET(v1, "/transactions/by_hash/:hash", s.getTxn, opt)
	mid.POST(r, "/mint", s.mint, opt)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	errCh := make(chan error, 1)
	safe.Go("localnet-http", func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}, func(err error) { errCh <- err })

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.WrapMsg(err, "localnet listen", "addr", addr)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) index(c *gin.Context) {
	v, err := s.ledger.Version(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger.IndexResponse{
		ChainID:         s.ledger.ChainID(),
		LedgerVersion:   strconv.FormatUint(v, 10),
		LedgerTimestamp: strconv.FormatInt(s.ledger.Now().UnixMicro(), 10),
	})
}

func (s *Server) getAccount(c *gin.Context) {
	st, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ledger.AccountResponse{
		SequenceNumber:    strconv.FormatUint(st.SequenceNumber, 10),
		AuthenticationKey: st.AuthKey.String(),
	})
}

func (s *Server) getBalance(c *gin.Context) {
	st, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ledger.BalanceResponse{Balance: strconv.FormatUint(st.Balance, 10)})
}

func (s *Server) lookup(c *gin.Context) (AccountState, bool) {
	addr, err := account.ParseAddress(c.Param("address"))
	if err != nil {
		s.fail(c, err)
		return AccountState{}, false
	}
	st, err := s.ledger.Account(c.Request.Context(), addr)
	if err != nil {
		s.fail(c, err)
		return AccountState{}, false
	}
	return st, true
}

func (s *Server) submit(c *gin.Context) {
	var w transfer.WireTransaction
	if err := c.ShouldBindJSON(&w); err != nil {
		s.fail(c, errs.ErrArgs.WrapErr(err, "decode transaction body"))
		return
	}
	stx, err := w.Decode()
	if err != nil {
		s.fail(c, err)
		return
	}
	hash, err := s.ledger.Submit(c.Request.Context(), stx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ledger.Transaction{
		Type:           ledger.TypePendingTransaction,
		Hash:           hash,
		Sender:         stx.Raw.Sender.String(),
		SequenceNumber: strconv.FormatUint(stx.Raw.SequenceNumber, 10),
	})
}

func (s *Server) getTxn(c *gin.Context) {
	rec, pending, err := s.ledger.Txn(c.Request.Context(), c.Param("hash"))
	if err != nil {
		s.fail(c, err)
		return
	}
	out := ledger.Transaction{
		Type:           ledger.TypeUserTransaction,
		Hash:           rec.Hash,
		Sender:         rec.Sender,
		SequenceNumber: strconv.FormatUint(rec.SequenceNumber, 10),
		Success:        rec.Success,
		VMStatus:       rec.VMStatus,
	}
	if pending {
		out.Type = ledger.TypePendingTransaction
	} else {
		out.Version = strconv.FormatUint(rec.Version, 10)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) mint(c *gin.Context) {
	addr, err := account.ParseAddress(c.Query("address"))
	if err != nil {
		s.fail(c, err)
		return
	}
	amount, err := strconv.ParseUint(c.Query("amount"), 10, 64)
	if err != nil {
		s.fail(c, errs.ErrArgs.WrapMsg("invalid amount", "amount", c.Query("amount")))
		return
	}
	hash, err := s.ledger.Mint(c.Request.Context(), addr, amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, []string{hash})
}

func (s *Server) fail(c *gin.Context, err error) {
	code := ledger.ErrorCodeOf(err)
	status := statusOf(code)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, ledger.APIError{Message: err.Error(), ErrorCode: code})
}

func statusOf(code string) int {
	switch code {
	case ledger.CodeAccountNotFound, ledger.CodeTransactionNotFound:
		return http.StatusNotFound
	case ledger.CodeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}
