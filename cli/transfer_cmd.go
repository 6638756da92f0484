package cli

import (
	"context"

	"PLedger/logger"
	"PLedger/module/bench"
	"PLedger/service/metrics"
	"PLedger/tools/safe"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type reportView struct {
	Submitted        uint64  `json:"submitted"`
	Failed           uint64  `json:"failed"`
	Committed        uint64  `json:"committed"`
	ResyncedAccounts int     `json:"resynced_accounts"`
	ElapsedMs        int64   `json:"elapsed_ms"`
	TPS              float64 `json:"tps"`
}

func newTransferCmd(a *app) *cobra.Command {
	var accounts, transfers, concurrency int
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Fund fresh senders and run concurrent transfers through sequence allocators",
		RunE: func(cmd *cobra.Command, args []string) error {
			bc := a.cfg.Bench
			if cmd.Flags().Changed("accounts") {
				bc.Accounts = accounts
			}
			if cmd.Flags().Changed("transfers") {
				bc.Transfers = transfers
			}
			if cmd.Flags().Changed("concurrency") {
				bc.Concurrency = concurrency
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			pub, err := newPublisher(a.cfg.Events)
			if err != nil {
				return err
			}
			defer pub.Close()

			collector := metrics.NewAllocatorCollector()
			if a.cfg.Metrics.Listen != "" {
				reg := metrics.NewRegistry(collector)
				mctx, stop := context.WithCancel(ctx)
				defer stop()
				safe.Go("metrics", func() {
					if err := metrics.Serve(mctx, a.cfg.Metrics.Listen, reg); err != nil {
						logger.Warn("metrics server", zap.Error(err))
					}
				}, nil)
			}

			d := bench.New(bench.Config{
				Accounts:       bc.Accounts,
				Transfers:      bc.Transfers,
				Concurrency:    bc.Concurrency,
				FundAmount:     bc.FundAmount,
				TransferAmount: bc.TransferAmount,
				Gas:            gasOptions(a.cfg),
				Allocator:      allocatorOptions(a.cfg.Allocator),
			}, a.nodeClient(), a.faucetClient(),
				bench.WithPublisher(pub),
				bench.WithTracker(collector),
				bench.WithLogger(logger.Log))

			rep, err := d.Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, reportView{
				Submitted:        rep.Submitted,
				Failed:           rep.Failed,
				Committed:        rep.Committed,
				ResyncedAccounts: rep.ResyncedAccounts,
				ElapsedMs:        rep.Elapsed.Milliseconds(),
				TPS:              rep.TPS,
			})
		},
	}
	cmd.Flags().IntVar(&accounts, "accounts", 0, "override bench.accounts")
	cmd.Flags().IntVar(&transfers, "transfers", 0, "override bench.transfers (per account)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "override bench.concurrency")
	return cmd
}
