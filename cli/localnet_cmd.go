package cli

import (
	"context"

	"PLedger/global/config"
	"PLedger/logger"
	"PLedger/service/localnet"
	pledgerredis "PLedger/service/storage/redis"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newLocalnetCmd(a *app) *cobra.Command {
	var (
		listen   string
		dropRate float64
	)
	cmd := &cobra.Command{
		Use:   "localnet",
		Short: "Run the in-process ledger and faucet simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			lc := a.cfg.Localnet
			if cmd.Flags().Changed("listen") {
				lc.Listen = listen
			}
			if cmd.Flags().Changed("drop-rate") {
				lc.DropRate = dropRate
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return runLocalnet(ctx, lc, a.cfg.Ledger.ChainID)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override localnet.listen")
	cmd.Flags().Float64Var(&dropRate, "drop-rate", 0, "override localnet.drop_rate")
	return cmd
}

func openStore(lc config.LocalnetConfig) (localnet.Store, func(), error) {
	if lc.Store != config.StoreRedis {
		return localnet.NewMemoryStore(), func() {}, nil
	}
	err := pledgerredis.InitRedis(pledgerredis.Config{
		Addr:     lc.Redis.Addr,
		Password: lc.Redis.Password,
		DB:       lc.Redis.DB,
		PoolSize: lc.Redis.PoolSize,
	})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := pledgerredis.CloseRedis(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	}
	return localnet.NewRedisStore(pledgerredis.GetRedis(), lc.Redis.Prefix), closeFn, nil
}

func runLocalnet(ctx context.Context, lc config.LocalnetConfig, chainID uint8) error {
	store, closeStore, err := openStore(lc)
	if err != nil {
		return err
	}
	defer closeStore()

	l := localnet.New(store, localnet.Options{
		ChainID:       chainID,
		BlockInterval: lc.BlockInterval,
		DropRate:      lc.DropRate,
		MaxParked:     lc.MaxParked,
	}, logger.Log)
	srv := localnet.NewServer(l, logger.Log)

	logger.Info("localnet starting",
		zap.String("listen", lc.Listen),
		zap.String("store", lc.Store),
		zap.Uint8("chain_id", chainID),
		zap.Duration("block_interval", lc.BlockInterval),
		zap.Float64("drop_rate", lc.DropRate))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, lc.Listen) })
	return g.Wait()
}
