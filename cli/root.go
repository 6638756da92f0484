// Package cli is the pledger command tree.
package cli

import (
	"context"
	"os/signal"
	"syscall"

	"PLedger/global/config"
	"PLedger/logger"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

type app struct {
	configPath string
	logLevel   string
	cfg        config.AppConfig
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "pledger",
		Short:         "Concurrent transfer tooling for account-sequenced ledgers",
		Version:       Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newLocalnetCmd(a),
		newAccountCmd(a),
		newFundCmd(a),
		newTransferCmd(a),
		newEventsCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func Execute() error {
	return newRootCmd().Execute()
}

// signalContext ends on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
