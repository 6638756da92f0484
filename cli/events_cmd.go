package cli

import (
	"time"

	"PLedger/global/config"
	"PLedger/logger"
	"PLedger/module/transfer"
	"PLedger/service/kafka"
	"PLedger/service/natsx"
	"PLedger/tools/errs"

	"github.com/spf13/cobra"
)

func newEventsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published transfer events",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Print events from the configured nats or kafka sink until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := make(chan transfer.Event, 64)
			emit := func(ev transfer.Event) {
				select {
				case out <- ev:
				case <-ctx.Done():
				}
			}

			ec := a.cfg.Events
			errCh := make(chan error, 1)
			switch ec.Sink {
			case config.SinkNats:
				nc, err := natsx.NewNatsxClient(natsConfig(ec.Nats), logger.Log)
				if err != nil {
					return err
				}
				defer nc.Close()
				err = natsx.SubscribeEvents(nc, ec.Nats.Subject, emit,
					natsx.NatsxIdemMiddleware(natsx.NewMemIdem(10*time.Minute), 0))
				if err != nil {
					return err
				}
			case config.SinkKafka:
				go func() { errCh <- kafka.ConsumeEvents(ctx, kafkaConfig(ec.Kafka), emit) }()
			default:
				return errs.ErrArgs.WrapMsg("events tail needs events.sink nats or kafka", "sink", ec.Sink)
			}

			for {
				select {
				case ev := <-out:
					if err := printJSON(cmd, ev); err != nil {
						return err
					}
				case err := <-errCh:
					return err
				case <-ctx.Done():
					return nil
				}
			}
		},
	})
	return cmd
}
