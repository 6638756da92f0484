package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"PLedger/logger"
	"PLedger/tools/errs"
	"PLedger/tools/safe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRegistry returns a registry with the Go runtime collectors and cs.
func NewRegistry(cs ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(cs...)
	return reg
}

// Serve exposes reg on /metrics at address until ctx ends.
func Serve(ctx context.Context, address string, reg *prometheus.Registry) error {
	log := logger.Named("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: address, Handler: mux}

	errCh := make(chan error, 1)
	safe.Go("metrics-http", func() {
		log.Info("listening", zap.String("addr", address))
		errCh <- srv.ListenAndServe()
	}, func(err error) { errCh <- err })

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.WrapMsg(err, "metrics listen", "addr", address)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
