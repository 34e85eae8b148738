package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"procureflow/internal/config"
	"procureflow/internal/core"
)

// openService opens the configured snapshot slot and builds the workflow
// service around it. The returned handler serves metrics for the selected
// backend and is nil when metrics are disabled or not requested.
func (a *app) openService(ctx context.Context, withMetrics bool, extra ...core.Option) (*core.Service, http.Handler, error) {
	slot, err := core.OpenSnapshotSlot(ctx, a.cfg.StorageConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	opts := []core.Option{core.WithLogger(a.logger)}
	var metricsHandler http.Handler
	if withMetrics {
		switch a.cfg.Metrics.Backend {
		case config.MetricsPrometheus:
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			rec, err := core.NewPrometheusMetricsRecorder(reg)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, core.WithMetricsRecorder(rec))
			metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		case config.MetricsExpvar:
			opts = append(opts, core.WithMetricsRecorder(core.NewExpvarMetricsRecorder("")))
			metricsHandler = expvar.Handler()
		}
	}

	svc := core.NewService(slot, nil, append(opts, extra...)...)
	a.logger.Debug("workflow service ready", "storage", a.cfg.Storage.Driver, "metrics", a.cfg.Metrics.Backend)
	return svc, metricsHandler, nil
}

func (a *app) closeService(svc *core.Service) {
	if err := svc.Close(); err != nil {
		a.logger.Warn("close storage", "error", err)
	}
}
