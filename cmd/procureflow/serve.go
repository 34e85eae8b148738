package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"procureflow/internal/adapters/workflow"
	"procureflow/internal/core"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var extra []core.Option
			traceFile, _ := cmd.Flags().GetString("trace-file")
			if traceFile != "" {
				w, closeTrace, err := openTraceWriter(traceFile, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer closeTrace()
				extra = append(extra, core.WithTracer(core.NewJSONTracer(w, 0)))
			}

			svc, metricsHandler, err := a.openService(ctx, true, extra...)
			if err != nil {
				return err
			}
			defer a.closeService(svc)

			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           newMux(svc, metricsHandler, a.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return listenAndServe(ctx, srv, a.logger)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("trace-file", "", `append one JSON line per operation span to this file ("-" for stderr)`)
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			a.cfg.Server.Addr = addr
		}
		return nil
	}
	return cmd
}

func openTraceWriter(path string, stderr io.Writer) (io.Writer, func(), error) {
	if path == "-" {
		return stderr, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func newMux(svc *core.Service, metricsHandler http.Handler, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(workflow.APIPrefix+"/", workflow.NewHandler(workflow.NewRouter(svc, logger)))
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

func listenAndServe(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down", "timeout", shutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
