package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"procureflow/internal/adapters/workflow"
	"procureflow/internal/core"
	"procureflow/pkg/domain"
)

func requestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "request METHOD PATH [PAYLOAD]",
		Short: "Dispatch one workflow request against the configured storage",
		Long: `Dispatch one workflow request and print the JSON response.

PATH is relative to /api, e.g. "/requirements/1/scout". PAYLOAD is a JSON
object; pass "-" to read it from standard input.`,
		Example: `  procureflow request POST /requirements '{"title":"Office chairs","quantity":50}'
  procureflow request GET /requirements/1`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			if len(args) == 3 {
				payload = []byte(args[2])
				if args[2] == "-" {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return fmt.Errorf("read payload: %w", err)
					}
					payload = data
				}
			}

			ctx := cmd.Context()
			svc, _, err := a.openService(ctx, false)
			if err != nil {
				return err
			}
			defer a.closeService(svc)

			ctx = core.WithRequestID(ctx, uuid.NewString())
			resp, err := workflow.NewRouter(svc, a.logger).Do(ctx, args[0], args[1], payload)
			if err != nil {
				return fmt.Errorf("%d: %w", domain.StatusCode(err), err)
			}
			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

func routesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the workflow routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			router := workflow.NewRouter(core.NewInMemoryService(nil), a.logger)
			for _, r := range router.Routes() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), r); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
