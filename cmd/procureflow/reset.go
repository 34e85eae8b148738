package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func resetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the persisted workflow snapshot",
		Long:  `Empty the configured snapshot slot so the next request starts from an empty store.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := a.openService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.closeService(svc)

			if err := svc.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("reset snapshot: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "snapshot cleared")
			return err
		},
	}
}
