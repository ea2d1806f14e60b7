package main

import (
	"github.com/spf13/cobra"

	"github.com/torosent/perfsuite/internal/config"
	"github.com/torosent/perfsuite/internal/output"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored run records",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List run records for a client and test, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			names, err := store.List(ctx, a.cfg.Client, a.cfg.TestName)
			if err != nil {
				return err
			}
			output.PrintHistory(a.stdout, a.cfg.Client, a.cfg.TestName, names)
			return nil
		},
	}
	config.RegisterHistoryFlags(list.Flags())
	cmd.AddCommand(list)
	return cmd
}
