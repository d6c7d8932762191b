package main

import (
	"github.com/spf13/cobra"

	"github.com/ryotapoi/anchorsync/internal/index"
	"github.com/ryotapoi/anchorsync/internal/vault"
)

func newIndexCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the link index used by the backlinks scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			logger, err := a.logger()
			if err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fs := vault.NewFS(a.vaultPath(), cfg.Exclude.Paths)
			resolver, err := vault.LoadResolver(ctx, fs)
			if err != nil {
				return err
			}
			if err := index.Build(ctx, fs.Root(), fs, resolver); err != nil {
				return err
			}
			logger.Info("index built", "path", index.Path(fs.Root()))

			ix, err := index.Open(fs.Root())
			if err != nil {
				return err
			}
			defer ix.Close()
			st, err := ix.Stats(ctx)
			if err != nil {
				return err
			}
			if format == "json" {
				return printStatsJSON(a.stdout, st)
			}
			printStatsText(a.stdout, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (json or text)")
	return cmd
}
