package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryotapoi/anchorsync/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var debounce int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rewrite links as headings are renamed in saved documents",
		Long: `Watch monitors the vault and treats every saved markdown document as an
edit: renamed headings are detected against the previous save and every link
to them is rewritten. Broken links are logged. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ws, logger, err := a.openWorkspace(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			w := watch.New(ws.FS, ws.Resolver, ws.Engine, watch.Config{
				Debounce: msDuration(debounce),
				Index:    ws.Index,
				Logger:   logger,
			})
			return w.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&debounce, "debounce", int(watch.DefaultDebounce.Milliseconds()), "milliseconds to wait for a document to settle after a write")
	return cmd
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
