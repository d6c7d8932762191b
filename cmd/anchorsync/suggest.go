package main

import (
	"github.com/spf13/cobra"
)

func newSuggestCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "suggest [file...]",
		Short: "Rank replacement headings for links to missing headings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			ws, _, err := a.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			docs, err := ws.Suggest(cmd.Context(), args)
			if err != nil {
				return err
			}
			if format == "json" {
				return printSuggestJSON(a.stdout, docs)
			}
			printSuggestText(a.stdout, docs)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (json or text)")
	return cmd
}
