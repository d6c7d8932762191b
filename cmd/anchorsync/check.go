package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// errBrokenLinks makes check exit non-zero after printing its report.
var errBrokenLinks = errors.New("broken heading links found")

func newCheckCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "check [file...]",
		Short: "Report heading links to missing notes or headings",
		Long: `Check validates every heading link in the given documents, or in the whole
vault when no document is given. It exits with status 1 when a broken link
is found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			ws, _, err := a.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			res, err := ws.Check(cmd.Context(), args)
			if err != nil {
				return err
			}
			switch format {
			case "json":
				if err := printCheckJSON(a.stdout, res); err != nil {
					return err
				}
			default:
				printCheckText(a.stdout, res)
			}
			if len(res.Broken) > 0 {
				return errBrokenLinks
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (json or text)")
	return cmd
}
