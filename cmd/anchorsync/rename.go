package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRenameCmd(a *app) *cobra.Command {
	var (
		format  string
		oldName string
		newName string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "rename <file> --old <heading> --new <heading>",
		Short: "Rename a heading and update every link to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			if oldName == "" {
				return fmt.Errorf("--old is required")
			}
			if strings.TrimSpace(newName) == "" {
				return fmt.Errorf("--new is required")
			}
			ws, _, err := a.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			res, err := ws.RenameHeading(cmd.Context(), args[0], oldName, strings.TrimSpace(newName), dryRun)
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return printRenameJSON(a.stdout, res, dryRun)
			default:
				printRenameText(a.stdout, res, dryRun)
				if dryRun {
					printChanges(a.stdout, res.Changes, true)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "text", "output format (json or text)")
	f.StringVar(&oldName, "old", "", "current heading text")
	f.StringVar(&newName, "new", "", "new heading text")
	f.BoolVar(&dryRun, "dry-run", false, "show what would change without writing")
	return cmd
}
