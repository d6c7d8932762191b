package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryotapoi/anchorsync/internal/workspace"
)

func newRepairCmd(a *app) *cobra.Command {
	var (
		format   string
		minScore float64
		dryRun   bool
		link     string
		heading  string
	)
	cmd := &cobra.Command{
		Use:   "repair [file...]",
		Short: "Retarget links to missing headings at their best-ranked replacement",
		Long: `Repair retargets every link to a missing heading whose best suggestion scores
at least --min-score (default: suggest.auto_apply_score). With --link and
--heading it retargets a single link of one document instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			if (link == "") != (heading == "") {
				return fmt.Errorf("--link and --heading must be given together")
			}
			if link != "" && len(args) != 1 {
				return fmt.Errorf("--link requires exactly one file")
			}
			if minScore > 1 {
				return fmt.Errorf("invalid --min-score: %v (must be within [0,1])", minScore)
			}
			ws, _, err := a.openWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			if link != "" {
				change, err := ws.RepairLink(cmd.Context(), args[0], link, heading, dryRun)
				if err != nil {
					return err
				}
				if dryRun {
					printChanges(a.stdout, []workspace.FileChange{*change}, true)
					return nil
				}
				fmt.Fprintf(a.stdout, "repaired: %s\n", change.Path)
				return nil
			}

			if minScore < 0 {
				minScore = ws.Config.Suggest.AutoApplyScore
			}
			res, err := ws.Repair(cmd.Context(), workspace.RepairOptions{
				Paths:    args,
				MinScore: minScore,
				DryRun:   dryRun,
			})
			if err != nil {
				return err
			}
			switch format {
			case "json":
				if err := printRepairJSON(a.stdout, res); err != nil {
					return err
				}
			default:
				printRepairText(a.stdout, res)
				if dryRun {
					printChanges(a.stdout, res.Changes, true)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "text", "output format (json or text)")
	f.Float64Var(&minScore, "min-score", -1, "lowest suggestion score repaired automatically")
	f.BoolVar(&dryRun, "dry-run", false, "show what would be repaired without making changes")
	f.StringVar(&link, "link", "", "repair only this link, written exactly as in the file")
	f.StringVar(&heading, "heading", "", "heading to point --link at")
	return cmd
}
