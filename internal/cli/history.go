package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mvp-joe/splitter/internal/storage"
	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recent runs, or the items of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(rootDir)
		if err != nil {
			return err
		}
		defer p.Close()

		if p.journal == nil {
			return errors.New("the run journal is disabled (journal.enabled: false)")
		}
		if len(args) == 1 {
			return printRunItems(p.journal, args[0], cmd.OutOrStdout())
		}
		return printRecentRuns(p.journal, historyLimit, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
}

func printRecentRuns(j *storage.Journal, limit int, out io.Writer) error {
	runs, err := j.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}
	for _, r := range runs {
		last := ""
		if len(r.States) > 0 {
			last = r.States[len(r.States)-1]
		}
		fmt.Fprintf(out, "%s  %s  %-40s %3d extracted %3d annotations %3d skipped  [%s]\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Origin,
			r.Extracted, r.Annotations, r.Skipped, last)
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "    ! %s\n", w)
		}
	}
	return nil
}

func printRunItems(j *storage.Journal, runID string, out io.Writer) error {
	items, err := j.RunItems(runID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no items recorded for run %s", runID)
	}
	for _, it := range items {
		fmt.Fprintf(out, "%-8s %-13s %s (%s)", it.Status, it.Kind, it.Name, it.Path)
		if detail := strings.TrimSpace(it.Detail); detail != "" {
			fmt.Fprintf(out, ": %s", detail)
		}
		fmt.Fprintln(out)
	}
	return nil
}
