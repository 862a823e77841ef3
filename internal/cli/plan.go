package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	planFlags selectionFlags
	planJSON  bool
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Show what split would move without changing any file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openProject(rootDir)
		if err != nil {
			return err
		}
		defer p.Close()
		return printPlan(p, args[0], &planFlags, planJSON, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planFlags.register(planCmd)
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the plan as JSON")
}

func printPlan(p *project, arg string, flags *selectionFlags, asJSON bool, out io.Writer) error {
	origin, err := p.rel(arg)
	if err != nil {
		return err
	}
	opts, err := p.cfg.PipelineOptions()
	if err != nil {
		return err
	}
	opts, err = flags.apply(opts, 1)
	if err != nil {
		return err
	}

	plan, err := p.pipeline.Plan(origin, opts)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}
	fmt.Fprintln(out, plan.String())
	return nil
}
