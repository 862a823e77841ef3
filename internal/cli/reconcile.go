package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile <file|glob>...",
	Short: "Add inferred type annotations without moving code",
	Long: `Reconcile writes missing return, parameter and literal annotations to the
given modules using the configured checker, then formats them. Modules that
import each other are annotated dependencies first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		p, err := openProject(rootDir)
		if err != nil {
			return err
		}
		defer p.Close()

		paths, err := p.resolve(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no modules match the arguments")
		}

		rep, err := p.pipeline.Reconcile(ctx, paths)
		if rep != nil && !quietFlag {
			rep.Write(cmd.OutOrStdout())
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Only print errors")
}
