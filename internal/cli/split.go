package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mvp-joe/splitter/internal/report"
	"github.com/spf13/cobra"
)

var (
	splitFlags selectionFlags
	quietFlag  bool
)

// splitCmd represents the split command
var splitCmd = &cobra.Command{
	Use:   "split <file|glob>...",
	Short: "Split modules into types, utilities and what remains",
	Long: `Split runs the full pipeline on every module named by the arguments:
top-level extraction, nested extraction from the composite, type
reconciliation and external formatting.

Arguments are files (relative to the working directory) or glob patterns
(relative to the project root). Globs skip discovery.ignore, which by default
excludes node_modules, build output and files created by earlier splits.

Examples:
  # Split one component, extracting validate* and get* helpers from UserForm
  splitter split src/UserForm.tsx --composite UserForm --pattern '^(validate|get)'

  # Split every module under src
  splitter split 'src/**/*.ts' 'src/**/*.tsx'
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSplit,
}

func init() {
	rootCmd.AddCommand(splitCmd)
	splitFlags.register(splitCmd)
	splitCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and per-item output")
}

func runSplit(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, err := openProject(rootDir)
	if err != nil {
		return err
	}
	defer p.Close()

	_, err = splitAll(ctx, p, args, &splitFlags, cmd.OutOrStdout(), quietFlag)
	return err
}

// splitAll runs the pipeline on every module args resolve to. Per-module
// problems are reported and counted; a persistence failure stops the batch
// and is returned.
func splitAll(ctx context.Context, p *project, args []string, flags *selectionFlags, out io.Writer, quiet bool) (splitStats, error) {
	var stats splitStats

	origins, err := p.resolve(args)
	if err != nil {
		return stats, err
	}
	if len(origins) == 0 {
		return stats, errors.New("no modules match the arguments")
	}

	opts, err := p.cfg.PipelineOptions()
	if err != nil {
		return stats, err
	}
	opts, err = flags.apply(opts, len(origins))
	if err != nil {
		return stats, err
	}

	progress := NewCLIProgressReporter(out, quiet)
	progress.OnDiscoveryComplete(len(origins))
	progress.OnSplitStart(len(origins))

	var reports []*report.Report
	var fatal error
	for _, origin := range origins {
		if err := ctx.Err(); err != nil {
			fatal = err
			break
		}

		rep, err := p.pipeline.Run(ctx, origin, opts)
		progress.OnFileDone(origin)
		stats.Files++
		if rep != nil {
			reports = append(reports, rep)
			stats.Extracted += rep.Extracted()
			stats.Annotations += rep.Annotations()
			stats.Skipped += rep.SkippedCount()
			stats.Warnings += len(rep.Warnings)
		}
		if err != nil {
			stats.Failed++
			fatal = fmt.Errorf("split %s: %w", origin, err)
			break
		}
	}

	if !quiet {
		for _, rep := range reports {
			fmt.Fprintf(out, "\n%s (run %s)\n", rep.Origin, rep.RunID)
			rep.Write(out)
		}
	}
	progress.OnComplete(stats)
	return stats, fatal
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted! Cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
