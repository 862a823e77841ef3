package cli

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/schollz/progressbar/v3"
)

// splitStats totals a batch of runs.
type splitStats struct {
	Files       int
	Extracted   int
	Annotations int
	Skipped     int
	Warnings    int
	Failed      int
}

// CLIProgressReporter shows batch progress with a progress bar.
type CLIProgressReporter struct {
	quiet     bool
	out       io.Writer
	fileBar   *progressbar.ProgressBar
	startTime time.Time
}

// NewCLIProgressReporter creates a new CLI progress reporter writing to out.
func NewCLIProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet:     quiet,
		out:       out,
		startTime: time.Now(),
	}
}

func (c *CLIProgressReporter) OnDiscoveryComplete(files int) {
	if c.quiet {
		return
	}
	log.Printf("Splitting %d modules\n", files)
}

func (c *CLIProgressReporter) OnSplitStart(totalFiles int) {
	if c.quiet || totalFiles < 2 {
		return
	}
	c.fileBar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Splitting modules"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnFileDone(path string) {
	if c.fileBar != nil {
		c.fileBar.Describe(path)
		c.fileBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnComplete(stats splitStats) {
	if c.fileBar != nil {
		c.fileBar.Finish()
	}
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "✓ Split complete: %d modules in %.1fs\n", stats.Files, time.Since(c.startTime).Seconds())
	fmt.Fprintf(c.out, "  Extracted:   %d\n", stats.Extracted)
	fmt.Fprintf(c.out, "  Annotations: %d\n", stats.Annotations)
	fmt.Fprintf(c.out, "  Skipped:     %d\n", stats.Skipped)
	if stats.Warnings > 0 {
		fmt.Fprintf(c.out, "  Warnings:    %d\n", stats.Warnings)
	}
	if stats.Failed > 0 {
		fmt.Fprintf(c.out, "  Failed:      %d\n", stats.Failed)
	}
}
