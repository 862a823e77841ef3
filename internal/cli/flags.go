package cli

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mvp-joe/splitter/internal/pipeline"
	"github.com/spf13/cobra"
)

// selectionFlags override the extraction section of the config.
type selectionFlags struct {
	composite        string
	firstBinding     bool
	namePattern      string
	minFunctionLines int
	minVariableLines int
	typesPath        string
	utilsPath        string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.composite, "composite", "", "Function or component whose nested helpers are extracted")
	cmd.Flags().BoolVar(&f.firstBinding, "first-binding", false, "Use the first function-valued const as the composite")
	cmd.Flags().StringVar(&f.namePattern, "pattern", "", "Regular expression selecting nested helpers")
	cmd.Flags().IntVar(&f.minFunctionLines, "min-function-lines", -1, "Functions must be longer than this to move")
	cmd.Flags().IntVar(&f.minVariableLines, "min-variable-lines", -1, "Variables must be longer than this to move")
	cmd.Flags().StringVar(&f.typesPath, "types", "", "Types module path (single origin only)")
	cmd.Flags().StringVar(&f.utilsPath, "utils", "", "Utilities module path (single origin only)")
	cmd.MarkFlagsMutuallyExclusive("composite", "first-binding")
}

// apply layers the flags that were set over opts.
func (f *selectionFlags) apply(opts pipeline.Options, origins int) (pipeline.Options, error) {
	if (f.typesPath != "" || f.utilsPath != "") && origins > 1 {
		return opts, errors.New("--types and --utils need exactly one origin")
	}
	if f.typesPath != "" {
		opts.TypesPath = f.typesPath
	}
	if f.utilsPath != "" {
		opts.UtilsPath = f.utilsPath
	}
	if f.minFunctionLines >= 0 {
		opts.Thresholds.MinFunctionLines = f.minFunctionLines
	}
	if f.minVariableLines >= 0 {
		opts.Thresholds.MinVariableLines = f.minVariableLines
	}
	if f.namePattern != "" {
		re, err := regexp.Compile(f.namePattern)
		if err != nil {
			return opts, fmt.Errorf("invalid --pattern: %w", err)
		}
		opts.NamePattern = re
	}
	switch {
	case f.composite != "":
		opts.Selector = pipeline.ByName(f.composite)
	case f.firstBinding:
		opts.Selector = pipeline.FirstFunctionBinding{}
	}
	return opts, nil
}
