package config

import (
	"fmt"
	"regexp"

	"github.com/mvp-joe/splitter/internal/extract"
	"github.com/mvp-joe/splitter/internal/pipeline"
)

// PipelineOptions converts the extraction section to run options.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	re, err := regexp.Compile(c.Extraction.NamePattern)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	opts := pipeline.Options{
		TypesPath: c.Extraction.TypesPath,
		UtilsPath: c.Extraction.UtilsPath,
		Thresholds: extract.Thresholds{
			MinFunctionLines: c.Extraction.MinFunctionLines,
			MinVariableLines: c.Extraction.MinVariableLines,
		},
		NamePattern: re,
	}
	switch {
	case c.Extraction.Composite != "":
		opts.Selector = pipeline.ByName(c.Extraction.Composite)
	case c.Extraction.FirstBinding:
		opts.Selector = pipeline.FirstFunctionBinding{}
	}
	return opts, nil
}
