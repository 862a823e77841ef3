package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	mcputils "github.com/mvp-joe/splitter/internal/mcp-utils"
	"github.com/mvp-joe/splitter/internal/pipeline"
	"github.com/mvp-joe/splitter/internal/report"
)

// ErrInvalidPath rejects absolute paths and paths leaving the project root.
var ErrInvalidPath = errors.New("invalid path")

// splitRequest holds the arguments of plan_split and split_module.
type splitRequest struct {
	Origin           string `json:"origin"`
	Composite        string `json:"composite,omitempty"`
	FirstBinding     bool   `json:"first_binding,omitempty"`
	NamePattern      string `json:"name_pattern,omitempty"`
	MinFunctionLines int    `json:"min_function_lines,omitempty"`
	MinVariableLines int    `json:"min_variable_lines,omitempty"`
	TypesPath        string `json:"types_path,omitempty"`
	UtilsPath        string `json:"utils_path,omitempty"`
}

type reconcileRequest struct {
	Paths []string `json:"paths"`
}

// options layers the request over defaults.
func (r *splitRequest) options(defaults pipeline.Options) (pipeline.Options, error) {
	opts := defaults
	if err := checkPath(r.Origin); err != nil {
		return opts, err
	}
	for _, p := range []string{r.TypesPath, r.UtilsPath} {
		if p == "" {
			continue
		}
		if err := checkPath(p); err != nil {
			return opts, err
		}
	}
	if r.TypesPath != "" {
		opts.TypesPath = r.TypesPath
	}
	if r.UtilsPath != "" {
		opts.UtilsPath = r.UtilsPath
	}
	if r.MinFunctionLines > 0 {
		opts.Thresholds.MinFunctionLines = r.MinFunctionLines
	}
	if r.MinVariableLines > 0 {
		opts.Thresholds.MinVariableLines = r.MinVariableLines
	}
	if r.NamePattern != "" {
		re, err := regexp.Compile(r.NamePattern)
		if err != nil {
			return opts, fmt.Errorf("invalid name_pattern: %w", err)
		}
		opts.NamePattern = re
	}
	switch {
	case r.Composite != "" && r.FirstBinding:
		return opts, errors.New("invalid arguments: composite and first_binding are exclusive")
	case r.Composite != "":
		opts.Selector = pipeline.ByName(r.Composite)
	case r.FirstBinding:
		opts.Selector = pipeline.FirstFunctionBinding{}
	}
	return opts, nil
}

// checkPath accepts project-relative paths only.
func checkPath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if !filepath.IsLocal(p) {
		return fmt.Errorf("%w: %s is outside project root", ErrInvalidPath, p)
	}
	return nil
}

func withSplitArguments(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts,
		mcp.WithString("origin",
			mcp.Required(),
			mcp.Description("Project-relative path of the module to split (e.g., 'src/UserForm.tsx')")),
		mcp.WithString("composite",
			mcp.Description("Name of the component or function whose nested helpers are extracted")),
		mcp.WithBoolean("first_binding",
			mcp.Description("Use the first function-valued const as the composite instead of naming one")),
		mcp.WithString("name_pattern",
			mcp.Description("Regular expression selecting nested helpers (default: ^(validate|get|format|handle))")),
		mcp.WithNumber("min_function_lines",
			mcp.Description("Functions must be longer than this to move (default: 20)")),
		mcp.WithNumber("min_variable_lines",
			mcp.Description("Variables must be longer than this to move (default: 10)")),
		mcp.WithString("types_path",
			mcp.Description("Override for the types module path")),
		mcp.WithString("utils_path",
			mcp.Description("Override for the utilities module path")),
	)
}

// AddPlanTool registers plan_split, a read-only preview of a split.
func AddPlanTool(s *server.MCPServer, runner Runner, defaults pipeline.Options) {
	tool := mcp.NewTool("plan_split", withSplitArguments(
		mcp.WithDescription("Preview which declarations of a TypeScript module would move to its types and utilities modules. Does not modify files."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)...)
	s.AddTool(tool, createPlanHandler(runner, defaults))
}

// AddSplitTool registers split_module, which runs the full pipeline.
func AddSplitTool(s *server.MCPServer, runner Runner, defaults pipeline.Options) {
	tool := mcp.NewTool("split_module", withSplitArguments(
		mcp.WithDescription("Move types and utilities out of a TypeScript module, rewrite imports, add inferred type annotations and format the touched files. Returns the per-item report."),
		mcp.WithDestructiveHintAnnotation(true),
	)...)
	s.AddTool(tool, createSplitHandler(runner, defaults))
}

// AddReconcileTool registers reconcile_types, which only writes annotations.
func AddReconcileTool(s *server.MCPServer, runner Runner) {
	tool := mcp.NewTool(
		"reconcile_types",
		mcp.WithDescription("Add inferred return, parameter and literal type annotations to TypeScript modules without moving code."),
		mcp.WithArray("paths",
			mcp.Required(),
			mcp.Description("Project-relative module paths (e.g., ['src/a.ts', 'src/a.utils.ts'])")),
		mcp.WithDestructiveHintAnnotation(true),
	)
	s.AddTool(tool, createReconcileHandler(runner))
}

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func createPlanHandler(runner Runner, defaults pipeline.Options) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts, origin, errResult := bindSplit(request, defaults)
		if errResult != nil {
			return errResult, nil
		}
		plan, err := runner.Plan(origin, opts)
		if err != nil {
			return toolError(err)
		}
		return marshalToolResponse(plan)
	}
}

func createSplitHandler(runner Runner, defaults pipeline.Options) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts, origin, errResult := bindSplit(request, defaults)
		if errResult != nil {
			return errResult, nil
		}
		rep, err := runner.Run(ctx, origin, opts)
		if err != nil {
			return toolError(err)
		}
		return marshalToolResponse(newRunResponse(rep))
	}
}

func createReconcileHandler(runner Runner) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, ok := request.GetRawArguments().(map[string]any); !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}
		var req reconcileRequest
		if err := mcputils.CoerceBindArguments(request, &req); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		if len(req.Paths) == 0 {
			return mcp.NewToolResultError("paths parameter is required"), nil
		}
		for _, p := range req.Paths {
			if err := checkPath(p); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}

		rep, err := runner.Reconcile(ctx, req.Paths)
		if err != nil {
			return toolError(err)
		}
		return marshalToolResponse(newRunResponse(rep))
	}
}

func bindSplit(request mcp.CallToolRequest, defaults pipeline.Options) (pipeline.Options, string, *mcp.CallToolResult) {
	if _, ok := request.GetRawArguments().(map[string]any); !ok {
		return defaults, "", mcp.NewToolResultError("invalid arguments format")
	}
	var req splitRequest
	if err := mcputils.CoerceBindArguments(request, &req); err != nil {
		return defaults, "", mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err))
	}
	if req.Origin == "" {
		return defaults, "", mcp.NewToolResultError("origin parameter is required")
	}
	opts, err := req.options(defaults)
	if err != nil {
		return defaults, "", mcp.NewToolResultError(err.Error())
	}
	return opts, req.Origin, nil
}

// toolError shows structural problems to the caller and returns everything
// else, persistence failures included, as a system error.
func toolError(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, pipeline.ErrPersist) {
		return nil, err
	}
	return mcp.NewToolResultError(err.Error()), nil
}

// runResponse is the JSON form of a report.
type runResponse struct {
	RunID       string         `json:"run_id"`
	Origin      string         `json:"origin"`
	States      []string       `json:"states"`
	Extracted   int            `json:"extracted"`
	Annotations int            `json:"annotations"`
	Skipped     int            `json:"skipped"`
	Files       []fileResponse `json:"files"`
	Items       []itemResponse `json:"items"`
	Warnings    []string       `json:"warnings,omitempty"`
}

type fileResponse struct {
	Path        string `json:"path"`
	Extracted   int    `json:"extracted"`
	Annotations int    `json:"annotations"`
	Skipped     int    `json:"skipped"`
}

type itemResponse struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func newRunResponse(rep *report.Report) runResponse {
	resp := runResponse{
		RunID:       rep.RunID,
		Origin:      rep.Origin,
		States:      rep.States,
		Extracted:   rep.Extracted(),
		Annotations: rep.Annotations(),
		Skipped:     rep.SkippedCount(),
		Files:       []fileResponse{},
		Items:       []itemResponse{},
		Warnings:    rep.Warnings,
	}
	for _, f := range rep.Files() {
		resp.Files = append(resp.Files, fileResponse(f))
	}
	for _, it := range rep.Items {
		resp.Items = append(resp.Items, itemResponse{
			Path:   it.Path,
			Name:   it.Name,
			Kind:   string(it.Kind),
			Status: string(it.Status),
			Detail: it.Detail,
		})
	}
	return resp
}
