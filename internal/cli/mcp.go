package cli

import (
	"fmt"
	"os"

	"github.com/mvp-joe/splitter/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server exposing plan, split and reconcile tools",
	Long: `Start the Model Context Protocol (MCP) server so coding assistants can
split modules of this project.

The MCP server:
- Exposes plan_split, split_module and reconcile_types
- Runs one tool call at a time
- Communicates via stdio (standard MCP transport)

Example:
  splitter mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, err := openProject(rootDir)
	if err != nil {
		return err
	}
	defer p.Close()

	defaults, err := p.cfg.PipelineOptions()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Splitter MCP Server\n")
	fmt.Fprintf(os.Stderr, "Project Root: %s\n\n", p.root)

	server := mcp.NewMCPServer(p.pipeline, defaults, versionString())
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
