// Package mcp exposes the splitter over the Model Context Protocol on stdio.
package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/mvp-joe/splitter/internal/pipeline"
	"github.com/mvp-joe/splitter/internal/report"
)

// Runner is the part of pipeline.Pipeline the tools call.
type Runner interface {
	Plan(origin string, opts pipeline.Options) (*pipeline.Plan, error)
	Run(ctx context.Context, origin string, opts pipeline.Options) (*report.Report, error)
	Reconcile(ctx context.Context, paths []string) (*report.Report, error)
}

// serialRunner lets one call at a time touch the files of the project.
type serialRunner struct {
	mu    sync.Mutex
	inner Runner
}

func (s *serialRunner) Plan(origin string, opts pipeline.Options) (*pipeline.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Plan(origin, opts)
}

func (s *serialRunner) Run(ctx context.Context, origin string, opts pipeline.Options) (*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Run(ctx, origin, opts)
}

func (s *serialRunner) Reconcile(ctx context.Context, paths []string) (*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Reconcile(ctx, paths)
}

// MCPServer manages the MCP server lifecycle.
type MCPServer struct {
	mcp *server.MCPServer
}

// NewMCPServer creates a server whose tools run through runner. defaults are
// the project's configured options; tool arguments override them per call.
func NewMCPServer(runner Runner, defaults pipeline.Options, version string) *MCPServer {
	s := server.NewMCPServer(
		"splitter-mcp",
		version,
		server.WithToolCapabilities(true),
	)

	serial := &serialRunner{inner: runner}
	AddPlanTool(s, serial, defaults)
	AddSplitTool(s, serial, defaults)
	AddReconcileTool(s, serial)

	return &MCPServer{mcp: s}
}

// Serve serves stdio until the client disconnects, a signal arrives or ctx
// is cancelled.
func (s *MCPServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting MCP server on stdio...")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-sigCh:
		log.Printf("Received shutdown signal, stopping gracefully...")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
