// Package mcp implements the Model Context Protocol server for hallplan.
//
// The MCP server exposes read-only views over the run registry plus the
// scoring function, so MCP-compatible AI agents can inspect optimization
// results without going through the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hallplan/hallplan/internal/model"
	"github.com/hallplan/hallplan/internal/run"
	"github.com/hallplan/hallplan/internal/score"
)

// Server wraps the MCP server with hallplan's run registry.
type Server struct {
	mcpServer *mcpserver.MCPServer
	registry  *run.Registry
	scoring   score.Config
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(registry *run.Registry, scoring score.Config, version string, logger *slog.Logger) *Server {
	s := &Server{
		registry: registry,
		scoring:  scoring,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"hallplan",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// hallplan://runs lists all recorded runs with derived views.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"hallplan://runs",
			"Recorded Runs",
			mcplib.WithResourceDescription("All recorded optimization runs with remaining companies"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRunsResource,
	)
}

func (s *Server) registerTools() {
	// hallplan_runs lists recorded runs.
	s.mcpServer.AddTool(
		mcplib.NewTool("hallplan_runs",
			mcplib.WithDescription("List recorded optimization runs with their scores and placement counts"),
		),
		s.handleRuns,
	)

	// hallplan_remaining lists companies not yet placed.
	s.mcpServer.AddTool(
		mcplib.NewTool("hallplan_remaining",
			mcplib.WithDescription("List companies from the requested pool that no run has placed yet"),
		),
		s.handleRemaining,
	)

	// hallplan_comparison returns the best two runs by score.
	s.mcpServer.AddTool(
		mcplib.NewTool("hallplan_comparison",
			mcplib.WithDescription("Return the two best runs by placement quality score"),
		),
		s.handleComparison,
	)

	// hallplan_score computes a quality score from raw metrics.
	s.mcpServer.AddTool(
		mcplib.NewTool("hallplan_score",
			mcplib.WithDescription("Compute the placement quality score for a given minimum distance and typical spacing"),
			mcplib.WithNumber("min_distance", mcplib.Description("Smallest distance between any two placed booths"), mcplib.Required()),
			mcplib.WithNumber("typical_spacing", mcplib.Description("Typical booth spacing in the layout; omit to use the fallback baseline")),
		),
		s.handleScore,
	)
}

func (s *Server) handleRunsResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(model.RunsResponse{
		Runs:              s.registry.Runs(),
		Remaining:         s.registry.Remaining(),
		HasComparisonData: len(s.registry.ComparisonRuns()) > 0,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal runs: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "hallplan://runs",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleRuns(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	resultData, _ := json.MarshalIndent(map[string]any{
		"runs":  s.registry.Runs(),
		"total": s.registry.Len(),
	}, "", "  ")
	return textResult(string(resultData)), nil
}

func (s *Server) handleRemaining(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	remaining := s.registry.Remaining()
	resultData, _ := json.MarshalIndent(map[string]any{
		"remaining": remaining,
		"total":     len(remaining),
	}, "", "  ")
	return textResult(string(resultData)), nil
}

func (s *Server) handleComparison(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	pair, ok := s.registry.ComparisonPair()
	if !ok {
		return errorResult("not enough runs recorded for a comparison"), nil
	}
	resultData, _ := json.MarshalIndent(map[string]any{"pair": pair}, "", "  ")
	return textResult(string(resultData)), nil
}

func (s *Server) handleScore(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	minDistance := request.GetFloat("min_distance", -1)
	if minDistance < 0 {
		return errorResult("min_distance is required and must be non-negative"), nil
	}

	var spacing *float64
	if v := request.GetFloat("typical_spacing", 0); v > 0 {
		spacing = &v
	}

	resultData, _ := json.Marshal(map[string]any{
		"score": s.scoring.Score(minDistance, spacing),
	})
	return textResult(string(resultData)), nil
}

func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
