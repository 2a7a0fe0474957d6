// Package mcp exposes the course search tools over the Model Context
// Protocol so external MCP clients can query the same corpus the built-in
// model does.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"coursechat/internal/log"
	"coursechat/internal/tools"
)

// ToolExecutor runs a named tool with raw JSON-decoded arguments.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input map[string]any) (tools.Result, error)
}

// Server wraps the MCP SDK server around the tool registry.
type Server struct {
	mcpServer *mcp.Server
	executor  ToolExecutor
	logger    log.Logger
}

// Config holds MCP server configuration.
type Config struct {
	Name     string
	Version  string
	Executor ToolExecutor
	Logger   log.Logger
}

// NewServer creates an MCP server exposing the course tools.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		executor:  cfg.Executor,
		logger:    logger,
	}

	if err := s.registerSearchTool(); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", tools.SearchCourseContentName, err)
	}
	if err := s.registerOutlineTool(); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", tools.GetCourseOutlineName, err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport. This blocks until the
// transport closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting")
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerSearchTool() error {
	inputSchema, err := jsonschema.For[tools.SearchInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: tools.SearchCourseContentName,
		Description: "Search course materials with smart course name matching " +
			"and optional lesson filtering.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in tools.SearchInput) (*mcp.CallToolResult, any, error) {
		args := map[string]any{"query": in.Query}
		if in.CourseName != "" {
			args["course_name"] = in.CourseName
		}
		if in.LessonNumber != nil {
			args["lesson_number"] = *in.LessonNumber
		}
		return s.execute(ctx, tools.SearchCourseContentName, args)
	})

	return nil
}

func (s *Server) registerOutlineTool() error {
	inputSchema, err := jsonschema.For[tools.OutlineInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: tools.GetCourseOutlineName,
		Description: "Get the complete outline of a course: its title, link, " +
			"and all lesson numbers with titles.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in tools.OutlineInput) (*mcp.CallToolResult, any, error) {
		return s.execute(ctx, tools.GetCourseOutlineName, map[string]any{"course_name": in.CourseName})
	})

	return nil
}

// execute runs a tool and builds the MCP response inline, the way
// net/http handlers do. Tool errors propagate to the client; successful
// results carry the formatted content followed by a sources block.
func (s *Server) execute(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, any, error) {
	s.logger.Debug("mcp tool call", "name", name, "args", marshalArgs(args))

	result, err := s.executor.Execute(ctx, name, args)
	if err != nil {
		return nil, nil, fmt.Errorf("executing %s: %w", name, err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: renderResult(result)}},
	}, nil, nil
}

// renderResult flattens a tool result into a single text block. Source
// links are appended so MCP clients without structured source support
// still see them.
func renderResult(result tools.Result) string {
	if len(result.Sources) == 0 {
		return result.Content
	}

	var b strings.Builder
	b.WriteString(result.Content)
	b.WriteString("\n\nSources:\n")
	for _, src := range result.Sources {
		if src.Link != "" {
			fmt.Fprintf(&b, "- %s (%s)\n", src.Text, src.Link)
		} else {
			fmt.Fprintf(&b, "- %s\n", src.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// marshalArgs is a debugging aid used in trace logs.
func marshalArgs(args map[string]any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(raw)
}
