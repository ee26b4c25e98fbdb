// Package mcp exposes the usage view and the snippet catalog to assistants
// over the Model Context Protocol.
package mcp

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/charmbracelet/log"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/snipdex/internal/logging"
	"github.com/standardbeagle/snipdex/internal/version"
	"github.com/standardbeagle/snipdex/internal/workspace"
)

// ToolHandler is the signature of every registered tool.
type ToolHandler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Server serves one workspace over MCP.
type Server struct {
	ws       *workspace.Workspace
	server   *mcp.Server
	logger   *log.Logger
	handlers map[string]ToolHandler
}

// NewServer registers the snipdex tools for ws. The workspace is started and
// closed by the caller.
func NewServer(ws *workspace.Workspace) *Server {
	s := &Server{
		ws:       ws,
		logger:   logging.For("mcp"),
		handlers: make(map[string]ToolHandler),
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "snipdex-mcp-server",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

func (s *Server) addTool(tool *mcp.Tool, handler ToolHandler) {
	name := tool.Name
	wrapped := func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.recoverFromPanic(name, func() (*mcp.CallToolResult, error) {
			return handler(ctx, req)
		})
	}
	s.handlers[name] = wrapped
	s.server.AddTool(tool, wrapped)
}

func objectSchema(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func (s *Server) registerTools() {
	s.addTool(&mcp.Tool{
		Name:        "usage_view",
		Description: "Show how often each catalog snippet is used in the project, grouped by module and ordered by use count. Unused snippets are omitted.",
		InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{
			"format":       {Type: "string", Description: "Output format: text (default), compact or json", Enum: []any{"text", "compact", "json"}},
			"max_entries":  {Type: "integer", Description: "Entries shown per module in text output (0 = all)"},
			"descriptions": {Type: "boolean", Description: "Append snippet descriptions in text output"},
		}),
	}, s.handleUsageView)

	s.addTool(&mcp.Tool{
		Name:        "list_snippets",
		Description: "List catalog snippets with their module and description. Custom entries shadow base entries with the same key.",
		InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{
			"module": {Type: "string", Description: "Only list snippets in this module"},
			"limit":  {Type: "integer", Description: "Maximum entries to return"},
		}),
	}, s.handleListSnippets)

	s.addTool(&mcp.Tool{
		Name:        "search_snippets",
		Description: "Rank catalog snippets against a query: key matches, typo-tolerant key similarity, then stemmed description and module terms.",
		InputSchema: objectSchema([]string{"query"}, map[string]*jsonschema.Schema{
			"query": {Type: "string", Description: "Search text"},
			"limit": {Type: "integer", Description: "Maximum results"},
		}),
	}, s.handleSearchSnippets)

	s.addTool(&mcp.Tool{
		Name:        "find_usages",
		Description: "List every whole-word occurrence of a snippet key in the project as path, line and column.",
		InputSchema: objectSchema([]string{"key"}, map[string]*jsonschema.Schema{
			"key":         {Type: "string", Description: "Snippet key"},
			"max_results": {Type: "integer", Description: "Maximum locations to return"},
		}),
	}, s.handleFindUsages)

	s.addTool(&mcp.Tool{
		Name:        "put_snippet",
		Description: "Create or replace a snippet in the custom layer. The custom document is saved immediately.",
		InputSchema: objectSchema([]string{"key"}, map[string]*jsonschema.Schema{
			"key":         {Type: "string", Description: "Snippet key, the identifier matched in source files"},
			"module":      {Type: "string", Description: "Module used to group usage"},
			"description": {Type: "string", Description: "What the snippet does"},
			"params_doc":  {Type: "string", Description: "Parameter notes"},
			"return_doc":  {Type: "string", Description: "Return value notes"},
			"body":        {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Example body, one line per item"},
		}),
	}, s.handlePutSnippet)

	s.addTool(&mcp.Tool{
		Name:        "delete_snippet",
		Description: "Delete a snippet from the custom layer. A base entry with the same key becomes visible again.",
		InputSchema: objectSchema([]string{"key"}, map[string]*jsonschema.Schema{
			"key": {Type: "string", Description: "Snippet key"},
		}),
	}, s.handleDeleteSnippet)

	s.addTool(&mcp.Tool{
		Name:        "refresh",
		Description: "Wait until the usage counts cover the current catalog and return the re-derived view.",
		InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{
			"format": {Type: "string", Description: "Output format: text (default), compact or json", Enum: []any{"text", "compact", "json"}},
		}),
	}, s.handleRefresh)

	s.addTool(&mcp.Tool{
		Name:        "run_command",
		Description: "Run a view command: show_snippet, find_usages, copy_snippet (all need key) or refresh_view.",
		InputSchema: objectSchema([]string{"command"}, map[string]*jsonschema.Schema{
			"command": {Type: "string", Enum: []any{"show_snippet", "find_usages", "copy_snippet", "refresh_view"}},
			"key":     {Type: "string", Description: "Snippet key"},
		}),
	}, s.handleRunCommand)

	s.addTool(&mcp.Tool{
		Name:        "status",
		Description: "Engine status: scan generation, file and catalog counts, watcher activity, server version.",
		InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{}),
	}, s.handleStatus)
}

// recoverFromPanic turns handler panics and errors into error results so a
// single bad call cannot take the stdio session down.
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered", "tool", operation, "panic", r, "stack", string(debug.Stack()))
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()

	result, err = handler()
	if err != nil {
		s.logger.Warn("tool failed", "tool", operation, "err", err)
		return createErrorResponse(operation, err)
	}
	return result, nil
}

// Handler returns the registered handler for a tool, or nil.
func (s *Server) Handler(name string) ToolHandler {
	return s.handlers[name]
}

// Tools lists the registered tool names.
func (s *Server) Tools() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	return names
}

// Run serves MCP over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server with stdio transport", "root", s.ws.Config().Project.Root)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves MCP over an arbitrary transport, e.g. in-memory for embedding.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}
