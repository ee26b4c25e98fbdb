package server

import (
	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/usage"
	"github.com/standardbeagle/snipdex/internal/view"
	"github.com/standardbeagle/snipdex/internal/workspace"
)

// RPC request/response types for client-server communication

// PingResponse confirms server is alive
type PingResponse struct {
	Uptime  float64 `json:"uptime_seconds"`
	Version string  `json:"version"`
	BuildID string  `json:"build_id"`
	Root    string  `json:"root"`
}

// StatusResponse reports the engine state
type StatusResponse struct {
	Status workspace.Status `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// ViewRequest selects the rendering of a view; empty returns structured groups only.
type ViewRequest struct {
	Format string `json:"format,omitempty"` // "", "text", "compact", "json"
}

// ViewResponse carries the current usage view
type ViewResponse struct {
	Generation     uint64             `json:"generation"`
	Revision       uint64             `json:"revision"`
	CatalogVersion uint64             `json:"catalog_version"`
	Empty          bool               `json:"empty"`
	Groups         []view.ModuleGroup `json:"groups"`
	Rendered       string             `json:"rendered,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// SnippetsRequest lists the catalog, or searches it when Query is set
type SnippetsRequest struct {
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// SnippetsResponse contains catalog entries or ranked search hits
type SnippetsResponse struct {
	Snippets []catalog.Snippet      `json:"snippets,omitempty"`
	Results  []catalog.SearchResult `json:"results,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// SnippetRequest addresses one entry. Snippet is required for put.
type SnippetRequest struct {
	Key     string           `json:"key"`
	Snippet *catalog.Snippet `json:"snippet,omitempty"`
}

// SnippetResponse returns one entry or the outcome of a mutation
type SnippetResponse struct {
	Snippet *catalog.Snippet `json:"snippet,omitempty"`
	Layer   string           `json:"layer,omitempty"`
	Deleted bool             `json:"deleted,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// UsagesRequest asks for every location of one key
type UsagesRequest struct {
	Key        string `json:"key"`
	MaxResults int    `json:"max_results,omitempty"`
}

// UsagesResponse contains find-usages results
type UsagesResponse struct {
	Locations []usage.Location `json:"locations"`
	Total     int              `json:"total"`
	Error     string           `json:"error,omitempty"`
}

// CommandRequest runs a view command by wire name
type CommandRequest struct {
	Command string `json:"command"`
	Key     string `json:"key,omitempty"`
}

// CommandResponse wraps the command outcome
type CommandResponse struct {
	Result *workspace.CommandResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// ShutdownRequest requests server shutdown
type ShutdownRequest struct {
	Force bool `json:"force,omitempty"`
}

// ShutdownResponse confirms shutdown
type ShutdownResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
