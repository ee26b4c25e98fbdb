package mcp

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/display"
	"github.com/standardbeagle/snipdex/internal/version"
	"github.com/standardbeagle/snipdex/internal/view"
)

var errNotReady = errors.New("workspace not ready - initial scan in progress")

func arguments(req *mcp.CallToolRequest) []byte {
	if req == nil || req.Params == nil {
		return nil
	}
	return req.Params.Arguments
}

func renderView(v *view.View, p ViewParams) (*mcp.CallToolResult, error) {
	format := strings.ToLower(strings.TrimSpace(p.Format))
	switch format {
	case "", "text", "compact", "json":
	default:
		return nil, fmt.Errorf("unknown format %q (use text, compact or json)", p.Format)
	}
	if format == "" {
		format = "text"
	}
	out := display.NewTreeFormatter(display.FormatterOptions{
		Format:           format,
		ShowDescriptions: p.Descriptions,
		MaxEntries:       p.MaxEntries,
	}).Format(v)
	return createTextResponse(out), nil
}

func (s *Server) handleUsageView(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p ViewParams
	unknown, err := decodeParams(arguments(req), &p)
	if err != nil {
		return nil, err
	}
	if !s.ws.Ready() {
		return nil, errNotReady
	}
	result, err := renderView(s.ws.View(), p)
	if err != nil {
		return nil, err
	}
	addWarningsToResponse(result, unknownWarnings(unknown))
	return result, nil
}

func (s *Server) handleRefresh(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p ViewParams
	unknown, err := decodeParams(arguments(req), &p)
	if err != nil {
		return nil, err
	}
	if !s.ws.Ready() {
		return nil, errNotReady
	}
	v, err := s.ws.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	result, err := renderView(v, p)
	if err != nil {
		return nil, err
	}
	addWarningsToResponse(result, unknownWarnings(unknown))
	return result, nil
}

type snippetEntry struct {
	catalog.Snippet
	Layer string `json:"layer"`
}

func (s *Server) handleListSnippets(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p ListSnippetsParams
	unknown, err := decodeParams(arguments(req), &p)
	if err != nil {
		return nil, err
	}
	snap := s.ws.Catalog().Store().Snapshot()
	entries := make([]snippetEntry, 0, snap.Len())
	for _, sn := range snap.Enumerate() {
		if p.Module != "" && sn.Module != p.Module {
			continue
		}
		layer, _ := snap.Layer(sn.Key)
		entries = append(entries, snippetEntry{Snippet: sn, Layer: layer.String()})
		if p.Limit > 0 && len(entries) == p.Limit {
			break
		}
	}
	result, err := createJSONResponse(map[string]any{
		"snippets": entries,
		"count":    len(entries),
		"total":    snap.Len(),
	})
	if err != nil {
		return nil, err
	}
	addWarningsToResponse(result, unknownWarnings(unknown))
	return result, nil
}

func (s *Server) handleSearchSnippets(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p SearchSnippetsParams
	unknown, err := decodeParams(arguments(req), &p)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Query) == "" {
		return nil, errors.New("query is required")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	results := catalog.Search(s.ws.Catalog().Store().Snapshot(), p.Query, limit)
	if results == nil {
		results = []catalog.SearchResult{}
	}
	result, err := createJSONResponse(map[string]any{"query": p.Query, "results": results})
	if err != nil {
		return nil, err
	}
	addWarningsToResponse(result, unknownWarnings(unknown))
	return result, nil
}

func (s *Server) handleFindUsages(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p FindUsagesParams
	unknown, err := decodeParams(arguments(req), &p)
	if err != nil {
		return nil, err
	}
	if p.Key == "" {
		return nil, errors.New("key is required")
	}
	locs, err := s.ws.FindUsages(ctx, p.Key)
	if err != nil {
		return nil, err
	}
	total := len(locs)
	if p.MaxResults > 0 && len(locs) > p.MaxResults {
		locs = locs[:p.MaxResults]
	}
	text := display.FormatLocations(p.Key, locs, false)
	if len(locs) < total {
		text += fmt.Sprintf("(showing %d of %d)\n", len(locs), total)
	}
	result := createTextResponse(text)
	addWarningsToResponse(result, unknownWarnings(unknown))
	return result, nil
}

func (s *Server) handlePutSnippet(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p PutSnippetParams
	unknown, err := decodeParams(arguments(req), &p)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Key) == "" {
		return nil, errors.New("key is required")
	}
	sn := catalog.Snippet{
		Key:         p.Key,
		Module:      p.Module,
		Description: p.Description,
		ParamsDoc:   p.ParamsDoc,
		ReturnDoc:   p.ReturnDoc,
		Body:        p.Body,
	}
	if err := s.ws.Catalog().Put(p.Key, sn); err != nil {
		return nil, err
	}
	result, err := createJSONResponse(map[string]any{
		"success": true,
		"key":     p.Key,
		"layer":   catalog.LayerCustom.String(),
		"path":    s.ws.Catalog().Path(catalog.LayerCustom),
	})
	if err != nil {
		return nil, err
	}
	addWarningsToResponse(result, unknownWarnings(unknown))
	return result, nil
}

func (s *Server) handleDeleteSnippet(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p DeleteSnippetParams
	unknown, err := decodeParams(arguments(req), &p)
	if err != nil {
		return nil, err
	}
	if p.Key == "" {
		return nil, errors.New("key is required")
	}
	deleted, err := s.ws.Catalog().Delete(p.Key)
	if err != nil {
		return nil, err
	}
	_, stillVisible := s.ws.Catalog().Store().Get(p.Key)
	result, err := createJSONResponse(map[string]any{
		"success":       true,
		"key":           p.Key,
		"deleted":       deleted,
		"base_restored": deleted && stillVisible,
	})
	if err != nil {
		return nil, err
	}
	addWarningsToResponse(result, unknownWarnings(unknown))
	return result, nil
}

func (s *Server) handleRunCommand(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p RunCommandParams
	unknown, err := decodeParams(arguments(req), &p)
	if err != nil {
		return nil, err
	}
	cmd, err := view.ParseCommand(p.Command, p.Key)
	if err != nil {
		return nil, err
	}
	res, err := s.ws.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	result, err := createJSONResponse(res)
	if err != nil {
		return nil, err
	}
	addWarningsToResponse(result, unknownWarnings(unknown))
	return result, nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return createJSONResponse(map[string]any{
		"server_name":    "snipdex-mcp-server",
		"server_version": version.FullInfo(),
		"build_id":       version.BuildID(),
		"go_version":     runtime.Version(),
		"status":         s.ws.Status(),
	})
}
