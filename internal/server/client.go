package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/usage"
	"github.com/standardbeagle/snipdex/internal/workspace"
)

// Client connects to a running Server
type Client struct {
	httpClient *http.Client
	socketPath string
}

// NewClientForRoot creates a client for the server of the project at root
func NewClientForRoot(root string) *Client {
	return NewClientWithSocket(GetSocketPathForRoot(root))
}

// NewClientWithSocket creates a client with a custom socket path
func NewClientWithSocket(socketPath string) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
		Timeout: 30 * time.Second,
	}

	return &Client{
		httpClient: httpClient,
		socketPath: socketPath,
	}
}

// SocketPath returns the socket this client dials
func (c *Client) SocketPath() string {
	return c.socketPath
}

// Close releases idle connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// apiError is the error body shared by the JSON responses.
type apiError struct {
	Error string `json:"error"`
}

// do sends req as JSON and decodes the response into out. Non-200 responses
// become errors carrying the server's message.
func (c *Client) do(ctx context.Context, method, path string, req, out any) error {
	var body io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach server at %s: %w", c.socketPath, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e apiError
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsServerRunning checks if the server is accessible
func (c *Client) IsServerRunning() bool {
	_, err := c.Ping(context.Background())
	return err == nil
}

// Ping sends a health check to the server
func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	var resp PingResponse
	if err := c.do(ctx, http.MethodPost, "/ping", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the engine status
func (c *Client) Status(ctx context.Context) (*workspace.Status, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Status, nil
}

// View retrieves the current view, optionally rendered in format
func (c *Client) View(ctx context.Context, format string) (*ViewResponse, error) {
	var resp ViewResponse
	if err := c.do(ctx, http.MethodPost, "/view", ViewRequest{Format: format}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh asks the server to re-derive its view
func (c *Client) Refresh(ctx context.Context, format string) (*ViewResponse, error) {
	var resp ViewResponse
	if err := c.do(ctx, http.MethodPost, "/refresh", ViewRequest{Format: format}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSnippets returns the merged catalog
func (c *Client) ListSnippets(ctx context.Context) ([]catalog.Snippet, error) {
	var resp SnippetsResponse
	if err := c.do(ctx, http.MethodPost, "/snippets", SnippetsRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Snippets, nil
}

// SearchSnippets ranks catalog entries against query
func (c *Client) SearchSnippets(ctx context.Context, query string, limit int) ([]catalog.SearchResult, error) {
	var resp SnippetsResponse
	if err := c.do(ctx, http.MethodPost, "/snippets", SnippetsRequest{Query: query, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GetSnippet returns one entry and the layer it comes from
func (c *Client) GetSnippet(ctx context.Context, key string) (*SnippetResponse, error) {
	var resp SnippetResponse
	if err := c.do(ctx, http.MethodPost, "/snippet", SnippetRequest{Key: key}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PutSnippet stores an entry in the custom layer
func (c *Client) PutSnippet(ctx context.Context, key string, sn catalog.Snippet) error {
	return c.do(ctx, http.MethodPut, "/snippet", SnippetRequest{Key: key, Snippet: &sn}, nil)
}

// DeleteSnippet removes a custom entry and reports whether one existed
func (c *Client) DeleteSnippet(ctx context.Context, key string) (bool, error) {
	var resp SnippetResponse
	if err := c.do(ctx, http.MethodDelete, "/snippet", SnippetRequest{Key: key}, &resp); err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

// FindUsages lists the locations of key; maxResults <= 0 returns all
func (c *Client) FindUsages(ctx context.Context, key string, maxResults int) ([]usage.Location, int, error) {
	var resp UsagesResponse
	if err := c.do(ctx, http.MethodPost, "/usages", UsagesRequest{Key: key, MaxResults: maxResults}, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Locations, resp.Total, nil
}

// RunCommand runs a view command by wire name
func (c *Client) RunCommand(ctx context.Context, name, key string) (*workspace.CommandResult, error) {
	var resp CommandResponse
	if err := c.do(ctx, http.MethodPost, "/command", CommandRequest{Command: name, Key: key}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Shutdown requests the server to shut down
func (c *Client) Shutdown(ctx context.Context, force bool) error {
	var resp ShutdownResponse
	if err := c.do(ctx, http.MethodPost, "/shutdown", ShutdownRequest{Force: force}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("shutdown failed: %s", resp.Message)
	}
	return nil
}
