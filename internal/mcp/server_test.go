package mcp

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/snipdex/internal/workspace"
	"github.com/standardbeagle/snipdex/testhelpers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

func newTestServer(t *testing.T) (*Server, *testhelpers.TestProject) {
	t.Helper()
	p := testhelpers.NewTestProject(t).
		WithBase(testhelpers.SampleCatalog()).
		AddFiles(map[string]string{
			"main.lua":      "getHP(a)\nlocal v = getHP(b)",
			"items/use.lua": "Item.Use(potion) setHP(1)",
		})
	ws, err := workspace.Open(p.Config())
	require.NoError(t, err)
	t.Cleanup(ws.Close)
	require.NoError(t, ws.Start(context.Background(), false))
	return NewServer(ws), p
}

func callTool(t *testing.T, s *Server, name string, args any) (*mcp.CallToolResult, string) {
	t.Helper()
	h := s.Handler(name)
	require.NotNil(t, h, "tool %s not registered", name)

	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		require.NoError(t, err)
		raw = data
	}
	result, err := h(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: name, Arguments: raw},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return result, text.Text
}

func TestNewServer_RegistersTools(t *testing.T) {
	s, _ := newTestServer(t)
	names := s.Tools()
	sort.Strings(names)
	assert.Equal(t, []string{
		"delete_snippet", "find_usages", "list_snippets", "put_snippet",
		"refresh", "run_command", "search_snippets", "status", "usage_view",
	}, names)
	assert.Nil(t, s.Handler("nope"))
}

func TestUsageView(t *testing.T) {
	s, _ := newTestServer(t)

	result, text := callTool(t, s, "usage_view", nil)
	assert.False(t, result.IsError)
	assert.Contains(t, text, "actor (total: 3)")
	assert.Contains(t, text, "Item.Use (1)")

	_, text = callTool(t, s, "usage_view", map[string]any{"format": "compact"})
	assert.Equal(t, "actor=3 [getHP=2 setHP=1]; item=1 [Item.Use=1]", text)

	result, text = callTool(t, s, "usage_view", map[string]any{"format": "xml"})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "unknown format")
}

func TestUsageView_UnknownParameterWarns(t *testing.T) {
	s, _ := newTestServer(t)

	result, text := callTool(t, s, "list_snippets", map[string]any{"module": "actor", "colour": "red"})
	assert.False(t, result.IsError)

	var decoded struct {
		Count    int      `json:"count"`
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	assert.Equal(t, 2, decoded.Count)
	assert.Equal(t, []string{`ignored unknown parameter "colour"`}, decoded.Warnings)
}

func TestSearchSnippets(t *testing.T) {
	s, _ := newTestServer(t)

	_, text := callTool(t, s, "search_snippets", map[string]any{"query": "getHP"})
	var decoded struct {
		Results []struct {
			Snippet struct {
				Key string `json:"key"`
			} `json:"snippet"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	require.NotEmpty(t, decoded.Results)
	assert.Equal(t, "getHP", decoded.Results[0].Snippet.Key)

	result, _ := callTool(t, s, "search_snippets", map[string]any{})
	assert.True(t, result.IsError)
}

func TestFindUsages(t *testing.T) {
	s, _ := newTestServer(t)

	_, text := callTool(t, s, "find_usages", map[string]any{"key": "getHP"})
	assert.Contains(t, text, "main.lua:1:1: getHP(a)")
	assert.Contains(t, text, "main.lua:2:11: local v = getHP(b)")
	assert.Contains(t, text, "2 usages of getHP in 1 files")

	_, text = callTool(t, s, "find_usages", map[string]any{"key": "getHP", "max_results": 1})
	assert.Contains(t, text, "(showing 1 of 2)")

	result, text := callTool(t, s, "find_usages", map[string]any{"key": "ghost"})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "unknown snippet")
}

func TestPutAndDeleteSnippet(t *testing.T) {
	s, p := newTestServer(t)

	result, _ := callTool(t, s, "put_snippet", map[string]any{
		"key": "local", "module": "lua", "body": []string{"local x = 1"},
	})
	require.False(t, result.IsError)
	assert.FileExists(t, p.Path("config/customsnippets.json"))

	_, text := callTool(t, s, "refresh", map[string]any{"format": "compact"})
	assert.Contains(t, text, "lua=1 [local=1]")

	_, text = callTool(t, s, "delete_snippet", map[string]any{"key": "local"})
	var decoded struct {
		Deleted      bool `json:"deleted"`
		BaseRestored bool `json:"base_restored"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	assert.True(t, decoded.Deleted)
	assert.False(t, decoded.BaseRestored)

	result, _ = callTool(t, s, "put_snippet", map[string]any{"module": "x"})
	assert.True(t, result.IsError)
}

func TestRunCommand(t *testing.T) {
	s, _ := newTestServer(t)

	_, text := callTool(t, s, "run_command", map[string]any{"command": "show_snippet", "key": "setHP"})
	var res workspace.CommandResult
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	require.NotNil(t, res.Snippet)
	assert.Equal(t, "write hit points", res.Snippet.Description)

	result, text := callTool(t, s, "run_command", map[string]any{"command": "show_snippet"})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "requires a key")
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t)

	_, text := callTool(t, s, "status", nil)
	var decoded struct {
		Status workspace.Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	assert.Equal(t, workspace.StateReady, decoded.Status.State)
	assert.Equal(t, 2, decoded.Status.Files)
}

func TestInvalidArguments(t *testing.T) {
	s, _ := newTestServer(t)
	result, err := s.Handler("find_usages")(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: "find_usages", Arguments: json.RawMessage(`{"key": 5}`)},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRecoverFromPanic(t *testing.T) {
	s, _ := newTestServer(t)
	result, err := s.recoverFromPanic("boom", func() (*mcp.CallToolResult, error) {
		panic("kaboom")
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].(*mcp.TextContent).Text, "kaboom")
}

func TestInMemorySession(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, tools.Tools, 9)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "usage_view",
		Arguments: map[string]any{"format": "compact"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	assert.Equal(t, "actor=3 [getHP=2 setHP=1]; item=1 [Item.Use=1]", res.Content[0].(*mcp.TextContent).Text)
}
