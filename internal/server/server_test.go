package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/version"
	"github.com/standardbeagle/snipdex/internal/workspace"
	"github.com/standardbeagle/snipdex/testhelpers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

func getTestSocketPath(t *testing.T) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("snipdex-test-%d-%s.sock", os.Getpid(), t.Name()))
}

// startServer runs a workspace and a server over the sample project.
func startServer(t *testing.T) (*Server, *Client, *testhelpers.TestProject) {
	t.Helper()
	p := testhelpers.NewTestProject(t).
		WithBase(testhelpers.SampleCatalog()).
		AddFiles(map[string]string{
			"a.lua": "getHP(1) getHP(2)\nsetHP(3)",
			"b.lua": "Item.Use(x)",
		})
	ws, err := workspace.Open(p.Config())
	require.NoError(t, err)
	require.NoError(t, ws.Start(context.Background(), false))

	srv := New(ws)
	socketPath := getTestSocketPath(t)
	srv.SetSocketPath(socketPath)
	require.NoError(t, srv.Start())

	client := NewClientWithSocket(socketPath)
	t.Cleanup(func() {
		client.Close()
		require.NoError(t, srv.Shutdown(context.Background()))
		ws.Close()
		os.Remove(socketPath)
	})
	return srv, client, p
}

func TestServer_Ping(t *testing.T) {
	_, client, p := startServer(t)

	ping, err := client.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, version.Version, ping.Version)
	assert.Equal(t, version.BuildID(), ping.BuildID)
	assert.Equal(t, p.Root, ping.Root)
	assert.True(t, client.IsServerRunning())
}

func TestServer_StartTwice(t *testing.T) {
	srv, _, _ := startServer(t)
	assert.Error(t, srv.Start())
}

func TestServer_StatusAndView(t *testing.T) {
	_, client, _ := startServer(t)
	ctx := context.Background()

	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, workspace.StateReady, st.State)
	assert.Equal(t, 2, st.Files)

	v, err := client.View(ctx, "")
	require.NoError(t, err)
	require.Len(t, v.Groups, 2)
	assert.Equal(t, "actor", v.Groups[0].Module)
	assert.Equal(t, 3, v.Groups[0].Total)
	assert.Empty(t, v.Rendered)

	v, err = client.View(ctx, "compact")
	require.NoError(t, err)
	assert.Equal(t, "actor=3 [getHP=2 setHP=1]; item=1 [Item.Use=1]", v.Rendered)

	_, err = client.View(ctx, "yaml")
	assert.Error(t, err)
}

func TestServer_SnippetLifecycle(t *testing.T) {
	_, client, p := startServer(t)
	ctx := context.Background()

	all, err := client.ListSnippets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	got, err := client.GetSnippet(ctx, "getHP")
	require.NoError(t, err)
	assert.Equal(t, "base", got.Layer)
	assert.Equal(t, "actor", got.Snippet.Module)

	require.NoError(t, client.PutSnippet(ctx, "getHP", catalog.Snippet{Module: "hero"}))
	got, err = client.GetSnippet(ctx, "getHP")
	require.NoError(t, err)
	assert.Equal(t, "custom", got.Layer)
	assert.FileExists(t, p.Path("config/customsnippets.json"))

	v, err := client.Refresh(ctx, "")
	require.NoError(t, err)
	modules := make([]string, 0, len(v.Groups))
	for _, g := range v.Groups {
		modules = append(modules, g.Module)
	}
	assert.Equal(t, []string{"hero", "actor", "item"}, modules)

	deleted, err := client.DeleteSnippet(ctx, "getHP")
	require.NoError(t, err)
	assert.True(t, deleted)
	got, err = client.GetSnippet(ctx, "getHP")
	require.NoError(t, err)
	assert.Equal(t, "base", got.Layer)

	deleted, err = client.DeleteSnippet(ctx, "getHP")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = client.GetSnippet(ctx, "missing")
	assert.ErrorContains(t, err, "404")
}

func TestServer_Search(t *testing.T) {
	_, client, _ := startServer(t)

	results, err := client.SearchSnippets(context.Background(), "getHP", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "getHP", results[0].Snippet.Key)
}

func TestServer_FindUsages(t *testing.T) {
	_, client, _ := startServer(t)
	ctx := context.Background()

	locs, total, err := client.FindUsages(ctx, "getHP", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, locs, 1)
	assert.Equal(t, "a.lua", locs[0].Path)
	assert.Equal(t, 1, locs[0].Column)

	_, _, err = client.FindUsages(ctx, "nope", 0)
	assert.ErrorContains(t, err, "unknown snippet")
}

func TestServer_RunCommand(t *testing.T) {
	_, client, _ := startServer(t)
	ctx := context.Background()

	res, err := client.RunCommand(ctx, "copy_snippet", "getHP")
	require.NoError(t, err)
	assert.Equal(t, "local hp = getHP(id)", res.Body)

	res, err = client.RunCommand(ctx, "refresh_view", "")
	require.NoError(t, err)
	require.NotNil(t, res.View)

	_, err = client.RunCommand(ctx, "explode", "x")
	assert.ErrorContains(t, err, "unknown command")
}

func TestServer_EditOverlayVisibleThroughView(t *testing.T) {
	srv, client, _ := startServer(t)
	require.NoError(t, srv.ws.Corpus().Edit("b.lua", "setHP(1)"))

	require.Eventually(t, func() bool {
		v, err := client.View(context.Background(), "")
		return err == nil && len(v.Groups) == 1 && v.Groups[0].Total == 4
	}, 5*time.Second, 20*time.Millisecond)
}

func TestServer_ShutdownRequest(t *testing.T) {
	srv, client, _ := startServer(t)

	require.NoError(t, client.Shutdown(context.Background(), false))
	select {
	case <-srv.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown was not signalled")
	}
}

func TestGetSocketPathForRoot(t *testing.T) {
	path1 := GetSocketPathForRoot("/some/project/a")
	path2 := GetSocketPathForRoot("/some/project/b")
	path3 := GetSocketPathForRoot("/some/project/a")

	assert.NotEqual(t, path1, path2, "Different roots should produce different socket paths")
	assert.Equal(t, path1, path3, "Same root should produce the same socket path")
	assert.Equal(t, GetSocketPath(), GetSocketPathForRoot(""))
}

func TestClient_NoServer(t *testing.T) {
	client := NewClientWithSocket(filepath.Join(t.TempDir(), "absent.sock"))
	defer client.Close()
	assert.False(t, client.IsServerRunning())
	_, err := client.Status(context.Background())
	assert.Error(t, err)
}
