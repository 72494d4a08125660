package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/offsearch/internal/config"
	"github.com/Aman-CERP/offsearch/internal/engine"
	"github.com/Aman-CERP/offsearch/internal/logging"
	"github.com/Aman-CERP/offsearch/internal/mirror"
	"github.com/Aman-CERP/offsearch/internal/watcher"
)

const records = `[
	{"objectID": "1", "name": "Espresso Machine", "brand": "Brewster"},
	{"objectID": "2", "name": "Coffee Grinder", "brand": "Brewster"},
	{"objectID": "3", "name": "Tea Kettle", "brand": "Steep"}
]`

func newTestServer(t *testing.T, activate bool) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	client, err := mirror.New(mirror.Options{
		Backend: engine.BackendSQLite,
		RootDir: filepath.Join(dir, "mirrors"),
		TempDir: filepath.Join(dir, "tmp"),
		Logger:  logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(ctx)
	})
	if activate {
		require.NoError(t, client.EnableOfflineMode(context.Background(), "VALID"))
	}

	src := filepath.Join(dir, "products.json")
	require.NoError(t, os.WriteFile(src, []byte(records), 0o644))

	s, err := NewServer(client, config.NewConfig(), logging.Discard())
	require.NoError(t, err)
	return s, src
}

func TestNewServer_RequiresClient(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}

func TestServer_InfoAndTools(t *testing.T) {
	s, _ := newTestServer(t, false)

	name, ver := s.Info()
	assert.Equal(t, "offsearch", name)
	assert.NotEmpty(t, ver)

	var names []string
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"search", "build", "index_status"}, names)
}

func TestCallTool_BuildThenSearch(t *testing.T) {
	// Given: an activated server and a records file
	s, src := newTestServer(t, true)
	ctx := context.Background()

	// When: the index is built and waited for
	res, err := s.CallTool(ctx, "build", map[string]any{"index": "products", "source": src, "wait": true})

	// Then: the build reports its documents and a finished bootstrap
	require.NoError(t, err)
	out := res.(*BuildOutput)
	assert.Equal(t, "done", out.Status)
	assert.NotZero(t, out.Task)
	assert.Equal(t, 3, out.Documents)
	assert.Eventually(t, func() bool {
		idx, _ := s.client.LookupIndex("products")
		return idx.IsOffline()
	}, 2*time.Second, 10*time.Millisecond)

	// When: the index is searched
	md, err := s.CallTool(ctx, "search", map[string]any{"index": "products", "query": "brewster"})

	// Then: markdown lists both matches
	require.NoError(t, err)
	text := md.(string)
	assert.Contains(t, text, `Search Results for "brewster"`)
	assert.Contains(t, text, "Espresso Machine")
	assert.Contains(t, text, "Coffee Grinder")
	assert.NotContains(t, text, "Tea Kettle")
}

func TestCallTool_SearchBeforeActivation(t *testing.T) {
	// Given: a server whose client was never activated
	s, _ := newTestServer(t, false)

	// When: a search is attempted
	_, err := s.CallTool(context.Background(), "search", map[string]any{"index": "products", "query": "x"})

	// Then: the MCP error says offline mode is not enabled
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeNotActivated, mcpErr.Code)
}

func TestCallTool_InvalidParams(t *testing.T) {
	s, _ := newTestServer(t, true)
	ctx := context.Background()

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"search without index", "search", map[string]any{"query": "x"}},
		{"search with wrong type", "search", map[string]any{"index": 42}},
		{"build without source", "build", map[string]any{"index": "products"}},
		{"status of unknown index", "index_status", map[string]any{"index": "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CallTool(ctx, tt.tool, tt.args)

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestCallTool_UnknownTool(t *testing.T) {
	s, _ := newTestServer(t, true)

	_, err := s.CallTool(context.Background(), "drop_index", nil)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}

func TestCallTool_IndexStatus(t *testing.T) {
	// Given: a server with one built index
	s, src := newTestServer(t, true)
	ctx := context.Background()
	_, err := s.CallTool(ctx, "build", map[string]any{"index": "products", "source": src, "wait": true})
	require.NoError(t, err)

	// When: status is requested
	md, err := s.CallTool(ctx, "index_status", nil)

	// Then: the index and lanes are listed
	require.NoError(t, err)
	text := md.(string)
	assert.Contains(t, text, "**Offline mode:** enabled")
	assert.Contains(t, text, "| products | mirrored |")
	assert.Contains(t, text, "build lane")
	assert.Contains(t, text, "search lane")
}

func TestBuild_MirroredIsWatched(t *testing.T) {
	// Given: a server with a source watcher
	s, src := newTestServer(t, true)
	w, err := watcher.New(watcher.Options{ForcePolling: true}, logging.Discard())
	require.NoError(t, err)
	defer w.Stop()
	s.SetWatcher(w)

	// When: a mirrored build is requested
	_, err = s.CallTool(context.Background(), "build", map[string]any{
		"index": "products", "source": src, "mirrored": true, "wait": true,
	})

	// Then: the source is watched
	require.NoError(t, err)
	assert.Equal(t, []string{src}, w.Watched())
}

func TestServer_OverInMemoryTransport(t *testing.T) {
	// Given: a server connected to an MCP client in memory
	s, src := newTestServer(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	// When: tools are listed
	list, err := session.ListTools(ctx, nil)

	// Then: all three are advertised
	require.NoError(t, err)
	assert.Len(t, list.Tools, 3)

	// When: build then search are called through the protocol
	_, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "build",
		Arguments: map[string]any{"index": "products", "source": src, "wait": true},
	})
	require.NoError(t, err)
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search",
		Arguments: map[string]any{"index": "products", "query": "kettle"},
	})

	// Then: the markdown content names the hit
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "Tea Kettle")
}
