package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/offsearch/internal/config"
	"github.com/Aman-CERP/offsearch/internal/engine"
	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/mirror"
	"github.com/Aman-CERP/offsearch/internal/watcher"
	"github.com/Aman-CERP/offsearch/pkg/version"
)

// Server bridges AI clients with the mirrored indices of one Client.
type Server struct {
	mcp     *mcp.Server
	client  *mirror.Client
	config  *config.Config
	logger  *slog.Logger
	watcher *watcher.SourceWatcher

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Search an offline mirror of a record index. Runs locally against the last synced data, so it works without network access. An empty query lists records in ID order.",
	},
	{
		Name:        "build",
		Description: "Build or refresh an offline mirror from a JSON or NDJSON file of records. The first build of an index is its bootstrap.",
	},
	{
		Name:        "index_status",
		Description: "Report whether offline mode is enabled, which indices are loaded, their bootstrap state, and how busy the build and search lanes are.",
	},
}

// NewServer creates a new MCP server over client.
func NewServer(client *mirror.Client, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if client == nil {
		return nil, errors.New("mirror client is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		client: client,
		config: cfg,
		logger: logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    version.Name,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerStatusResource()

	return s, nil
}

// SetWatcher makes mirrored builds watch their source files.
func (s *Server) SetWatcher(w *watcher.SourceWatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watcher = w
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return version.Name, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with JSON-style arguments. Search and
// index_status return markdown; build returns *BuildOutput.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		out, err := s.search(ctx, in)
		if err != nil {
			return nil, MapError(err)
		}
		return FormatSearchResults(out), nil
	case "build":
		var in BuildInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		out, err := s.build(ctx, in)
		if err != nil {
			return nil, MapError(err)
		}
		return out, nil
	case "index_status":
		var in IndexStatusInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		out, err := s.indexStatus(in)
		if err != nil {
			return nil, MapError(err)
		}
		return FormatIndexStatus(out), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs[T any](args map[string]any, dst *T) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError("arguments are not valid JSON")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) search(ctx context.Context, in SearchInput) (SearchOutput, error) {
	if strings.TrimSpace(in.Index) == "" {
		return SearchOutput{}, NewInvalidParamsError("index parameter is required")
	}

	requestID := generateRequestID()
	start := time.Now()
	limit := clampLimit(in.Limit, s.config.Engine.MaxResults, 1, engine.MaxLimit)

	idx, err := s.client.GetOrCreateIndex(in.Index)
	if err != nil {
		return SearchOutput{}, err
	}
	f, err := idx.Search(ctx, engine.Query{Text: in.Query, Limit: limit, Offset: max(in.Offset, 0)})
	if err != nil {
		return SearchOutput{}, err
	}
	res, err := f.Wait(ctx)
	if err != nil {
		s.logger.Warn("mcp_search_failed",
			append([]any{slog.String("request_id", requestID), slog.String("index", in.Index)}, offerr.LogAttrs(err)...)...)
		return SearchOutput{}, err
	}

	s.logger.Info("mcp_search_done",
		slog.String("request_id", requestID),
		slog.String("index", in.Index),
		slog.Int("limit", limit),
		slog.Int("hits", len(res.Hits)),
		slog.Duration("duration", time.Since(start)))
	return ToSearchOutput(res), nil
}

func (s *Server) build(ctx context.Context, in BuildInput) (*BuildOutput, error) {
	if strings.TrimSpace(in.Index) == "" {
		return nil, NewInvalidParamsError("index parameter is required")
	}
	if strings.TrimSpace(in.Source) == "" {
		return nil, NewInvalidParamsError("source parameter is required")
	}

	idx, err := s.client.GetOrCreateIndex(in.Index)
	if err != nil {
		return nil, err
	}
	if in.Mirrored {
		idx.SetMirrored(true)
	}

	src := engine.NewFileSource(in.Source)
	buildCtx := ctx
	if !in.Wait {
		buildCtx = context.WithoutCancel(ctx)
	}
	f, err := idx.Build(buildCtx, src)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	w := s.watcher
	s.mu.RUnlock()
	if w != nil && idx.Mirrored() {
		if _, err := w.WatchSource(idx, src); err != nil {
			s.logger.Warn("mcp_watch_failed", append([]any{slog.String("index", in.Index)}, offerr.LogAttrs(err)...)...)
		}
	}

	out := &BuildOutput{Index: idx.Name(), Task: f.ID(), Status: "queued"}
	if in.Wait {
		stats, err := f.Wait(ctx)
		if err != nil {
			return nil, err
		}
		out.Status = "done"
		out.Documents = stats.Documents
		out.Duration = stats.Duration.Round(time.Millisecond).String()
	}
	out.Bootstrap = idx.BootstrapState().Phase.String()
	return out, nil
}

func (s *Server) indexStatus(in IndexStatusInput) (IndexStatusOutput, error) {
	st := s.client.Status()
	out := IndexStatusOutput{
		OfflineEnabled: st.OfflineEnabled,
		Backend:        st.Backend,
		RootDir:        st.RootDir,
		Indices:        make([]IndexInfo, 0, len(st.Indices)),
		Lanes:          make([]LaneInfo, 0, len(st.Lanes)),
	}

	for _, idx := range st.Indices {
		if in.Index != "" && idx.Name != in.Index {
			continue
		}
		info := IndexInfo{
			Name:      idx.Name,
			Kind:      idx.Kind,
			Mirrored:  idx.Mirrored,
			Offline:   idx.Offline,
			Bootstrap: idx.Bootstrap,
			Runs:      idx.Runs,
			LastError: idx.LastError,
			Source:    idx.Source,
			OnDisk:    string(idx.OnDisk),
		}
		if !idx.FinishedAt.IsZero() {
			info.FinishedAt = idx.FinishedAt.Format(time.RFC3339)
		}
		out.Indices = append(out.Indices, info)
	}
	if in.Index != "" && len(out.Indices) == 0 {
		return out, NewInvalidParamsError(fmt.Sprintf("index %q is not loaded", in.Index))
	}

	for _, l := range st.Lanes {
		out.Lanes = append(out.Lanes, LaneInfo{
			Kind:      string(l.Kind),
			Queued:    l.Queued,
			Running:   l.Running,
			Completed: l.Completed,
			Failed:    l.Failed,
			Cancelled: l.Cancelled,
		})
	}
	return out, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpBuildHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpIndexStatusHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	return textResult(FormatSearchResults(out)), out, nil
}

func (s *Server) mcpBuildHandler(ctx context.Context, _ *mcp.CallToolRequest, input BuildInput) (
	*mcp.CallToolResult,
	BuildOutput,
	error,
) {
	out, err := s.build(ctx, input)
	if err != nil {
		return nil, BuildOutput{}, MapError(err)
	}
	return nil, *out, nil
}

func (s *Server) mcpIndexStatusHandler(_ context.Context, _ *mcp.CallToolRequest, input IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(input)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	return textResult(FormatIndexStatus(out)), out, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// clampLimit returns limit, or def when limit is not positive, bounded to [lo, hi].
func clampLimit(limit, def, lo, hi int) int {
	if limit <= 0 {
		limit = def
	}
	return min(max(limit, lo), hi)
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
