package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/display"
	"github.com/standardbeagle/snipdex/internal/logging"
	"github.com/standardbeagle/snipdex/internal/version"
	"github.com/standardbeagle/snipdex/internal/view"
	"github.com/standardbeagle/snipdex/internal/workspace"
)

// Server exposes a running workspace to local clients over a unix socket
type Server struct {
	ws           *workspace.Workspace
	listener     net.Listener
	server       *http.Server
	logger       *log.Logger
	startTime    time.Time
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	mu           sync.Mutex
	running      bool
	socketPath   string // custom socket path (empty derives one from the root)
}

// New creates a server for ws. The workspace is started and closed by the caller.
func New(ws *workspace.Workspace) *Server {
	return &Server{
		ws:           ws,
		logger:       logging.For("server"),
		startTime:    time.Now(),
		shutdownChan: make(chan struct{}),
	}
}

// GetSocketPath returns the default path to the unix socket
func GetSocketPath() string {
	return filepath.Join(os.TempDir(), "snipdex-server.sock")
}

// GetSocketPathForRoot returns a project-specific socket path so servers for
// different projects can run side by side.
func GetSocketPathForRoot(root string) string {
	if root == "" {
		return GetSocketPath()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return GetSocketPath()
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("snipdex-server-%08x.sock", uint32(xxhash.Sum64String(absRoot))))
}

// SetSocketPath sets a custom socket path for this server
func (s *Server) SetSocketPath(path string) {
	s.socketPath = path
}

// SocketPath returns the socket path this server is using
func (s *Server) SocketPath() string {
	if s.socketPath != "" {
		return s.socketPath
	}
	if cfg := s.ws.Config(); cfg.Server.SocketPath != "" {
		return cfg.Server.SocketPath
	}
	return GetSocketPathForRoot(s.ws.Config().Project.Root)
}

// Start begins listening for client connections
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("server already running")
	}

	socketPath := s.SocketPath()
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		s.logger.Warn("failed to restrict socket permissions", "path", socketPath, "err", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	s.registerHandlers(mux)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "err", err)
		}
	}()

	s.logger.Info("snipdex server started", "socket", socketPath, "pid", os.Getpid(), "root", s.ws.Config().Project.Root)
	return nil
}

// registerHandlers sets up RPC endpoints
func (s *Server) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/view", s.handleView)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/snippets", s.handleSnippets)
	mux.HandleFunc("/snippet", s.handleSnippet)
	mux.HandleFunc("/usages", s.handleUsages)
	mux.HandleFunc("/command", s.handleCommand)
	mux.HandleFunc("/shutdown", s.handleShutdown)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeBody reads an optional JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) ready(w http.ResponseWriter) bool {
	if s.ws.Ready() {
		return true
	}
	http.Error(w, "workspace not ready - initial scan in progress", http.StatusServiceUnavailable)
	return false
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workspace.ErrUnknownSnippet):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handlePing responds to health check requests
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PingResponse{
		Uptime:  time.Since(s.startTime).Seconds(),
		Version: version.Version,
		BuildID: version.BuildID(),
		Root:    s.ws.Config().Project.Root,
	})
}

// handleStatus returns the current engine status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: s.ws.Status()})
}

func (s *Server) viewResponse(v *view.View, format string) (ViewResponse, error) {
	groups := v.Groups
	if groups == nil {
		groups = []view.ModuleGroup{}
	}
	resp := ViewResponse{
		Generation:     v.Generation,
		Revision:       v.Revision,
		CatalogVersion: v.CatalogVersion,
		Empty:          v.Empty(),
		Groups:         groups,
	}
	switch format {
	case "":
	case "text", "compact", "json":
		resp.Rendered = display.NewTreeFormatter(display.FormatterOptions{
			Format:           format,
			ShowDescriptions: true,
		}).Format(v)
	default:
		return resp, fmt.Errorf("unknown view format %q", format)
	}
	return resp, nil
}

// handleView returns the current usage view
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	var req ViewRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f := r.URL.Query().Get("format"); f != "" {
		req.Format = f
	}
	resp, err := s.viewResponse(s.ws.View(), req.Format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh re-derives the view once the catalog's key set has been scanned
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	var req ViewRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, err := s.ws.Refresh(r.Context())
	if err != nil {
		writeJSON(w, statusFor(err), ViewResponse{Error: err.Error()})
		return
	}
	resp, err := s.viewResponse(v, req.Format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSnippets lists or searches the merged catalog
func (s *Server) handleSnippets(w http.ResponseWriter, r *http.Request) {
	var req SnippetsRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap := s.ws.Catalog().Store().Snapshot()
	if req.Query == "" {
		snippets := snap.Enumerate()
		if req.Limit > 0 && len(snippets) > req.Limit {
			snippets = snippets[:req.Limit]
		}
		writeJSON(w, http.StatusOK, SnippetsResponse{Snippets: snippets})
		return
	}
	writeJSON(w, http.StatusOK, SnippetsResponse{Results: catalog.Search(snap, req.Query, req.Limit)})
}

// handleSnippet shows (GET/POST), stores (PUT) or deletes (DELETE) one entry
func (s *Server) handleSnippet(w http.ResponseWriter, r *http.Request) {
	var req SnippetRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if k := r.URL.Query().Get("key"); k != "" {
		req.Key = k
	}
	if req.Key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	repo := s.ws.Catalog()
	switch r.Method {
	case http.MethodGet, http.MethodPost:
		snap := repo.Store().Snapshot()
		sn, ok := snap.Get(req.Key)
		if !ok {
			writeJSON(w, http.StatusNotFound, SnippetResponse{Error: fmt.Sprintf("%s: %s", workspace.ErrUnknownSnippet, req.Key)})
			return
		}
		layer, _ := snap.Layer(req.Key)
		writeJSON(w, http.StatusOK, SnippetResponse{Snippet: &sn, Layer: layer.String()})

	case http.MethodPut:
		if req.Snippet == nil {
			http.Error(w, "snippet is required", http.StatusBadRequest)
			return
		}
		if err := repo.Put(req.Key, *req.Snippet); err != nil {
			writeJSON(w, http.StatusInternalServerError, SnippetResponse{Error: err.Error()})
			return
		}
		sn, _ := repo.Store().Get(req.Key)
		writeJSON(w, http.StatusOK, SnippetResponse{Snippet: &sn, Layer: catalog.LayerCustom.String()})

	case http.MethodDelete:
		deleted, err := repo.Delete(req.Key)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, SnippetResponse{Error: err.Error()})
			return
		}
		resp := SnippetResponse{Deleted: deleted}
		if sn, ok := repo.Store().Get(req.Key); ok {
			resp.Snippet = &sn
			resp.Layer = catalog.LayerBase.String()
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		w.Header().Set("Allow", "GET, POST, PUT, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUsages finds every occurrence of one key
func (s *Server) handleUsages(w http.ResponseWriter, r *http.Request) {
	var req UsagesRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}
	locs, err := s.ws.FindUsages(r.Context(), req.Key)
	if err != nil {
		writeJSON(w, statusFor(err), UsagesResponse{Error: err.Error()})
		return
	}
	resp := UsagesResponse{Locations: locs, Total: len(locs)}
	if req.MaxResults > 0 && len(locs) > req.MaxResults {
		resp.Locations = locs[:req.MaxResults]
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCommand runs a view command such as the one attached to a tree entry
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd, err := view.ParseCommand(req.Command, req.Key)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, CommandResponse{Error: err.Error()})
		return
	}
	res, err := s.ws.Execute(r.Context(), cmd)
	if err != nil {
		writeJSON(w, statusFor(err), CommandResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Result: res})
}

// handleShutdown acknowledges and then signals Wait to return
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	var req ShutdownRequest
	if err := decodeBody(r, &req); err != nil {
		req = ShutdownRequest{}
	}
	writeJSON(w, http.StatusOK, ShutdownResponse{Success: true, Message: "Server shutting down"})

	// Let the response flush before Wait returns.
	time.AfterFunc(100*time.Millisecond, s.signalShutdown)
}

func (s *Server) signalShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })
}

// Done is closed once a client has requested shutdown
func (s *Server) Done() <-chan struct{} {
	return s.shutdownChan
}

// Wait blocks until a client requests shutdown
func (s *Server) Wait() {
	<-s.shutdownChan
}

// Shutdown stops serving and removes the socket file
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	var err error
	if s.server != nil {
		if serr := s.server.Shutdown(ctx); serr != nil {
			err = fmt.Errorf("server shutdown error: %w", serr)
		}
	}
	s.wg.Wait()
	os.Remove(s.SocketPath())
	s.signalShutdown()

	s.logger.Info("snipdex server shut down")
	return err
}
