// Package control serves a tiny HTTP API over a local Unix socket so the
// "cache" CLI subcommands can inspect and manage a running player
// process, mirroring the teacher's unix-socket control surface
// (cmd/gastrolog/cli's tryUnixSocket / internal/server's ServeUnix) but
// scaled down to the player core's much smaller surface: no auth, no
// TCP fallback, since the socket's filesystem permissions are the only
// access control this needs.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"playercore/internal/cachemanager"
	"playercore/internal/fileid"
	"playercore/internal/logging"
	"playercore/internal/orchestrator"
)

// Server exposes orchestrator/cache introspection and management over a
// Unix socket.
type Server struct {
	orch   *orchestrator.Orchestrator
	cache  *cachemanager.Manager
	logger *slog.Logger

	httpServer *http.Server
	listener   net.Listener
}

// Config wires a Server's dependencies.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Cache        *cachemanager.Manager
	Logger       *slog.Logger
}

// New constructs a Server. Call ServeUnix to start listening.
func New(cfg Config) *Server {
	return &Server{
		orch:   cfg.Orchestrator,
		cache:  cfg.Cache,
		logger: logging.Default(cfg.Logger).With("component", "control"),
	}
}

// StatResponse is the JSON body returned by GET /stat.
type StatResponse struct {
	Collecting      bool   `json:"collecting"`
	CollectInterval string `json:"collect_interval"`
	CurrentLayout   string `json:"current_layout,omitempty"`
}

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	st := s.orch.Status()
	resp := StatResponse{
		Collecting:      st.Collecting,
		CollectInterval: st.CollectInterval.String(),
	}
	if st.CurrentLayout != nil {
		resp.CurrentLayout = st.CurrentLayout.String()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// purgeRequest optionally restricts a purge to a specific set of file
// IDs; an empty list purges everything the orchestrator currently knows
// about.
type purgeRequest struct {
	IDs []string `json:"ids,omitempty"`
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "decode request: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if len(req.IDs) == 0 {
		s.orch.PurgeAll()
		w.WriteHeader(http.StatusOK)
		return
	}
	for _, raw := range req.IDs {
		id, err := parseID(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.cache.Invalidate(id)
	}
	w.WriteHeader(http.StatusOK)
}

func parseID(raw string) (fileid.ID, error) {
	kind, numStr, ok := strings.Cut(raw, "/")
	if !ok {
		return fileid.ID{}, fmt.Errorf("invalid file id %q: want kind/number", raw)
	}
	num, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return fileid.ID{}, fmt.Errorf("invalid file id %q: %w", raw, err)
	}
	switch kind {
	case "layout":
		return fileid.Layout(num), nil
	case "media":
		return fileid.Media(num), nil
	default:
		return fileid.ID{}, fmt.Errorf("unsupported kind %q in file id %q", kind, raw)
	}
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stat", s.handleStat)
	mux.HandleFunc("POST /purge", s.handlePurge)
	return mux
}

// ServeUnix listens on socketPath and serves until ctx is cancelled. Any
// stale socket file left behind by an unclean shutdown is removed first.
func (s *Server) ServeUnix(ctx context.Context, socketPath string) error {
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale control socket: %w", err)
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	s.listener = listener
	s.httpServer = &http.Server{Handler: s.handler()}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(listener) }()

	select {
	case <-ctx.Done():
		_ = s.httpServer.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close shuts the server down, if running.
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}
