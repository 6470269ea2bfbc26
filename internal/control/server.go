// Package control exposes a running player to other tunes processes over a
// unix socket.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/core"
)

// SocketName is the socket file created in the config directory.
const SocketName = "player.sock"

// SocketPath returns the control socket path inside dir.
func SocketPath(dir string) string {
	return filepath.Join(dir, SocketName)
}

// PlayRequest asks a running player to load a track.
type PlayRequest struct {
	Track   core.Track    `json:"track"`
	StartAt time.Duration `json:"start_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves player commands.
type Server struct {
	player core.Player
	logger *zap.Logger
	ctx    context.Context

	server   *http.Server
	listener net.Listener
	path     string
}

// NewServer creates a control server for player. Tracks started remotely
// load under ctx.
func NewServer(ctx context.Context, player core.Player, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{player: player, logger: logger, ctx: ctx}
}

// Router returns the command routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/state", s.handleState)
	r.Post("/play", s.handlePlay)
	r.Post("/pause", s.command(s.player.Pause))
	r.Post("/resume", s.command(s.player.Resume))
	r.Post("/stop", s.command(s.player.Stop))
	r.Post("/clear", s.command(s.player.Clear))
	r.Post("/mute", s.command(s.player.ToggleMute))
	r.Post("/clear-error", s.command(s.player.ClearError))
	r.Post("/seek", s.handleSeek)
	r.Post("/volume", s.handleVolume)

	return r
}

// Listen binds the unix socket at path. A stale socket left by a crashed
// process is replaced; a live one is an error.
func (s *Server) Listen(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if conn, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
			_ = conn.Close()
			return ErrAlreadyRunning
		}
		_ = os.Remove(path)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	s.listener = ln
	s.path = path
	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// Start serves in the background. Listen must be called first.
func (s *Server) Start() {
	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("control server stopped", zap.Error(err))
		}
	}()
}

// Shutdown stops the server and removes the socket.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	_ = s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) command(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn()
		s.logger.Debug("control command", zap.String("path", r.URL.Path))
		s.writeState(w)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid play request: "+err.Error())
		return
	}
	if req.Track.Source == "" {
		writeError(w, http.StatusBadRequest, "track source is required")
		return
	}
	if req.Track.ID == "" {
		req.Track.ID = req.Track.Source
	}
	s.player.PlayTrack(s.ctx, req.Track, req.StartAt)
	s.writeState(w)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	pos, err := time.ParseDuration(r.URL.Query().Get("position"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position")
		return
	}
	s.player.Seek(pos)
	s.writeState(w)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.ParseFloat(r.URL.Query().Get("level"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid volume level")
		return
	}
	s.player.SetVolume(level)
	s.writeState(w)
}

func (s *Server) writeState(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.player.State())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
