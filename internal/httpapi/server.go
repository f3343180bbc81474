package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dyike/MarketPulse/internal/dashboard"
	"github.com/dyike/MarketPulse/internal/models"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 1 << 12
)

// Board is the part of the dashboard the API drives.
type Board interface {
	State() models.RequestState
	Fetch(ctx context.Context, symbol string) models.RequestState
	Refresh(ctx context.Context) models.RequestState
	SetAutoRefresh(enabled bool)
	AutoRefresh() bool
	RefreshInterval() time.Duration
}

type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

type fetchRequest struct {
	Symbol string `json:"symbol" validate:"required,max=20"`
}

type autoRefreshRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type stateResponse struct {
	models.RequestState
	AutoRefresh     bool    `json:"autoRefresh"`
	RefreshInterval float64 `json:"refreshIntervalSeconds"`
}

type watchlistEntry struct {
	dashboard.Preset
	Active bool `json:"active"`
}

type Server struct {
	board    Board
	router   *mux.Router
	validate *validator.Validate
	log      zerolog.Logger

	// base outlives requests so accepted fetches finish after the reply.
	base context.Context
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.log = logger
	}
}

// WithBaseContext sets the context background fetches run under.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) {
		if ctx != nil {
			s.base = ctx
		}
	}
}

func NewServer(board Board, opts ...Option) *Server {
	s := &Server{
		board:    board,
		router:   mux.NewRouter(),
		validate: validator.New(),
		log:      log.With().Str("component", "httpapi").Logger(),
		base:     context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	s.router.HandleFunc("/api/fetch", s.handleFetch).Methods(http.MethodPost)
	s.router.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/api/auto-refresh", s.handleAutoRefresh).Methods(http.MethodPut)
	s.router.HandleFunc("/api/watchlist", s.handleWatchlist).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, "route not found", nil)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("http api shut down")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "Ok", map[string]string{"status": string(s.board.State().Status)})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "Ok", s.snapshot())
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if !s.decode(w, r, &req) {
		return
	}
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		writeJSON(w, http.StatusBadRequest, "symbol is required", nil)
		return
	}

	go s.board.Fetch(s.base, symbol)
	writeJSON(w, http.StatusAccepted, "Accepted", map[string]string{"symbol": symbol})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	state := s.board.State()
	if state.Quote == nil {
		writeJSON(w, http.StatusConflict, "no quote loaded", nil)
		return
	}
	if state.Loading() {
		writeJSON(w, http.StatusConflict, "fetch in progress", nil)
		return
	}

	go s.board.Refresh(s.base)
	writeJSON(w, http.StatusAccepted, "Accepted", map[string]string{"symbol": state.LoadedSymbol()})
}

func (s *Server) handleAutoRefresh(w http.ResponseWriter, r *http.Request) {
	var req autoRefreshRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.board.SetAutoRefresh(*req.Enabled)
	writeJSON(w, http.StatusOK, "Ok", s.snapshot())
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	active := s.board.State().LoadedSymbol()
	presets := dashboard.Watchlist()
	entries := make([]watchlistEntry, 0, len(presets))
	for _, p := range presets {
		entries = append(entries, watchlistEntry{Preset: p, Active: strings.EqualFold(p.Symbol, active)})
	}
	writeJSON(w, http.StatusOK, "Ok", entries)
}

func (s *Server) snapshot() stateResponse {
	return stateResponse{
		RequestState:    s.board.State(),
		AutoRefresh:     s.board.AutoRefresh(),
		RefreshInterval: s.board.RefreshInterval().Seconds(),
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, err.Error(), nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(Response{Code: code, Msg: msg, Data: data}); err != nil {
		log.Error().Err(err).Str("component", "httpapi").Msg("write response")
	}
}
