// Package api exposes the resolver over HTTP: the two caller-facing
// operations plus health and metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pstastny/prima2g/internal/log"
	"github.com/pstastny/prima2g/internal/resolver"
	"github.com/pstastny/prima2g/internal/stream"
)

// Resolver is the pipeline surface the HTTP layer depends on. Satisfied by
// *resolver.Resolver; tests substitute stubs.
type Resolver interface {
	ResolveCatchup(ctx context.Context, channelKey string, targetUTC time.Time) (stream.Descriptor, error)
	ResolveLive(ctx context.Context, channelKey string) (stream.Descriptor, error)
}

// Options configures the HTTP surface.
type Options struct {
	RateLimitEnabled bool
	RateLimitRPM     int
}

// Server is the HTTP API for the resolver daemon.
type Server struct {
	resolver Resolver
	opts     Options
}

// New returns an API server for the given resolver.
func New(res Resolver, opts Options) *Server {
	if opts.RateLimitRPM <= 0 {
		opts.RateLimitRPM = 600
	}
	return &Server{resolver: res, opts: opts}
}

// Router builds the chi router with the canonical middleware stack.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(accessLog)
	if s.opts.RateLimitEnabled {
		r.Use(rateLimit(s.opts.RateLimitRPM))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/live/{channel}", s.handleLive)
		r.Get("/catchup/{channel}", s.handleCatchup)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLive resolves a live channel: GET /api/v1/live/{channel}.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	desc, err := s.resolver.ResolveLive(r.Context(), channel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// handleCatchup resolves an archived programme:
// GET /api/v1/catchup/{channel}?ts=<unix seconds, UTC>.
func (s *Server) handleCatchup(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	ts, err := strconv.ParseInt(r.URL.Query().Get("ts"), 10, 64)
	if err != nil || ts <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "invalid_timestamp",
			Message: "query parameter ts must be a positive unix timestamp",
		})
		return
	}
	desc, err := s.resolver.ResolveCatchup(r.Context(), channel, time.Unix(ts, 0).UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// errorBody is the JSON error envelope: a stable machine code plus the
// short user-facing message. Diagnostic detail stays in the logs.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rerr *resolver.Error
	if !errors.As(err, &rerr) {
		l := log.WithComponentFromContext(r.Context(), "api")
		l.Error().Err(err).Msg("unclassified resolution error")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"})
		return
	}
	writeJSON(w, statusForKind(rerr.Kind), errorBody{Error: string(rerr.Kind), Message: rerr.Message})
}

// statusForKind maps resolution error kinds onto HTTP statuses.
func statusForKind(kind resolver.Kind) int {
	switch kind {
	case resolver.KindMissingCredentials, resolver.KindLoginFailed:
		return http.StatusUnauthorized
	case resolver.KindChannelNotFound, resolver.KindProgramNotFound:
		return http.StatusNotFound
	case resolver.KindProgramNotPlayable:
		return http.StatusGone
	case resolver.KindDirectoryUnavailable, resolver.KindStreamUnavailable, resolver.KindProviderError:
		return http.StatusBadGateway
	case resolver.KindNetworkTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
