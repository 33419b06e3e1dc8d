// Package server exposes the stylist workflows over HTTP: an NDJSON
// streaming chat endpoint, a websocket variant, a non-streaming
// recommendation endpoint, and a liveness probe.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/graph"
	logx "github.com/brscn2/aesthetiq-sub001/pkg/logger"
)

const (
	defaultStreamBuffer = 64
	healthTimeout       = 2 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Config controls the HTTP listener.
type Config struct {
	Addr         string
	StreamBuffer int
}

// HealthCheck is one dependency probe for the liveness endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server routes HTTP traffic onto the conversation and recommender
// runners. It holds no per-request state; every handler is safe for
// concurrent use.
type Server struct {
	addr         string
	streamBuffer int
	conversation graph.ConversationRunner
	recommender  graph.RecommenderRunner
	checks       []HealthCheck
	log          zerolog.Logger
}

func New(cfg Config, runners *graph.Runners, checks ...HealthCheck) (*Server, error) {
	if runners == nil || runners.Conversation == nil || runners.Recommender == nil {
		return nil, errors.New("server: both runners are required")
	}
	buffer := cfg.StreamBuffer
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	return &Server{
		addr:         cfg.Addr,
		streamBuffer: buffer,
		conversation: runners.Conversation,
		recommender:  runners.Recommender,
		checks:       checks,
		log:          logx.With("server"),
	}, nil
}

// Handler builds the route table. Split out from Run so tests can drive
// the mux through httptest without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /v1/chat/ws", s.handleChatWS)
	mux.HandleFunc("POST /v1/recommend", s.handleRecommend)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return requestLog(s.log, cors(mux))
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info().Str("addr", s.addr).Msg("http server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("http server stopped")
	return nil
}
