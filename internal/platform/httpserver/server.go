package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	grouppollservice "pollbot/contexts/community-experience/group-poll-service"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "pollbot/internal/platform/httpserver/docs"
)

const (
	readHeaderTimeout = 10 * time.Second
	maxWebhookBody    = 1 << 20
)

type Server struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	addr          string
	http          *http.Server
	groupPoll     grouppollservice.Module
	channelSecret string
}

func New(
	groupPoll grouppollservice.Module,
	channelSecret string,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:           http.NewServeMux(),
		logger:        logger,
		addr:          addr,
		groupPoll:     groupPoll,
		channelSecret: channelSecret,
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return s.http.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.HandleFunc("POST /{$}", s.handleHealth)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /webhook", s.handleHealth)
	s.mux.HandleFunc("GET /webhook/", s.handleHealth)
	s.mux.HandleFunc("POST /webhook", s.handleGroupPollWebhook)
	s.mux.HandleFunc("POST /webhook/", s.handleGroupPollWebhook)
	s.mux.HandleFunc("GET /tasks/remind-sweep", s.handleGroupPollSweep)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
