// Package server assembles the jrpc HTTP server from a Config.
package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	"github.com/mnehpets/jrpc/auth"
	"github.com/mnehpets/jrpc/endpoint"
	"github.com/mnehpets/jrpc/internal/config"
	"github.com/mnehpets/jrpc/internal/demo"
	"github.com/mnehpets/jrpc/internal/log"
	"github.com/mnehpets/jrpc/internal/metrics"
	"github.com/mnehpets/jrpc/internal/telemetry"
	"github.com/mnehpets/jrpc/jsonrpc"
	"github.com/mnehpets/jrpc/middleware"
)

const HealthPath = "/healthz"

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg       config.Config
	logger    log15.Logger
	collector *metrics.Collector
	rpc       *jsonrpc.JSONRPCEndpoint
	mux       *http.ServeMux
}

// New builds the handler tree for cfg. It contacts the OIDC issuer when
// one is configured.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		logger: log.NewLog("server"),
		mux:    http.NewServeMux(),
	}

	opts := []jsonrpc.Option{
		jsonrpc.WithBodyLimit(cfg.BodyLimit),
		jsonrpc.WithErrorDetail(cfg.ErrorDetail),
	}
	if cfg.EnableMetrics {
		s.collector = metrics.NewCollector()
		opts = append(opts, jsonrpc.WithObserver(s.collector))
	}
	s.rpc = demo.NewEndpoint(log.NewLog("jsonrpc"), opts...)

	processors, err := s.processors(ctx)
	if err != nil {
		return nil, err
	}
	s.mux.Handle(cfg.Path, s.rpc.Handler(processors...))
	s.mux.Handle(HealthPath, endpoint.HandleFunc(health))
	return s, nil
}

func (s *Server) processors(ctx context.Context) ([]endpoint.Processor, error) {
	headers := []middleware.SecurityHeadersOption{}
	if len(s.cfg.CORSOrigins) > 0 {
		headers = append(headers, middleware.WithCORS(s.cfg.CORSOrigins...))
	}
	processors := []endpoint.Processor{
		middleware.NewRequestLogProcessor(log.NewLog("http")),
		middleware.NewSecurityHeadersProcessor(headers...),
	}

	switch {
	case len(s.cfg.BasicUsers) > 0:
		users, err := auth.ParseUsers(s.cfg.BasicUsers)
		if err != nil {
			return nil, errors.Wrap(err, "basic users")
		}
		processors = append(processors, auth.NewBasicProcessor(users))
		s.logger.Info("basic authentication enabled", "users", len(users))
	case s.cfg.OIDCIssuer != "":
		v, err := auth.NewVerifier(ctx, s.cfg.OIDCIssuer, s.cfg.OIDCClientID)
		if err != nil {
			return nil, err
		}
		processors = append(processors, auth.NewBearerProcessor(v))
		s.logger.Info("bearer authentication enabled", "issuer", s.cfg.OIDCIssuer)
	}
	return processors, nil
}

func health(_ http.ResponseWriter, _ *http.Request, _ struct{}) (endpoint.Renderer, error) {
	return &endpoint.StringRenderer{Body: "ok\n"}, nil
}

// Handler serves the RPC endpoint and the health check.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// MetricsHandler serves Prometheus metrics, or is nil when metrics are
// disabled.
func (s *Server) MetricsHandler() http.Handler {
	if s.collector == nil {
		return nil
	}
	return s.collector.Handler()
}

// Methods lists the served RPC methods.
func (s *Server) Methods() []string {
	return s.rpc.Methods()
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	servers := []*http.Server{{Addr: s.cfg.Listen, Handler: s.Handler()}}
	if h := s.MetricsHandler(); h != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", h)
		servers = append(servers, &http.Server{Addr: s.cfg.MetricsListen, Handler: mux})
		s.logger.Info("Prometheus metrics enabled", "addr", s.cfg.MetricsListen)
	}

	errc := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- errors.Wrapf(err, "listen %s", srv.Addr)
			}
		}(srv)
	}
	s.logger.Info("serving JSON-RPC", "addr", s.cfg.Listen, "path", s.cfg.Path, "methods", len(s.Methods()))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown failed", "addr", srv.Addr, "err", err)
		}
	}
	return runErr
}

// Start configures logging and tracing from cfg, then runs the server until
// ctx is done.
func Start(ctx context.Context, cfg config.Config, version string) error {
	logger := log.NewLog("")
	lvl, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn("invalid log level, falling back to INFO", "level", cfg.LogLevel)
		lvl = log15.LvlInfo
	}
	log.SetLevel(lvl)

	if cfg.EnableTracing {
		shutdown, err := telemetry.InitTracer(os.Stderr, version)
		if err != nil {
			return errors.Wrap(err, "init tracer")
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("failed to flush traces", "err", err)
			}
		}()
	}

	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
