package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/janus-koncepts/wabot/engine/infra/monitoring"
	"github.com/janus-koncepts/wabot/pkg/config"
	"github.com/janus-koncepts/wabot/pkg/logger"
)

const (
	serverShutdownTimeout     = 5 * time.Second
	monitoringShutdownTimeout = 5 * time.Second
	httpIdleTimeout           = 60 * time.Second
)

type Server struct {
	cfg        *config.Config
	ctx        context.Context
	cancel     context.CancelFunc
	router     *gin.Engine
	monitoring *monitoring.Service
	knowledge  *Knowledge
	cleanups   []func()
}

// NewServer reads its configuration from ctx.
func NewServer(ctx context.Context) (*Server, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, errors.New("configuration missing from context")
	}
	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		cfg:    cfg,
		ctx:    serverCtx,
		cancel: cancel,
	}, nil
}

// Run assembles the service, serves until SIGINT or SIGTERM, then shuts down.
func (s *Server) Run() error {
	defer s.cleanup()
	if err := s.setup(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(s.ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.serve(ctx)
}

func (s *Server) setup() error {
	log := logger.FromContext(s.ctx)
	s.setupMonitoring()
	start := time.Now()
	s.knowledge = BuildKnowledge(s.ctx, s.cfg)
	s.cleanups = append(s.cleanups, func() {
		if err := s.knowledge.Close(context.WithoutCancel(s.ctx)); err != nil {
			log.Error("Failed to close knowledge index", "error", err)
		}
	})
	log.Info("Knowledge setup finished",
		"ready", s.knowledge.Answerer.Ready(),
		"duration", time.Since(start),
	)
	router, err := NewRouter(s.ctx, s.cfg, &Deps{
		Knowledge:  s.knowledge,
		Sender:     NewSender(s.cfg),
		Monitoring: s.monitoring,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	s.router = router
	return nil
}

func (s *Server) setupMonitoring() {
	log := logger.FromContext(s.ctx)
	mon := monitoring.NewMonitoringServiceWithFallback(s.ctx, &monitoring.Config{
		Enabled: s.cfg.Monitoring.Enabled,
		Path:    s.cfg.Monitoring.Path,
	})
	s.monitoring = mon
	if !mon.IsInitialized() {
		return
	}
	mon.SetAsGlobal()
	s.cleanups = append(s.cleanups, func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), monitoringShutdownTimeout)
		defer cancel()
		if err := mon.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown monitoring service", "error", err)
		}
	})
}

func (s *Server) serve(ctx context.Context) error {
	log := logger.FromContext(s.ctx)
	srv := s.createHTTPServer()
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("http://%s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Debug("Received shutdown signal, initiating graceful shutdown")
	}
	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server shutdown completed successfully")
	return nil
}

func (s *Server) createHTTPServer() *http.Server {
	sc := s.cfg.Server
	return &http.Server{
		Addr:         net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  httpIdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return s.ctx
		},
	}
}

// cleanup runs in reverse registration order.
func (s *Server) cleanup() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
	s.cancel()
}
