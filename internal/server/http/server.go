package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/droverhq/drover/internal/runtime"
	"github.com/droverhq/drover/internal/server/http/controllers"
	tasksvc "github.com/droverhq/drover/internal/services/tasks"
	logpkg "github.com/droverhq/drover/pkg/log"
)

// Server serves the task API over HTTP.
type Server struct {
	rt       *runtime.Runtime
	srv      *http.Server
	lis      net.Listener
	logger   logpkg.Logger
	registry *controllers.ControllerRegistry
}

// New creates an HTTP server wired to the runtime's task service.
func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	logger = logger.With(logpkg.Component("http"))

	svc := tasksvc.NewWithLogger(rt, logger.With(logpkg.Component("tasks")))
	registry := controllers.NewControllerRegistry(rt, svc)

	mux := http.NewServeMux()
	registry.RegisterAllRoutes(mux)

	return &Server{
		rt:       rt,
		srv:      &http.Server{Handler: cors(mux)},
		logger:   logger,
		registry: registry,
	}
}

// Service exposes the tasks service backing this server.
func (s *Server) Service() *tasksvc.Service { return s.registry.Service() }

// ListenAndServe serves until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
