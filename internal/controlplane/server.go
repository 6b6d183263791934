package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openmined/fimsync/internal/controlplane/middleware"
	"github.com/openmined/fimsync/internal/utils"
)

type Config struct {
	Addr      string
	AuthToken string
	AgentID   string
}

// Server is the local HTTP API of the agent
type Server struct {
	config *Config
	server *http.Server
}

// New builds the server. tr may be nil when the agent runs without a
// manager connection.
func New(config *Config, engine SyncEngine, tr TransportStats, store StoreStats) (*Server, error) {
	h := &handlers{
		agentID:   config.AgentID,
		started:   time.Now(),
		engine:    engine,
		transport: tr,
		store:     store,
		host:      hostInfo(),
	}

	routes, err := setupRoutes(h, &routeConfig{
		Auth: middleware.TokenAuthConfig{Token: config.AuthToken},
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		config: config,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           routes,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled. A bind failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("control plane listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	slog.Info("control plane start", "addr", fmt.Sprintf("http://%s", ln.Addr()), "token", utils.MaskSecret(s.config.AuthToken))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control plane serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
