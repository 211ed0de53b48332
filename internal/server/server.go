package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	v1 "github.com/tandemlabs/tandem/internal/api/v1"
	"github.com/tandemlabs/tandem/internal/api/ws"
	"github.com/tandemlabs/tandem/internal/config"
	"github.com/tandemlabs/tandem/internal/realtime"
	"github.com/tandemlabs/tandem/internal/server/middleware"
	"github.com/tandemlabs/tandem/internal/store/postgres"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	store      *postgres.Store
	engine     *realtime.Engine
	cfg        *config.Config
}

// New creates a Server with all routes wired: the REST snapshot API under
// /api/v1 and the realtime websocket at /ws. The context bounds the rate
// limiter cleanup goroutines.
func New(ctx context.Context, cfg *config.Config, store *postgres.Store, engine *realtime.Engine) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		store:  store,
		engine: engine,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// REST snapshot API: JWT-authenticated, rate-limited. Live mutations go
	// over the websocket; these routes back initial render and resync. The
	// auth routes sit outside the bearer group so credentials can be
	// exchanged for the tokens everything else requires.
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, 100, 200))

		authConfig := huma.DefaultConfig("Tandem Auth API", "1.0.0")
		authConfig.Servers = []*huma.Server{{URL: "/api/v1"}}
		// The main API owns the docs endpoints.
		authConfig.OpenAPIPath = ""
		authConfig.DocsPath = ""
		authConfig.SchemasPath = ""
		v1.RegisterAuthRoutes(humachi.New(r, authConfig), store, cfg.JWT)

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Auth(cfg.JWT.Secret))
			pr.Use(middleware.RateLimit(ctx, 50, 100))

			apiConfig := huma.DefaultConfig("Tandem API", "1.0.0")
			apiConfig.Servers = []*huma.Server{{URL: "/api/v1"}}
			registerAPIRoutes(humachi.New(pr, apiConfig), store)
		})
	})

	// Realtime websocket. The handler authenticates itself (bearer header or
	// ?token= for browsers), so no Auth middleware here.
	wsHandler := ws.NewHandler(engine, cfg.JWT.Secret)
	router.Get("/ws", wsHandler.Serve)

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
