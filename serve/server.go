package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	botmaster "github.com/everydev1618/botmaster"
)

// Config holds server configuration.
type Config struct {
	Addr   string
	WebZip string
}

// Deps are the control-plane collaborators the handlers act on.
type Deps struct {
	Fleet        *botmaster.Fleet
	Sessions     *botmaster.SessionManager
	Store        Store
	Query        *botmaster.QueryClient
	NewTransport botmaster.TransportFactory
	World        *botmaster.WorldPool
	Raycast      botmaster.Raycaster
	Decoder      *botmaster.TextDecoder
	Names        *botmaster.Names
}

// Server is the HTTP control plane: bot, server, and provider CRUD plus
// the dashboard.
type Server struct {
	deps      Deps
	cfg       Config
	startedAt time.Time
}

// New creates a new Server.
func New(deps Deps, cfg Config) *Server {
	return &Server{deps: deps, cfg: cfg}
}

// Start registers routes and listens for HTTP requests. It blocks until
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = time.Now()

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: corsMiddleware(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server started", "addr", s.cfg.Addr)
		fmt.Printf("Dashboard: http://localhost%s/web/\n", s.cfg.Addr)
		fmt.Printf("API:       http://localhost%s/api/dashboard/runtime\n", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down api server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	return nil
}

// registerRoutes adds all API and frontend routes to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Bots
	mux.HandleFunc("GET /api/bot/list", s.handleBotList)
	mux.HandleFunc("POST /api/bot/create", s.handleBotCreate)
	mux.HandleFunc("POST /api/bot/delete", s.handleBotDelete)
	mux.HandleFunc("POST /api/bot/set_password", s.handleBotSetPassword)
	mux.HandleFunc("POST /api/bot/reconnect", s.handleBotReconnect)
	mux.HandleFunc("POST /api/bot/enable_llm", s.handleBotEnableLLM)
	mux.HandleFunc("POST /api/bot/disable_llm", s.handleBotDisableLLM)
	mux.HandleFunc("POST /api/bot/update_prompt", s.handleBotUpdatePrompt)

	// Servers
	mux.HandleFunc("GET /api/server/list", s.handleServerList)
	mux.HandleFunc("POST /api/server/add", s.handleServerAdd)
	mux.HandleFunc("POST /api/server/delete", s.handleServerDelete)
	mux.HandleFunc("POST /api/server/query", s.handleServerQuery)

	// LLM providers
	mux.HandleFunc("GET /api/llm/list", s.handleProviderList)
	mux.HandleFunc("POST /api/llm/create", s.handleProviderCreate)
	mux.HandleFunc("POST /api/llm/update", s.handleProviderUpdate)
	mux.HandleFunc("POST /api/llm/delete", s.handleProviderDelete)
	mux.HandleFunc("GET /api/llm/get", s.handleProviderGet)

	// Dashboard
	mux.HandleFunc("GET /api/dashboard/runtime", s.handleDashboardRuntime)
	mux.HandleFunc("GET /api/dashboard/bot_stats", s.handleDashboardBotStats)
	mux.HandleFunc("GET /api/dashboard/server_stats", s.handleDashboardServerStats)

	// Frontend
	mux.Handle("GET /web/", http.StripPrefix("/web/", s.webHandler()))
}

// corsMiddleware adds permissive CORS headers for development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
