// Package gateway is the HTTP/WebSocket adapter: a chi-routed REST
// surface over the compiler and script store, plus the websocket hub
// that streams one world snapshot per tick. No simulation logic lives
// here; handlers translate between wire shapes and core types and
// defer everything else to the engine, compiler and persistence
// packages.
package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/caolo/simcore/auth"
	"github.com/caolo/simcore/config"
	"github.com/caolo/simcore/persistence"
	"github.com/caolo/simcore/pkg/monitoring"
	"github.com/caolo/simcore/world"
)

// Server bundles everything the gateway's handlers close over.
// WorldMutex is held for read by every handler that inspects World and
// for write by the tick loop between Forward calls, so a snapshot or
// terrain read never observes a tick partway through its apply stage.
type Server struct {
	World      *world.World
	WorldMutex *sync.RWMutex
	Store      *persistence.Store
	Validator  *auth.Validator
	Hub        *Hub
	Log        *zap.Logger
	Metrics    *monitoring.Metrics
}

// NewRouter builds the chi router for the gateway's full route table.
// Read routes (health, schema, terrain, world stream) are reachable
// without a bearer token; mutating routes (compile, commit, register,
// user update) require one via auth.RequireUser.
func NewRouter(s *Server, cfg *config.SecurityConfig, validator *auth.Validator) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(metricsMiddleware(s.Metrics))

	if cfg.CORSEnabled {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: cfg.CORSAllowedMethods,
			AllowedHeaders: cfg.CORSAllowedHeaders,
		}).Handler)
	}

	r.Use(auth.Middleware(validator))
	r.Use(rateLimitMiddleware(20, 40))

	r.Get("/health", s.handleHealth)
	r.Get("/schema", s.handleSchema)
	r.Get("/terrain", s.handleTerrain)
	r.Get("/world", s.Hub.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Use(rateLimitMiddleware(5, 10))
		r.Post("/compile", s.handleCompile)
		r.Post("/scripts/commit", s.handleScriptCommit)
		r.Put("/user", s.handleUserUpdate)
		r.Post("/user/register", s.handleUserRegister)
	})

	return r
}

// metricsMiddleware records one HTTP observation per request, keyed
// by the route pattern chi resolved (not the raw path, so
// high-cardinality ids like script ids don't blow up label sets).
func metricsMiddleware(m *monitoring.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			m.ObserveHTTPRequest(route, r.Method, ww.Status(), time.Since(start))
		})
	}
}
