package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	actx "go.hackfix.me/strata/app/context"
	"go.hackfix.me/strata/db/migrator"
	"go.hackfix.me/strata/web/server/api/util"
	"go.hackfix.me/strata/web/server/api/v1"
	"go.hackfix.me/strata/web/server/middleware"
	"go.hackfix.me/strata/web/server/types"
)

// Pinger checks the database connection.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server is a wrapper around http.Server with some custom behavior.
type Server struct {
	*http.Server
	logger *slog.Logger
}

// Deps are the dependencies of the server handlers.
type Deps struct {
	Ledger  migrator.Ledger
	DB      Pinger
	Metrics *Metrics
	// Summary is the result of the migrations pass run before serving.
	Summary *migrator.Summary
}

// New returns a new web Server instance that will listen on addr.
func New(appCtx *actx.Context, addr string, deps Deps) *Server {
	logger := appCtx.Logger.With("component", "web-server")

	return &Server{
		Server: &http.Server{
			Handler:           SetupHandlers(deps, logger),
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      time.Minute,
		},
		logger: logger,
	}
}

// ListenAndServe starts the HTTP server. It stores the actual listen address,
// which is convenient when the address is dynamically determined by the
// system (e.g. ':0').
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		//nolint:wrapcheck // This is fine.
		return err
	}

	s.Addr = ln.Addr().String()
	s.logger.Info("started listener", "address", s.Addr)

	//nolint:wrapcheck // This is fine.
	return s.Serve(ln)
}

// SetupHandlers configures the server HTTP handlers.
func SetupHandlers(deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", api.SetupHandlers(deps.Ledger, logger)))
	mux.Handle("GET /healthz", healthHandler(deps, logger))
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
		return middleware.Chain(
			middleware.Logger(logger, quietPaths...),
			middleware.Instrument(deps.Metrics),
			mux,
		)
	}

	return middleware.Logger(logger, quietPaths...)(mux)
}

// quietPaths are polled by orchestrators and scrapers.
var quietPaths = []string{"/healthz", "/metrics"}

func healthHandler(deps Deps, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := deps.DB.PingContext(ctx); err != nil {
				logger.Warn("database health check failed", "error", err.Error())
				_ = util.WriteJSON(w, types.NewUnavailableError("database is unreachable"))
				return
			}
		}

		resp := &types.HealthResponse{Response: *types.NewResponse(http.StatusOK, nil)}
		if deps.Summary != nil {
			resp.PassID = deps.Summary.PassID
			resp.Applied = deps.Summary.Applied()
		}
		_ = util.WriteJSON(w, resp)
	})
}
