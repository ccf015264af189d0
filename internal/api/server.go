package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/commitlabs/commitment-service/internal/auth"
	"github.com/commitlabs/commitment-service/internal/config"
	"github.com/commitlabs/commitment-service/internal/observability/metrics"
	"github.com/commitlabs/commitment-service/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// CallerHeader carries the authenticated caller identity resolved by the
// fronting identity layer. Identity verification itself is out of scope
// here; the header value is trusted as-is.
const CallerHeader = "X-Caller"

type Server struct {
	cfg *config.ApiConfig
	svc *services.Service
}

func New(cfg *config.ApiConfig, svc *services.Service) *Server {
	return &Server{cfg: cfg, svc: svc}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(callerMiddleware)
	r.Use(requestMetrics)

	r.Get("/healthcheck", s.handleHealthcheck)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/commitments", s.handleCreateCommitment)
		r.Get("/commitments", s.handleListCommitments)
		r.Get("/commitments/{id}", s.handleGetCommitment)
		r.Put("/commitments/{id}/value", s.handleUpdateValue)
		r.Post("/commitments/{id}/settle", s.handleSettleCommitment)
		r.Post("/commitments/{id}/early-exit", s.handleEarlyExit)

		r.Post("/commitments/{id}/attestations", s.handleAttest)
		r.Get("/commitments/{id}/attestations", s.handleGetAttestations)
		r.Get("/commitments/{id}/health", s.handleGetHealthMetrics)
		r.Get("/commitments/{id}/score", s.handleCalculateScore)
		r.Get("/commitments/{id}/compliance", s.handleVerifyCompliance)
		r.Post("/commitments/{id}/fees", s.handleRecordFees)
		r.Post("/commitments/{id}/drawdown", s.handleRecordDrawdown)

		r.Get("/tokens", s.handleListTokenIDs)
		r.Get("/tokens/{id}", s.handleGetToken)
		r.Post("/tokens/{id}/transfer", s.handleTransfer)
		r.Post("/tokens/{id}/settle", s.handleSettleToken)
		r.Post("/tokens/transfers", s.handleBatchTransfer)
		r.Get("/owners/{owner}/tokens", s.handleTokensByOwner)
		r.Get("/owners/{owner}/balance", s.handleBalance)
	})

	return r
}

// Start runs the API server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		WriteTimeout: s.cfg.WriteTimeout,
		ReadTimeout:  s.cfg.ReadTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shut down api server")
		}
	}()

	log.Info().Msgf("Starting api server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func callerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if caller := r.Header.Get(CallerHeader); caller != "" {
			r = r.WithContext(auth.WithCaller(r.Context(), caller))
		}
		next.ServeHTTP(w, r)
	})
}

func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		routePath := chi.RouteContext(r.Context()).RoutePattern()
		metrics.ObserveHttpRequest(r.Method, routePath, ww.Status(), time.Since(start))
	})
}
