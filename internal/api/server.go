package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"equiminer/internal/journal"
	"equiminer/internal/miner"
	"equiminer/pkg/equihash"
)

// SolutionStore lists journaled submissions
type SolutionStore interface {
	Recent(limit int) ([]journal.Record, error)
}

// Options wires the server to the rest of the process
type Options struct {
	Miner    *miner.Miner
	Verifier *equihash.Verifier

	// Registry backs duplicate detection for POST /shares; an in-memory
	// registry is used when nil.
	Registry miner.Registry

	// Store serves GET /solutions; the route answers 503 when nil.
	Store SolutionStore

	// Gatherer is scraped by /metrics; the miner's collector is registered
	// on a fresh registry when nil.
	Gatherer prometheus.Gatherer
}

// Server is the REST surface of the miner
type Server struct {
	miner     *miner.Miner
	verifier  *equihash.Verifier
	registry  miner.Registry
	store     SolutionStore
	gatherer  prometheus.Gatherer
	startTime time.Time
	router    *gin.Engine
}

// New builds the server and its routes
func New(opts Options) (*Server, error) {
	if opts.Miner == nil {
		return nil, errors.New("api: miner is required")
	}
	if opts.Verifier == nil {
		v, err := equihash.NewVerifier(opts.Miner.Params())
		if err != nil {
			return nil, err
		}
		opts.Verifier = v
	}
	if opts.Registry == nil {
		opts.Registry = miner.NewMemoryRegistry()
	}
	if opts.Gatherer == nil {
		reg := prometheus.NewRegistry()
		if err := reg.Register(miner.NewCollector(opts.Miner.Speed(), opts.Miner.WorkerCount)); err != nil {
			return nil, err
		}
		opts.Gatherer = reg
	}

	s := &Server{
		miner:     opts.Miner,
		verifier:  opts.Verifier,
		registry:  opts.Registry,
		store:     opts.Store,
		gatherer:  opts.Gatherer,
		startTime: time.Now(),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	{
		// Status
		api.GET("/health", s.handleHealth)
		api.GET("/speed", s.handleSpeed)
		api.GET("/workers", s.handleWorkers)

		// Work source
		api.GET("/job", s.handleGetJob)
		api.POST("/job", s.handleNotify)
		api.DELETE("/job", s.handlePause)
		api.PUT("/nonce1", s.handleNonce1)

		// Verification
		api.POST("/verify", s.handleVerify)
		api.POST("/shares", s.handleShare)

		// Submissions
		api.GET("/solutions", s.handleSolutions)
		api.POST("/results", s.handleResult)
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	return router
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("API server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("API server stopped")
	return nil
}
