package pricinghttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reprice/internal/ledger"
	"reprice/internal/logger"
)

// Server exposes the pricing HTTP API (cycle triggers + decision review).
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig describes the pricing HTTP server dependencies.
type ServerConfig struct {
	Addr    string
	Service PricingService
	Ledger  *ledger.Store
	Traces  *ledger.CycleTraceStore
}

// NewServer builds the pricing HTTP server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil || cfg.Ledger == nil {
		return nil, errors.New("pricing http server requires service and ledger")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	pricingRouter := NewRouter(cfg.Service, cfg.Ledger, cfg.Traces)
	pricingRouter.Register(router.Group("/api/pricing"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start runs the HTTP server until ctx cancels or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
