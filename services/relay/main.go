package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chatverso/internal/config"
	"github.com/chatverso/internal/handler"
	"github.com/chatverso/internal/logger"
	"github.com/chatverso/internal/metrics"
	"github.com/chatverso/internal/middleware"
	"github.com/chatverso/internal/startup"
	"github.com/chatverso/internal/ws"
)

func main() {
	logger.SetPrefix("relay")
	logger.Info("starting relay")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	defer logger.Flush(2 * time.Second)

	store := startup.OpenStore(cfg.RedisURL, cfg.ReplyCacheSize, cfg.RedisMaxWait)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("store close: %v", err)
		}
	}()

	if cfg.MetricsEnabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			logger.Errorf("metrics register: %v", err)
			os.Exit(1)
		}
	}

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(store, cfg.MaxWSConnections, nil)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		if err := hub.Run(hubCtx); err != nil {
			logger.Errorf("hub: %v", err)
			os.Exit(1)
		}
	}()

	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins, ws.ClientOptions{
		SendBufferSize: cfg.WSSendBufferSize,
		MaxMessageSize: cfg.WSMaxMessageSize,
		RateLimit:      cfg.WSRateLimitRPS,
		RateBurst:      cfg.WSRateLimitBurst,
	})

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	r.Use(middleware.RequestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: splitOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	statusH := handler.NewStatusHandler(hub, cfg)
	r.Get("/health", statusH.Health)
	r.Get("/limits", statusH.Limits)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}
	r.With(middleware.RateLimitByIP(cfg.UpgradeRateRPS, cfg.UpgradeRateBurst)).Get("/ws", wsH.ServeWS)

	// No write timeout: /ws connections are long lived and manage their own deadlines.
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("relay listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
