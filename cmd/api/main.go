package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/config"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/handler"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/service/hub"
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/service/registry"
)

// expirySweepInterval is the safety-net sweep beside the per-session
// expiry timers.
const expirySweepInterval = time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	broadcast := hub.New()
	reg := registry.New(registry.Config{
		MaxConcurrentSessions: cfg.Limits.MaxConcurrentSessions,
		MaxUsersPerSession:    cfg.Limits.MaxUsersPerSession,
		SessionTimeout:        cfg.Limits.SessionTimeout,
		ScrumMasterGrace:      cfg.Limits.ScrumMasterGrace,
	}, broadcast.Publish)

	go sweepExpired(ctx, reg)

	router := handler.NewRouter(reg, broadcast, cfg.Server.AllowedOrigins)
	startServer(ctx, cfg.Server, router)
}

func sweepExpired(ctx context.Context, reg *registry.Registry) {
	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			reg.ExpireInactive(now)
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("planning poker backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
