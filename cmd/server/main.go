package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/MJE43/mapgame-session-go/internal/app"
	"github.com/MJE43/mapgame-session-go/internal/config"
)

func main() {
	log.Printf("Starting mapgame session server (Go %s)...", runtime.Version())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	addr := flag.String("addr", cfg.ListenAddr, "listen address (default: MAPGAME_LISTEN_ADDR or :8080)")
	flag.Parse()
	cfg.ListenAddr = *addr

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	if err := m.Start(ctx); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
	log.Printf("Session API ready at http://%s (backend: %s)", m.Addr(), cfg.SessionBackend)

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := m.Shutdown(shutdownCtx, "signal"); err != nil {
		log.Printf("shutdown error: %v", err)
		os.Exit(1)
	}
	log.Println("Server exited normally")
}
