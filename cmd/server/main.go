// cmd/server/main.go
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/avagner/summit/internal/auth"
	"github.com/avagner/summit/internal/cache"
	"github.com/avagner/summit/internal/database"
	"github.com/avagner/summit/internal/handlers"
	"github.com/avagner/summit/internal/lobby"
	"github.com/avagner/summit/internal/realtime"
	"github.com/avagner/summit/internal/sweeper"
)

func main() {
	logger := logrus.New()
	if os.Getenv("SUMMIT_ENV") == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	auth.Init()

	ctx := context.Background()

	store, err := database.Connect(ctx)
	if err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatalf("failed to apply schema: %v", err)
	}

	sessions, err := cache.Connect(ctx)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer sessions.Close()

	reg := realtime.NewRegistry()
	bus := realtime.NewBus(reg, logger)
	coord := lobby.NewCoordinator(store, sessions, reg, bus, logger)
	srv := handlers.NewServer(coord, bus, logger)

	sw := sweeper.New(store, reg, logger)
	sw.Start()

	addr := os.Getenv("SUMMIT_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatalf("failed to listen on %s: %v", addr, err)
	}

	server := &http.Server{
		Handler:     srv.Routes(),
		ReadTimeout: 10 * time.Second,
	}

	logger.Infof("summit lobby service listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		logger.Errorf("server exited: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	sw.Stop()
	reg.CloseAll()
}
