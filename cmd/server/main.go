// Command server is the entry point for the Warden moderation API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warden/internal/bootstrap"
	"warden/internal/config"
	"warden/internal/middleware"
	"warden/internal/observability"
	"warden/internal/server"
)

// @title Warden Moderation API
// @version 1.0
// @description Content moderation: detectors, policy, cases, appeals, restrictions and reputation.

// @contact.name API Support
// @contact.email support@warden.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(cfg.Tracing("warden-server"))
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	middleware.InitMiddleware(cfg)

	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	engine, err := bootstrap.BuildEngine(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to build moderation engine: %v", err)
	}

	srv := server.NewServer(engine)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}
