// Command scanner runs the stream consumers: media safety scanning, ingress
// text evaluation and the periodic reputation decay sweep.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"warden/internal/bootstrap"
	"warden/internal/config"
	"warden/internal/observability"
	"warden/internal/trust"

	"golang.org/x/sync/errgroup"
)

const sweepBatch = 500

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	noMedia := flag.Bool("no-media", false, "skip the media scan worker")
	noText := flag.Bool("no-text", false, "skip the ingress text consumer")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(cfg.Tracing("warden-scanner"))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: false})
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = rdb.Close()
	}()

	engine, err := bootstrap.BuildEngine(cfg, db, rdb)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if !*noMedia {
		worker, err := engine.ScanWorker()
		if err != nil {
			return err
		}
		g.Go(func() error { return worker.Run(gctx) })
	}
	if !*noText {
		consumer := engine.TextConsumer()
		g.Go(func() error { return consumer.Run(gctx) })
	}
	if cfg.ReputationSweepMinutes > 0 {
		interval := time.Duration(cfg.ReputationSweepMinutes) * time.Minute
		g.Go(func() error { return sweep(gctx, engine.Reputation, interval) })
	}

	log.Println("scanner started")
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	log.Println("scanner stopped")
	return nil
}

func sweep(ctx context.Context, rep *trust.ReputationService, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := rep.DecaySweep(ctx, time.Now().UTC(), sweepBatch)
			if err != nil {
				log.Printf("reputation decay sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("reputation decay applied to %d users", n)
			}
		}
	}
}
