// Command seed generates demo moderation traffic against a development database.
package main

import (
	"context"
	"flag"
	"log"

	"warden/internal/bootstrap"
	"warden/internal/config"
	"warden/internal/detectors"
	"warden/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of synthetic users")
	numEvents := flag.Int("events", 300, "Number of content events to evaluate")
	numReports := flag.Int("reports", 60, "Number of reports to file")
	numAttachments := flag.Int("attachments", 20, "Number of pending attachments")
	dist := flag.String("dist", "default", "Traffic distribution (default, calm, raid, spam)")
	shouldClean := flag.Bool("clean", true, "Clear moderation tables before seeding")
	seedVal := flag.Int64("seed", 0, "Random seed, 0 for random")
	flag.Parse()

	log.Println("🌱 Moderation Seeder")
	log.Println("====================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production environment")
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rdb.Close() }()

	engine, err := bootstrap.BuildEngine(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to build moderation engine: %v", err)
	}

	lexicon := detectors.DefaultLexicon()
	if cfg.ProfanityLexicon != "" {
		if lexicon, err = detectors.ParseLexicon(cfg.ProfanityLexicon); err != nil {
			log.Fatalf("Failed to parse lexicon: %v", err)
		}
	}

	s := seed.NewSeeder(db, engine.Pipeline, engine.Cases, engine.Attachments).
		WithContentSources(lexicon, detectors.ParseDenylist(cfg.LinkDenylist))
	sum, err := s.Run(ctx, seed.Options{
		NumUsers:       *numUsers,
		NumEvents:      *numEvents,
		NumReports:     *numReports,
		NumAttachments: *numAttachments,
		Distribution:   *dist,
		ShouldClean:    *shouldClean,
		Seed:           *seedVal,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Done: %d users, %d events (%d flagged), %d reports, %d attachments",
		sum.Users, sum.Events, sum.Flagged, sum.Reports, sum.Attachments)
}
