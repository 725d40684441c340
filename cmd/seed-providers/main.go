package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"ai_orchestrator/internal/config"
	"ai_orchestrator/internal/storage"
)

func main() {
	fmt.Println("AI Orchestrator - Seed System Providers")

	deactivateMissing := flag.Bool("deactivate-missing", false, "deactivate stored providers that are not in the defaults file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("Failed to load configuration: %v", err)
	}
	if cfg.Database.URL == "" {
		fail("DATABASE_URL must be set")
	}
	if cfg.DefaultsFile == "" {
		fail("DEFAULTS_FILE must be set")
	}

	defaults, err := config.LoadDefaults(cfg.DefaultsFile)
	if err != nil {
		fail("Failed to load defaults: %v", err)
	}
	if len(defaults.SystemProviders) == 0 {
		fail("%s declares no system providers", cfg.DefaultsFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Println("Connecting to database...")
	dbConfig := storage.DefaultDBConfig()
	dbConfig.URL = cfg.Database.URL
	dbConfig.MaxOpenConns = 2
	dbConfig.MaxIdleConns = 1
	db, err := storage.NewDB(dbConfig)
	if err != nil {
		fail("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		fail("Failed to run migrations: %v", err)
	}

	enc, err := storage.NewEncryptionFromBase64(cfg.EncryptionKey)
	if err != nil {
		fail("Invalid ENCRYPTION_KEY: %v", err)
	}
	repo := storage.NewProviderRepository(db, enc)

	seeded := make(map[string]bool, len(defaults.SystemProviders))
	for _, p := range defaults.SystemProviders {
		if err := repo.Upsert(ctx, p); err != nil {
			fail("Failed to store provider %s: %v", p.ID, err)
		}
		seeded[p.ID] = true
		fmt.Printf("  ✓ %s (%s, %s, priority %d)\n", p.ID, p.Type, p.Config.Model, p.Priority)
	}

	if *deactivateMissing {
		stored, err := repo.List(ctx)
		if err != nil {
			fail("Failed to list providers: %v", err)
		}
		for _, p := range stored {
			if seeded[p.ID] || !p.Active {
				continue
			}
			if err := repo.SetActive(ctx, p.ID, false); err != nil {
				fail("Failed to deactivate provider %s: %v", p.ID, err)
			}
			fmt.Printf("  - %s deactivated\n", p.ID)
		}
	}

	fmt.Printf("Seeded %d system providers.\n", len(seeded))
	fmt.Println("Running orchestrators pick them up on their next reload, or via POST /admin/providers/reload.")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
	os.Exit(1)
}
