package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"usage-analytics/internal/api"
	"usage-analytics/internal/api/handler"
	"usage-analytics/internal/config"
	"usage-analytics/internal/pipeline"
	"usage-analytics/internal/store"
	"usage-analytics/internal/watch"
	"usage-analytics/pkg/router"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	if cfg.DBPath != "" {
		if err := store.InitDB(cfg.DBPath); err != nil {
			log.Fatalf("❌ Failed to open load history %s: %v", cfg.DBPath, err)
		}
		defer store.Close()
	}

	builder := pipeline.NewBuilder(pipeline.Options{
		DataDir:      cfg.DataDir,
		DenyListFile: cfg.DenyListFile,
		Rules: pipeline.ExclusionRules{
			EmailMarkers: cfg.Exclusion.EmailDomains,
			SlugMarkers:  cfg.Exclusion.SlugSubstrings,
		},
	})
	cache, err := pipeline.NewFeatureCache(builder, cfg.CacheSize)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if _, err := cache.Get(ctx); err != nil {
		log.Printf("⚠️ Initial load failed: %v", err)
	}

	if cfg.EnableWatcher {
		warm := watch.WarmFunc(func(ctx context.Context) error {
			_, err := cache.Get(ctx)
			return err
		})
		if err := watch.New(cfg.DataDir, cfg.DenyListFile, warm).Start(ctx); err != nil {
			log.Printf("⚠️ Watcher not started: %v", err)
		}
	} else {
		log.Println("watcher disabled")
	}

	// Create router
	r := router.New()

	// Register API routes
	dashboard := handler.NewDashboard(cache, cfg.DefaultStartDate)
	gate := api.NewGate(cfg.Passphrase, cfg.SessionTTL)
	api.RegisterRoutes(r, dashboard, gate)
	if !gate.Enabled() {
		log.Printf("[WARNING] No passphrase configured: API is open")
	}

	// Start server
	if err := r.Start(ctx, cfg.HTTPAddr); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
}
