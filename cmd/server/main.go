package main

import (
	"context"
	"log"
	"net/http"

	"reviewq/internal/api"
	"reviewq/internal/config"
	"reviewq/internal/db"
	"reviewq/pkg/analysis"
	"reviewq/pkg/bus"
	"reviewq/pkg/queue"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var items queue.Store
	var patterns analysis.PatternStore
	if cfg.Database.URL == "" {
		log.Println("no database configured, using in-memory stores (state is lost on restart)")
		items = queue.NewMemStore()
		patterns = analysis.NewMemPatternStore()
	} else {
		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		items = queue.NewPgStore(pool)
		patterns = analysis.NewPgPatternStore(pool)
	}

	if err := items.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure items table: %v", err)
	}
	if err := patterns.EnsureTable(ctx); err != nil {
		log.Fatalf("ensure patterns table: %v", err)
	}

	b := bus.New()
	coord := queue.NewCoordinator(items, b)
	runner := analysis.NewRunner(items, patterns, b)
	server := api.New(coord, runner, patterns, b, cfg.Queue.PageSize)

	log.Printf("reviewq listening on %s", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, server); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
