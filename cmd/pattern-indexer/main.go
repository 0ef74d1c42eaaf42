// Command pattern-indexer loads pattern JSON files, embeds them and writes
// them to the configured pattern store.
//
// Usage:
//
//	pattern-indexer [-builtin] file.json [file.json ...]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/Conceptual-Machines/magda-composer/internal/app"
	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/Conceptual-Machines/magda-composer/internal/models"
	"github.com/Conceptual-Machines/magda-composer/internal/retrieval"
	"github.com/joho/godotenv"
)

func main() {
	builtin := flag.Bool("builtin", false, "also index the built-in patterns")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *builtin, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config, builtin bool, files []string) error {
	var patterns []models.Pattern
	if builtin {
		for _, kind := range models.AllPatternKinds() {
			patterns = append(patterns, retrieval.Builtin(kind)...)
		}
	}
	for _, path := range files {
		loaded, err := loadFile(path)
		if err != nil {
			return err
		}
		log.Printf("📄 %s: %d patterns", path, len(loaded))
		patterns = append(patterns, loaded...)
	}
	if len(patterns) == 0 {
		return fmt.Errorf("nothing to index: pass pattern files or -builtin")
	}

	services, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	n, err := services.Indexer.Index(ctx, patterns)
	if err != nil {
		return fmt.Errorf("indexed %d of %d patterns: %w", n, len(patterns), err)
	}
	total, err := services.Store.Count(ctx)
	if err != nil {
		return err
	}
	log.Printf("✅ Indexed %d patterns into %s store (%d total)", n, cfg.PatternStore, total)
	return nil
}

func loadFile(path string) ([]models.Pattern, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var patterns []models.Pattern
	if err := json.Unmarshal(raw, &patterns); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return patterns, nil
}
