package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/perbu/memesearch/pkg/config"
	"github.com/perbu/memesearch/pkg/corpus"
	"github.com/perbu/memesearch/pkg/credentials"
	"github.com/perbu/memesearch/pkg/embedder"
	"github.com/perbu/memesearch/pkg/watcher"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config file")
	folder := flag.String("folder", "", "folder containing meme images")
	out := flag.String("out", "", "directory to write the index to")
	workers := flag.Int("workers", 0, "concurrent embedding requests")
	watch := flag.Bool("watch", false, "keep running and rebuild when the folder changes")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *folder != "" {
		cfg.MemesFolder = *folder
	}
	if *out != "" {
		cfg.IndexDir = *out
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Meme Index Builder")
	fmt.Println("==================")
	fmt.Println()

	fmt.Println("Step 1: Initializing embedding provider...")
	emb, err := cfg.NewEmbedder(ctx, credentials.NewDotEnv(".env"), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing embedder: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  ✓ Embedder initialized (model=%s, dim=%d)\n\n", emb.ModelInfo(), emb.Dimension())

	if err := build(ctx, cfg, emb, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !*watch {
		fmt.Println("Done! The index is ready for use.")
		return
	}

	w := &watcher.Watcher{
		Folder: cfg.MemesFolder,
		Logger: log,
		Rebuild: func(ctx context.Context) error {
			return build(ctx, cfg, emb, log)
		},
	}
	fmt.Printf("Watching %s for changes (Ctrl+C to stop)...\n", cfg.MemesFolder)
	if err := w.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error watching folder: %v\n", err)
		os.Exit(1)
	}
}

// build embeds the whole folder and saves the index.
func build(ctx context.Context, cfg config.Config, emb embedder.Embedder, log logrus.FieldLogger) error {
	fmt.Printf("Step 2: Embedding memes in %s...\n", cfg.MemesFolder)
	b := &corpus.Builder{
		Embedder: emb,
		Workers:  cfg.Workers,
		Logger:   log,
		Progress: func(done, total int) {
			fmt.Printf("\r  Progress: %d/%d (%.1f%%)", done, total, float64(done)/float64(total)*100)
			if done == total {
				fmt.Println()
			}
		},
	}

	idx, report, err := b.Build(ctx, cfg.MemesFolder)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\n\n⚠ Interrupted, index not saved.")
		}
		return err
	}

	if len(report.Failed) > 0 {
		fmt.Fprintf(os.Stderr, "\n⚠ Skipped %d file(s):\n", len(report.Failed))
		for _, f := range report.Failed {
			fmt.Fprintf(os.Stderr, "  - %s: %v\n", filepath.Base(f.Path), f.Err)
		}
	}
	fmt.Printf("  ✓ Embedded %d of %d memes\n\n", report.Embedded, report.Total)

	fmt.Println("Step 3: Saving index...")
	if err := idx.Save(cfg.IndexDir); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	fmt.Printf("  ✓ Saved to %s\n\n", cfg.IndexDir)
	return nil
}
