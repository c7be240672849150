package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/perbu/memesearch/pkg/config"
	"github.com/perbu/memesearch/pkg/corpus"
	"github.com/perbu/memesearch/pkg/credentials"
	"github.com/perbu/memesearch/pkg/embedder"
	"github.com/perbu/memesearch/pkg/loader"
	"github.com/perbu/memesearch/pkg/memesearch"
	"github.com/perbu/memesearch/pkg/pipeline"
	"github.com/perbu/memesearch/pkg/retrieval"
)

func main() {
	// Load .env file if it exists (for API keys)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config file")
	folder := flag.String("folder", "", "folder containing meme images")
	indexDir := flag.String("index", "", "directory holding the saved index")
	top := flag.Int("top", 0, "number of candidates sent to the ranking model")
	strategy := flag.String("strategy", "", "retrieval strategy: indexed or linear")
	rebuild := flag.Bool("rebuild", false, "rebuild the index even if one exists")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *folder != "" {
		cfg.MemesFolder = *folder
	}
	if *indexDir != "" {
		cfg.IndexDir = *indexDir
	}
	if *top > 0 {
		cfg.TopK = *top
	}
	if *strategy != "" {
		cfg.Strategy = *strategy
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(cfg.Level())

	ctx := context.Background()
	creds := credentials.NewDotEnv(".env")

	emb, err := cfg.NewEmbedder(ctx, creds, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing embedder: %v\n", err)
		os.Exit(1)
	}
	ranker, err := cfg.NewRanker(creds, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing ranking model: %v\n", err)
		os.Exit(1)
	}

	files, err := loader.ListMedia(cfg.MemesFolder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading memes folder: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d memes in the memes folder.\n", len(files))

	idx, err := loadOrBuild(ctx, os.Stdout, cfg, emb, *rebuild, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	strat, err := retrieval.NewStrategy(cfg.Strategy, idx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	searcher := &pipeline.Searcher{
		Retriever:  retrieval.New(emb, strat, cfg.TopK),
		Ranker:     ranker,
		BaseFolder: cfg.MemesFolder,
		Out:        os.Stdout,
		Logger:     log,
	}

	repl(ctx, os.Stdin, os.Stdout, searcher)
}

// loadOrBuild loads the saved index, or builds and saves one when none
// exists or a rebuild was requested. A corrupt index is fatal. Files that
// fail to embed are reported by the builder's logger only.
func loadOrBuild(ctx context.Context, out io.Writer, cfg config.Config, emb embedder.Embedder, rebuild bool, log logrus.FieldLogger) (*memesearch.Index, error) {
	if !rebuild && memesearch.Exists(cfg.IndexDir) {
		fmt.Fprintln(out, "Loading existing vector store...")
		idx, err := memesearch.Load(cfg.IndexDir, emb, log)
		if err != nil {
			if errors.Is(err, memesearch.ErrCorruptIndex) {
				return nil, fmt.Errorf("%w (rerun with -rebuild to recreate it)", err)
			}
			return nil, err
		}
		return idx, nil
	}

	fmt.Fprintln(out, "Creating new vector store...")
	b := &corpus.Builder{Embedder: emb, Workers: cfg.Workers, Logger: log}
	idx, report, err := b.Build(ctx, cfg.MemesFolder)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Indexed %d of %d memes.\n", report.Embedded, report.Total)
	if err := idx.Save(cfg.IndexDir); err != nil {
		return nil, fmt.Errorf("saving index: %w", err)
	}
	return idx, nil
}

func repl(ctx context.Context, in io.Reader, out io.Writer, s *pipeline.Searcher) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nEnter search query (or 'exit' to quit): ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		query := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(query, "exit") {
			return
		}
		if query == "" {
			continue
		}
		pipeline.Print(out, s.Search(ctx, query))
	}
}
