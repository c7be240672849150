// Package corpus turns a folder of meme images into a vector index.
package corpus

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/perbu/memesearch/pkg/embedder"
	"github.com/perbu/memesearch/pkg/loader"
	"github.com/perbu/memesearch/pkg/memesearch"
)

// Failure records one file that could not be embedded.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes a corpus build.
type Report struct {
	Total    int // supported files found
	Embedded int
	Failed   []Failure
}

// Builder embeds every supported image in a folder and builds an index.
// A file that fails to embed is logged and skipped; it never aborts the build.
type Builder struct {
	Embedder embedder.Embedder
	// Workers bounds concurrent embedding calls. Values below 1 mean 1.
	Workers int
	// Progress, if set, is called after each file with (processed, total).
	// Calls are serialized.
	Progress func(done, total int)
	Logger   logrus.FieldLogger
}

// Label returns the human-readable document content for an image file.
func Label(path string) string {
	return "Meme image: " + filepath.Base(path)
}

// DocumentID derives a stable document ID from the image path.
func DocumentID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// Build scans folder, embeds each image and returns the resulting index.
// Documents keep the sorted folder order regardless of completion order.
func (b *Builder) Build(ctx context.Context, folder string) (*memesearch.Index, Report, error) {
	log := b.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	workers := b.Workers
	if workers < 1 {
		workers = 1
	}

	paths, err := loader.ListMedia(folder)
	if err != nil {
		return nil, Report{}, err
	}
	report := Report{Total: len(paths)}

	log.WithFields(logrus.Fields{"folder": folder, "files": len(paths)}).Info("creating embeddings")

	docs := make([]*schema.Document, len(paths))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			vec, err := b.Embedder.EmbedImage(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.WithError(err).WithField("file", filepath.Base(path)).Error("error processing meme")
				report.Failed = append(report.Failed, Failure{Path: path, Err: err})
			} else {
				docs[i] = memesearch.NewDocument(DocumentID(path), Label(path), path, vec)
			}
			if b.Progress != nil {
				b.Progress(done, len(paths))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, report, fmt.Errorf("building corpus: %w", err)
	}

	embedded := make([]*schema.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			embedded = append(embedded, d)
		}
	}
	report.Embedded = len(embedded)

	idx, err := memesearch.Build(embedded, b.Embedder.Dimension(), b.Embedder.ModelInfo())
	if err != nil {
		return nil, report, fmt.Errorf("building index: %w", err)
	}

	log.WithFields(logrus.Fields{
		"embedded": report.Embedded,
		"failed":   len(report.Failed),
	}).Info("index created")

	return idx, report, nil
}
