// Package pipeline runs one meme query end to end: retrieve candidates,
// have the model rank them, and parse the answer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/sirupsen/logrus"

	"github.com/perbu/memesearch/pkg/memesearch"
	"github.com/perbu/memesearch/pkg/ranking"
	"github.com/perbu/memesearch/pkg/spinner"
)

// Searcher wires the retrieval and ranking stages together. Every failure
// is reported on Out and turns into an empty result.
type Searcher struct {
	Retriever  retriever.Retriever
	Ranker     ranking.Ranker
	BaseFolder string // folder the model's filenames are resolved against
	Out        io.Writer
	Logger     logrus.FieldLogger
	// Quiet disables the spinner.
	Quiet bool
}

func (s *Searcher) out() io.Writer {
	if s.Out == nil {
		return os.Stdout
	}
	return s.Out
}

func (s *Searcher) log() logrus.FieldLogger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}
	return s.Logger
}

// Search returns the ranked memes for query. The result is never nil.
func (s *Searcher) Search(ctx context.Context, query string) []ranking.RankedCandidate {
	out := s.out()
	log := s.log().WithField("query", query)
	empty := []ranking.RankedCandidate{}

	docs, err := s.Retriever.Retrieve(ctx, query)
	switch {
	case errors.Is(err, memesearch.ErrEmptyIndex):
		fmt.Fprintln(out, "The meme index is empty. Add images to the memes folder and rebuild.")
		return empty
	case err != nil:
		log.WithError(err).Error("retrieval failed")
		fmt.Fprintf(out, "Error retrieving memes: %v\n", err)
		return empty
	case len(docs) == 0:
		fmt.Fprintln(out, "No candidate memes were retrieved.")
		return empty
	}
	log.WithField("candidates", len(docs)).Debug("retrieved candidates")

	fmt.Fprintln(out, "Sending request to AI model...")
	var spin *spinner.Spinner
	if !s.Quiet {
		spin = spinner.Start(out, "Waiting for response")
	}
	raw, err := s.Ranker.Rank(ctx, query, docs, len(docs))
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		log.WithError(err).Error("ranking failed")
		fmt.Fprintf(out, "Error getting response from AI model: %v\n", err)
		return empty
	}
	fmt.Fprintln(out, "Response received! Processing results...")

	results, err := ranking.ParseAndValidate(raw, s.BaseFolder, log)
	if err != nil {
		fmt.Fprintf(out, "Could not read the AI model response: %v\n", err)
		return empty
	}
	return results
}

// Print writes results in the interactive listing format.
func Print(w io.Writer, results []ranking.RankedCandidate) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No memes found matching the query.")
		return
	}
	fmt.Fprintln(w, "\nTop Relevant Memes:")
	for i, r := range results {
		fmt.Fprintf(w, "%d. Image Path: %s\n", i+1, r.ImagePath)
		fmt.Fprintf(w, "   Score: %d/10\n", r.Score)
		fmt.Fprintf(w, "   Summary: %s\n\n", r.Summary)
	}
}
