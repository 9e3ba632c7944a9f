package services

import (
	"context"
	"log"
	"sync"

	"learnify/internal/models"
)

// minUsableText is the minimum number of runes worth sending to the model.
const minUsableText = 50

// Analyzer drives the chunked generation-and-aggregation pipeline over a
// full document.
type Analyzer struct {
	generator *MaterialGenerator
	chunkSize int
	workers   int
}

// NewAnalyzer builds the aggregation pipeline. workers bounds concurrent
// model calls; chunkSize bounds per-call text length. Non-positive values
// fall back to defaults.
func NewAnalyzer(generator *MaterialGenerator, chunkSize, workers int) *Analyzer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if workers <= 0 {
		workers = 4
	}
	return &Analyzer{generator: generator, chunkSize: chunkSize, workers: workers}
}

// Analyze splits fullText into chunks, generates material per chunk, and
// concatenates the results in chunk-index order. A degraded chunk
// contributes nothing; only an entirely empty aggregate is an error.
func (a *Analyzer) Analyze(ctx context.Context, fullText string) (*models.MaterialSet, error) {
	if len([]rune(fullText)) < minUsableText {
		return nil, ErrInsufficientText
	}

	chunks, err := SplitChunks(fullText, a.chunkSize)
	if err != nil {
		return nil, err
	}

	// One slot per chunk; completion order does not matter because results
	// are concatenated by index afterwards.
	results := make([]models.MaterialSet, len(chunks))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, a.workers)

	for _, chunk := range chunks {
		wg.Add(1)
		go func(c Chunk) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[c.Index] = a.generator.GenerateChunk(ctx, c.Text)
		}(chunk)
	}
	wg.Wait()

	aggregate := &models.MaterialSet{
		Flashcards: []models.FlashcardItem{},
		Quiz:       []models.QuizItem{},
	}
	for i, res := range results {
		if res.Error != "" {
			log.Printf("chunk %d/%d degraded: %s", i+1, len(chunks), res.Error)
			continue
		}
		aggregate.Flashcards = append(aggregate.Flashcards, res.Flashcards...)
		aggregate.Quiz = append(aggregate.Quiz, res.Quiz...)
	}

	if len(aggregate.Flashcards) == 0 && len(aggregate.Quiz) == 0 {
		return nil, ErrNoMaterialGenerated
	}
	return aggregate, nil
}
