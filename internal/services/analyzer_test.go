package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"learnify/internal/llm"
)

func TestAnalyze_InsufficientText(t *testing.T) {
	gen, mock := newTestGenerator()
	analyzer := NewAnalyzer(gen, 100, 1)

	for _, text := range []string{"", "too short"} {
		_, err := analyzer.Analyze(context.Background(), text)
		if !errors.Is(err, ErrInsufficientText) {
			t.Fatalf("text %q: expected ErrInsufficientText, got %v", text, err)
		}
	}
	if mock.CallCount() != 0 {
		t.Fatalf("expected no model calls, got %d", mock.CallCount())
	}
}

func TestAnalyze_AllChunksEmpty(t *testing.T) {
	gen, _ := newTestGenerator(
		llm.MockResponse{Text: `{"flashcards":[],"quiz":[]}`},
		llm.MockResponse{Text: `{"flashcards":[],"quiz":[]}`},
	)
	analyzer := NewAnalyzer(gen, 60, 1)

	_, err := analyzer.Analyze(context.Background(), strings.Repeat("x", 120))
	if !errors.Is(err, ErrNoMaterialGenerated) {
		t.Fatalf("expected ErrNoMaterialGenerated, got %v", err)
	}
}

func TestAnalyze_MiddleChunkDegrades(t *testing.T) {
	// Three chunks; the middle one fails. The aggregate is the union of
	// chunks 1 and 3 in chunk-index order, with no error. Responses are
	// keyed on chunk content because call arrival order is concurrent.
	gen, mock := newTestGenerator()
	mock.GenerateFunc = func(req llm.Request) llm.MockResponse {
		switch {
		case strings.Contains(req.Prompt, "aaa"):
			return llm.MockResponse{Text: `{"flashcards":[{"term":"first","definition":"from chunk one"}],"quiz":[]}`}
		case strings.Contains(req.Prompt, "bbb"):
			return llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("boom")}}
		default:
			return llm.MockResponse{Text: `{"flashcards":[{"term":"third","definition":"from chunk three"}],"quiz":[]}`}
		}
	}
	analyzer := NewAnalyzer(gen, 60, 2)

	text := strings.Repeat("a", 60) + strings.Repeat("b", 60) + strings.Repeat("c", 50)
	set, err := analyzer.Analyze(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.CallCount() != 3 {
		t.Fatalf("expected 3 chunk calls, got %d", mock.CallCount())
	}
	if set.Error != "" {
		t.Fatalf("chunk degradation must not surface: %s", set.Error)
	}
	if len(set.Flashcards) != 2 {
		t.Fatalf("expected 2 flashcards, got %d", len(set.Flashcards))
	}
	if set.Flashcards[0].Term != "first" || set.Flashcards[1].Term != "third" {
		t.Fatalf("results not in chunk-index order: %+v", set.Flashcards)
	}
}

func TestAnalyze_ConcurrentOrderPreserved(t *testing.T) {
	// With workers > 1 completion order may vary, but aggregation must
	// still follow chunk positions. The mock serves responses FIFO, so
	// feed identical material shapes and check counts only.
	responses := make([]llm.MockResponse, 0, 5)
	for range 5 {
		responses = append(responses, llm.MockResponse{
			Text: `{"flashcards":[{"term":"t","definition":"d"}],"quiz":[]}`,
		})
	}
	gen, _ := newTestGenerator(responses...)
	analyzer := NewAnalyzer(gen, 60, 4)

	set, err := analyzer.Analyze(context.Background(), strings.Repeat("z", 280))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Flashcards) != 5 {
		t.Fatalf("expected 5 flashcards, got %d", len(set.Flashcards))
	}
}

func TestAnalyze_SingleChunkSuccess(t *testing.T) {
	gen, mock := newTestGenerator(llm.MockResponse{
		Text: `{"flashcards":[{"term":"mitosis","definition":"cell division"}],
			"quiz":[{"question":"Mitosis produces?","options":["2 cells","3 cells","4 cells","1 cell"],"answer":"2 cells"}]}`,
	})
	analyzer := NewAnalyzer(gen, DefaultChunkSize, 2)

	text := strings.Repeat("biology ", 10)
	set, err := analyzer.Analyze(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected a single chunk call, got %d", mock.CallCount())
	}
	if len(set.Flashcards) != 1 || len(set.Quiz) != 1 {
		t.Fatalf("unexpected aggregate: %+v", set)
	}
}

func TestAnalyze_RespectsContext(t *testing.T) {
	gen, _ := newTestGenerator(llm.MockResponse{Text: `{"flashcards":[],"quiz":[]}`})
	analyzer := NewAnalyzer(gen, DefaultChunkSize, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// Canceled contexts still terminate: the generator degrades instead of
	// hanging, and the aggregate reports no material.
	cancelled, cancelNow := context.WithCancel(ctx)
	cancelNow()
	_, err := analyzer.Analyze(cancelled, strings.Repeat("q", 80))
	if !errors.Is(err, ErrNoMaterialGenerated) {
		t.Fatalf("expected ErrNoMaterialGenerated after cancellation, got %v", err)
	}
}
