package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"learnify/internal/llm"
	"learnify/internal/models"
)

const generatorSystemPrompt = "You are a helpful assistant designed to output JSON."

// materialSchema constrains the per-chunk generation response. Item-level
// problems (a wrong answer option, a blank term) are repaired or dropped
// after parsing instead of failing the whole chunk.
var materialSchema = &llm.Schema{
	Name: "study-material",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"flashcards", "quiz"},
		"properties": map[string]any{
			"flashcards": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"term", "definition"},
					"properties": map[string]any{
						"term":       map[string]any{"type": "string"},
						"definition": map[string]any{"type": "string"},
					},
				},
			},
			"quiz": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"question", "options", "answer"},
					"properties": map[string]any{
						"question": map[string]any{"type": "string"},
						"options":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"answer":   map[string]any{"type": "string"},
					},
				},
			},
		},
	},
}

// MaterialGenerator produces flashcards and quiz items from one text chunk.
type MaterialGenerator struct {
	provider llm.Provider
	timeout  time.Duration
}

func NewMaterialGenerator(provider llm.Provider, timeout time.Duration) *MaterialGenerator {
	return &MaterialGenerator{provider: provider, timeout: timeout}
}

// GenerateChunk issues one model call for the chunk and returns a
// best-effort MaterialSet. Every failure mode (network, rate limit,
// malformed output) is converted into an empty set carrying a diagnostic in
// Error; this method never returns a Go error.
func (g *MaterialGenerator) GenerateChunk(ctx context.Context, chunkText string) models.MaterialSet {
	prompt := fmt.Sprintf(`From the provided text chunk, generate a valid JSON object with "flashcards" and "quiz" as keys.
Generate as many high-quality items as possible, aiming for at least 10 flashcards and 10 quiz questions if the text is substantial. Do not invent information that is not present in the text.

- "flashcards": An array of objects, each with a "term" and a "definition".
- "quiz": An array of multiple-choice question objects, each with a "question", an "options" array of 4 strings, and an "answer" string that is one of the options. Randomize the position of the correct answer in the 'options' array.

Raw text chunk:
"""%s"""

Return ONLY the valid JSON object.`, chunkText)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.provider.Generate(ctx, llm.Request{
		System:      generatorSystemPrompt,
		Prompt:      prompt,
		Schema:      materialSchema,
		Temperature: 0.2,
	})
	if err != nil {
		return models.MaterialSet{
			Flashcards: []models.FlashcardItem{},
			Quiz:       []models.QuizItem{},
			Error:      err.Error(),
		}
	}

	var set models.MaterialSet
	if err := json.Unmarshal(resp.JSON, &set); err != nil {
		return models.MaterialSet{
			Flashcards: []models.FlashcardItem{},
			Quiz:       []models.QuizItem{},
			Error:      fmt.Sprintf("unmarshal material: %v", err),
		}
	}

	set.Flashcards = cleanFlashcards(set.Flashcards)
	set.Quiz = repairQuiz(set.Quiz)
	set.Error = ""
	return set
}

// cleanFlashcards trims whitespace and drops cards with a blank side.
func cleanFlashcards(cards []models.FlashcardItem) []models.FlashcardItem {
	out := make([]models.FlashcardItem, 0, len(cards))
	for _, card := range cards {
		term := strings.TrimSpace(card.Term)
		def := strings.TrimSpace(card.Definition)
		if term == "" || def == "" {
			continue
		}
		out = append(out, models.FlashcardItem{Term: term, Definition: def})
	}
	return out
}

// repairQuiz enforces answer-in-options. A case-insensitive match is
// canonicalized to the option's spelling; items whose answer matches no
// option, or with fewer than two options, are dropped. Dropping beats
// inventing a correct answer.
func repairQuiz(items []models.QuizItem) []models.QuizItem {
	out := make([]models.QuizItem, 0, len(items))
	for _, item := range items {
		item.Question = strings.TrimSpace(item.Question)
		item.Answer = strings.TrimSpace(item.Answer)
		if item.Question == "" || item.Answer == "" || len(item.Options) < 2 {
			continue
		}

		matched := false
		for i, opt := range item.Options {
			item.Options[i] = strings.TrimSpace(opt)
			if strings.EqualFold(item.Options[i], item.Answer) {
				item.Answer = item.Options[i]
				matched = true
			}
		}
		if !matched {
			log.Printf("dropping quiz item with answer not in options: %q", item.Question)
			continue
		}
		out = append(out, item)
	}
	return out
}
