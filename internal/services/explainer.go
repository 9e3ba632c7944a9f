package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnify/internal/llm"
)

// Explainer produces a free-text rationale for why a chosen quiz answer was
// wrong, grounded in the question itself.
type Explainer struct {
	provider llm.Provider
	timeout  time.Duration
}

func NewExplainer(provider llm.Provider, timeout time.Duration) *Explainer {
	return &Explainer{provider: provider, timeout: timeout}
}

// Explain returns the model's explanation text verbatim. The response is
// prose, not JSON, and is never parsed beyond checking the call succeeded;
// failures surface as *ExplanationError.
func (e *Explainer) Explain(ctx context.Context, question, userAnswer, correctAnswer string) (string, error) {
	prompt := fmt.Sprintf(`You are a helpful tutor. A user has selected an incorrect answer for a multiple-choice question.
Your task is to explain why the selected answer is incorrect and why the correct answer is right, grounded only in the question below.

- Start with a short correction and analysis of the misconception.
- Then give the supporting evidence, quoting the question context.
- End with a one-sentence key takeaway.
- Keep the tone encouraging and focused on the concepts.
- Do not use JSON formatting. Return only the raw text of your explanation.

Question: "%s"
User's selected incorrect answer: "%s"
The correct answer: "%s"`, question, userAnswer, correctAnswer)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.provider.Generate(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: 0.3,
	})
	if err != nil {
		return "", &ExplanationError{Cause: err}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", &ExplanationError{Cause: errors.New("model returned empty explanation")}
	}
	return text, nil
}
