package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"learnify/internal/llm"
	"learnify/internal/models"
)

const dateLayout = "2006-01-02"

var planSchema = &llm.Schema{
	Name: "study-plan",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"timeline", "flashcards", "quiz"},
		"properties": map[string]any{
			"timeline": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"day", "date", "topics_to_cover"},
					"properties": map[string]any{
						"day":                    map[string]any{"type": "integer"},
						"date":                   map[string]any{"type": "string"},
						"topics_to_cover":        map[string]any{"type": "string"},
						"daily_details":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"estimated_time":         map[string]any{"type": "string"},
						"youtube_search_queries": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
			},
			"flashcards": map[string]any{"type": "array"},
			"quiz":       map[string]any{"type": "array"},
		},
	},
}

// Planner produces a day-by-day study timeline plus comprehensive study
// material from a whole document in a single model call.
type Planner struct {
	provider llm.Provider
	timeout  time.Duration
}

func NewPlanner(provider llm.Provider, timeout time.Duration) *Planner {
	return &Planner{provider: provider, timeout: timeout}
}

// DayCount returns the number of study days between today and the target
// date, inclusive. ErrInvalidDateRange when the target is in the past.
// Only the calendar dates matter; the time of day and zone of either
// argument never change the count.
func DayCount(targetDate, today time.Time) (int, error) {
	days := int(civilDate(targetDate).Sub(civilDate(today)).Hours()/24) + 1
	if days < 1 {
		return 0, ErrInvalidDateRange
	}
	return days, nil
}

// civilDate strips a timestamp down to its calendar date, as seen in its
// own zone.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Plan generates a study plan distributing the document's topics over the
// days remaining until targetDate. Unlike chunked generation there is no
// usable partial result, so any parse or call failure surfaces as
// *MalformedPlanError (or the provider error itself for transport
// failures).
func (p *Planner) Plan(ctx context.Context, fullText, topic string, targetDate, today time.Time) (*models.StudyPlan, error) {
	if len([]rune(fullText)) < minUsableText {
		return nil, ErrInsufficientText
	}
	days, err := DayCount(targetDate, today)
	if err != nil {
		return nil, err
	}

	todayStr := today.Format(dateLayout)
	prompt := fmt.Sprintf(`You are an expert academic planner. Today's date is %s. The user's test on "%s" is on %s.
Your task is to create a study plan that distributes all key topics from the provided text over the available %d days.
If the timeline is short, cram more related topics into each day. If the timeline is long, spread the topics out for lighter study sessions.

The plan must be a valid JSON object with "timeline", "flashcards", and "quiz" as the top-level keys.

- "timeline": An array of exactly %d objects. Each object must have these keys:
    - "day" (number)
    - "date" (string: YYYY-MM-DD, starting from %s)
    - "topics_to_cover" (string: a concise title for the day's topics)
    - "daily_details" (array of strings: a detailed bullet-point breakdown of concepts for the day)
    - "estimated_time" (string: a realistic, descriptive time like "90 minutes" or "2.5 hours")
    - "youtube_search_queries" (array of strings: 2-3 specific, high-quality YouTube search queries for that day's topics)

- "flashcards": A comprehensive array of at least 10 flashcard objects ("term", "definition") covering the entire text.
- "quiz": A comprehensive array of at least 10 multiple-choice question objects ("question", "options" of 4 strings, "answer"). Randomize the position of the correct answer in each 'options' array.

Do not invent information that is not present in the text.
Raw text to analyze: --- %s ---
Return ONLY the valid JSON object.`, todayStr, topic, targetDate.Format(dateLayout), days, days, todayStr, fullText)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.provider.Generate(ctx, llm.Request{
		System:      "You are a helpful assistant designed to output valid JSON.",
		Prompt:      prompt,
		Schema:      planSchema,
		Temperature: 0.2,
	})
	if err != nil {
		var invResp *llm.ErrInvalidResponse
		if errors.As(err, &invResp) {
			return nil, &MalformedPlanError{Cause: err}
		}
		return nil, err
	}

	var plan models.StudyPlan
	if err := json.Unmarshal(resp.JSON, &plan); err != nil {
		return nil, &MalformedPlanError{Cause: err}
	}
	if len(plan.Timeline) == 0 {
		return nil, &MalformedPlanError{Cause: errors.New("timeline is empty")}
	}

	normalizeTimeline(plan.Timeline, today)
	plan.Flashcards = cleanFlashcards(plan.Flashcards)
	plan.Quiz = repairQuiz(plan.Quiz)
	return &plan, nil
}

// normalizeTimeline renumbers days from 1 and re-issues consecutive dates
// from the start date, so the contiguity invariants hold even when the
// model drifts.
func normalizeTimeline(timeline []models.TimelineDay, start time.Time) {
	for i := range timeline {
		timeline[i].Day = i + 1
		timeline[i].Date = start.AddDate(0, 0, i).Format(dateLayout)
		if timeline[i].DailyDetails == nil {
			timeline[i].DailyDetails = []string{}
		}
		if timeline[i].YoutubeSearchQueries == nil {
			timeline[i].YoutubeSearchQueries = []string{}
		}
	}
}
