package services

import (
	"fmt"
	"strings"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"learnify/internal/models"
)

// ReviewScheduler advances per-session flashcard review state with FSRS.
// Card states live inside the session's progress record; the learned count
// derived from them flows through MergeProgress so the max-merge invariant
// is kept in one place.
type ReviewScheduler struct {
	params fsrs.Parameters
}

func NewReviewScheduler() *ReviewScheduler {
	return &ReviewScheduler{params: fsrs.DefaultParam()}
}

// Review applies a rating to the card at cardIndex and returns the updated
// progress record plus the card's new scheduling state. cardTotal is the
// session's flashcard count, used for bounds checking.
func (r *ReviewScheduler) Review(rec models.ProgressRecord, cardIndex, cardTotal int, rating fsrs.Rating, now time.Time) (models.ProgressRecord, fsrs.Card, error) {
	if cardIndex < 0 || cardIndex >= cardTotal {
		return rec, fsrs.Card{}, fmt.Errorf("card index %d out of range [0,%d)", cardIndex, cardTotal)
	}

	out := rec.Clone()
	if out.CardReviews == nil {
		out.CardReviews = make(map[int]fsrs.Card)
	}

	card, ok := out.CardReviews[cardIndex]
	if !ok {
		card = fsrs.NewCard()
	}

	scheduling := r.params.Repeat(card, now)
	info, ok := scheduling[rating]
	if !ok {
		return rec, fsrs.Card{}, fmt.Errorf("rating %d not supported", rating)
	}
	out.CardReviews[cardIndex] = info.Card

	// A card counts as learned once it has graduated to the Review state.
	learned := 0
	for _, c := range out.CardReviews {
		if c.State == fsrs.Review {
			learned++
		}
	}
	out = MergeProgress(out, models.ProgressUpdate{FlashcardLearnedCount: learned}, now)

	return out, info.Card, nil
}

// ParseRating maps the wire rating names onto FSRS ratings.
func ParseRating(raw string) (fsrs.Rating, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "again":
		return fsrs.Again, nil
	case "hard":
		return fsrs.Hard, nil
	case "good":
		return fsrs.Good, nil
	case "easy":
		return fsrs.Easy, nil
	default:
		return 0, fmt.Errorf("unknown rating %q", raw)
	}
}
