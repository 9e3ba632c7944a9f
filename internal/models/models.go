package models

import (
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

// FlashcardItem is a single term/definition pair. Duplicates across chunks
// are possible and accepted.
type FlashcardItem struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// QuizItem is a multiple-choice question. The answer is expected to be one
// of the options; generation repairs or drops items where it is not.
type QuizItem struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// MaterialSet aggregates generated flashcards and quiz items. Error carries
// a per-chunk diagnostic when generation degraded; an empty set with no
// error is a valid (if useless) result.
type MaterialSet struct {
	Flashcards []FlashcardItem `json:"flashcards"`
	Quiz       []QuizItem      `json:"quiz"`
	Error      string          `json:"error,omitempty"`
}

// TimelineDay is one entry of a study plan timeline. Day numbers are
// contiguous from 1 and dates consecutive from the plan's start date.
type TimelineDay struct {
	Day                  int      `json:"day"`
	Date                 string   `json:"date"`
	TopicsToCover        string   `json:"topics_to_cover"`
	DailyDetails         []string `json:"daily_details"`
	EstimatedTime        string   `json:"estimated_time"`
	YoutubeSearchQueries []string `json:"youtube_search_queries"`
}

// StudyPlan is a day-indexed timeline plus whole-document study material.
type StudyPlan struct {
	Timeline   []TimelineDay   `json:"timeline"`
	Flashcards []FlashcardItem `json:"flashcards"`
	Quiz       []QuizItem      `json:"quiz"`
}

type MaterialKind string

const (
	KindMaterial MaterialKind = "material"
	KindPlan     MaterialKind = "plan"
)

// SessionMaterial is the immutable generated payload of a session: either a
// MaterialSet (upload pipeline) or a StudyPlan (planner pipeline).
type SessionMaterial struct {
	Kind     MaterialKind `json:"kind"`
	Material *MaterialSet `json:"material,omitempty"`
	Plan     *StudyPlan   `json:"plan,omitempty"`
}

// FlashcardTotal returns the number of flashcards in the session material.
func (m SessionMaterial) FlashcardTotal() int {
	switch m.Kind {
	case KindMaterial:
		if m.Material != nil {
			return len(m.Material.Flashcards)
		}
	case KindPlan:
		if m.Plan != nil {
			return len(m.Plan.Flashcards)
		}
	}
	return 0
}

// QuizTotal returns the number of quiz items in the session material.
func (m SessionMaterial) QuizTotal() int {
	switch m.Kind {
	case KindMaterial:
		if m.Material != nil {
			return len(m.Material.Quiz)
		}
	case KindPlan:
		if m.Plan != nil {
			return len(m.Plan.Quiz)
		}
	}
	return 0
}

// Flashcards returns the session's flashcards regardless of material kind.
func (m SessionMaterial) Flashcards() []FlashcardItem {
	switch m.Kind {
	case KindMaterial:
		if m.Material != nil {
			return m.Material.Flashcards
		}
	case KindPlan:
		if m.Plan != nil {
			return m.Plan.Flashcards
		}
	}
	return nil
}

// QuizScore is one append-only quiz attempt entry.
type QuizScore struct {
	Timestamp time.Time `json:"timestamp"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
}

// ProgressRecord accumulates per-session learner progress. It is mutated
// only through the progress ledger merge.
type ProgressRecord struct {
	TotalStudiedSeconds   int64             `json:"total_studied_seconds"`
	FlashcardLearnedCount int               `json:"flashcard_learned_count"`
	QuizAttempts          int               `json:"quiz_attempts"`
	QuizHistory           []QuizScore       `json:"quiz_history"`
	CardReviews           map[int]fsrs.Card `json:"card_reviews,omitempty"`
}

// Clone returns a deep copy so merges never alias stored state.
func (r ProgressRecord) Clone() ProgressRecord {
	out := r
	if r.QuizHistory != nil {
		out.QuizHistory = append([]QuizScore(nil), r.QuizHistory...)
	}
	if r.CardReviews != nil {
		out.CardReviews = make(map[int]fsrs.Card, len(r.CardReviews))
		for idx, card := range r.CardReviews {
			out.CardReviews[idx] = card
		}
	}
	return out
}

// ProgressUpdate is a partial update merged into a ProgressRecord. Zero
// values for the additive and max-merged fields are no-ops, so absent JSON
// fields leave the record untouched.
type ProgressUpdate struct {
	TimeSpentSeconds      int64           `json:"time_spent_seconds"`
	FlashcardLearnedCount int             `json:"flashcard_learned_count"`
	NewQuizScore          *QuizScoreInput `json:"new_quiz_score"`
}

// QuizScoreInput is a client-reported quiz result; the server assigns the
// timestamp on append.
type QuizScoreInput struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

// Session is a persisted named study session: immutable material plus a
// mutable progress record.
type Session struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"created_at"`
	Material  SessionMaterial `json:"material"`
	Progress  ProgressRecord  `json:"progress"`
}

// SessionSummary is the listing view of a session with derived mastery.
type SessionSummary struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	CreatedAt           time.Time    `json:"created_at"`
	Kind                MaterialKind `json:"kind"`
	FlashcardCount      int          `json:"flashcard_count"`
	QuizCount           int          `json:"quiz_count"`
	FlashcardMastery    int          `json:"flashcard_mastery_percent"`
	BestQuizScore       int          `json:"best_quiz_score_percent"`
	OverallMastery      int          `json:"overall_mastery"`
	QuizAttempts        int          `json:"quiz_attempts"`
	TotalStudiedSeconds int64        `json:"total_studied_seconds"`
}
