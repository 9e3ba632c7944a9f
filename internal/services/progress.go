package services

import (
	"math"
	"time"

	"learnify/internal/models"
)

// MergeProgress folds a partial update into a progress record and returns
// the result. It is the single mutation point for progress state:
//
//   - TimeSpentSeconds is a non-negative delta added to the running total.
//     Retrying an identical update double-counts; known limitation.
//   - FlashcardLearnedCount is an absolute value merged via max, so it
//     never decreases and is safe to apply repeatedly and out of order.
//   - NewQuizScore appends one history entry with the server-assigned
//     timestamp and bumps the attempt counter, keeping
//     QuizAttempts == len(QuizHistory). Appends are never deduplicated.
//
// Fields absent from the update leave the record untouched.
func MergeProgress(rec models.ProgressRecord, upd models.ProgressUpdate, now time.Time) models.ProgressRecord {
	out := rec.Clone()

	if upd.TimeSpentSeconds > 0 {
		out.TotalStudiedSeconds += upd.TimeSpentSeconds
	}
	if upd.FlashcardLearnedCount > out.FlashcardLearnedCount {
		out.FlashcardLearnedCount = upd.FlashcardLearnedCount
	}
	if upd.NewQuizScore != nil {
		out.QuizHistory = append(out.QuizHistory, models.QuizScore{
			Timestamp: now,
			Score:     upd.NewQuizScore.Score,
			Total:     upd.NewQuizScore.Total,
		})
		out.QuizAttempts = len(out.QuizHistory)
	}

	return out
}

// FlashcardMastery is the learned/total ratio as a rounded percentage.
func FlashcardMastery(learned, total int) int {
	if total <= 0 {
		return 0
	}
	return roundPercent(float64(learned) / float64(total))
}

// BestQuizScore is the best score/total ratio in the history as a rounded
// percentage, 0 when the history is empty.
func BestQuizScore(history []models.QuizScore) int {
	best := 0
	for _, attempt := range history {
		if attempt.Total <= 0 {
			continue
		}
		if pct := roundPercent(float64(attempt.Score) / float64(attempt.Total)); pct > best {
			best = pct
		}
	}
	return best
}

// OverallMastery blends flashcard mastery and best quiz score equally when
// the session has both kinds of material, otherwise uses whichever applies.
func OverallMastery(flashcardMastery, bestQuiz, flashcardTotal, quizTotal int) int {
	switch {
	case flashcardTotal > 0 && quizTotal > 0:
		return int(math.Round(0.5*float64(flashcardMastery) + 0.5*float64(bestQuiz)))
	case flashcardTotal > 0:
		return flashcardMastery
	case quizTotal > 0:
		return bestQuiz
	default:
		return 0
	}
}

// Summarize builds the listing view of a session, computing derived mastery
// at read time; nothing here is stored.
func Summarize(s models.Session) models.SessionSummary {
	flashTotal := s.Material.FlashcardTotal()
	quizTotal := s.Material.QuizTotal()
	flashMastery := FlashcardMastery(s.Progress.FlashcardLearnedCount, flashTotal)
	bestQuiz := BestQuizScore(s.Progress.QuizHistory)

	return models.SessionSummary{
		ID:                  s.ID,
		Name:                s.Name,
		CreatedAt:           s.CreatedAt,
		Kind:                s.Material.Kind,
		FlashcardCount:      flashTotal,
		QuizCount:           quizTotal,
		FlashcardMastery:    flashMastery,
		BestQuizScore:       bestQuiz,
		OverallMastery:      OverallMastery(flashMastery, bestQuiz, flashTotal, quizTotal),
		QuizAttempts:        s.Progress.QuizAttempts,
		TotalStudiedSeconds: s.Progress.TotalStudiedSeconds,
	}
}

func roundPercent(ratio float64) int {
	return int(math.Round(ratio * 100))
}
