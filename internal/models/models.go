package models

import (
	"database/sql"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

// FlashcardSet is a named, persisted collection of flashcards created from a
// single batch of notes.
type FlashcardSet struct {
	ID         string
	UserID     string
	Title      string
	SourceText string
	CreatedAt  time.Time
	CardCount  int
}

type Flashcard struct {
	ID       int64
	SetID    string
	Position int
	Question string
	Answer   string
}

// QuizResult records one completed pass through a set's cards.
type QuizResult struct {
	ID           int64
	UserID       string
	SetID        string
	CorrectCount int
	TotalCount   int
	CreatedAt    time.Time
}

// SetSchedule carries the spaced-repetition state for one user's reviews of a
// set. Quiz scores feed the FSRS scheduler, which decides when the set is next
// due.
type SetSchedule struct {
	UserID        string
	SetID         string
	Due           sql.NullTime
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         int
	LastReview    sql.NullTime
	UpdatedAt     time.Time
	SetTitle      string
}

func (s *SetSchedule) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     s.Stability,
		Difficulty:    s.Difficulty,
		ElapsedDays:   uint64(max(s.ElapsedDays, 0)),
		ScheduledDays: uint64(max(s.ScheduledDays, 0)),
		Reps:          uint64(max(s.Reps, 0)),
		Lapses:        uint64(max(s.Lapses, 0)),
		State:         fsrs.State(max(s.State, 0)),
	}
	if s.Due.Valid {
		card.Due = s.Due.Time
	}
	if s.LastReview.Valid {
		card.LastReview = s.LastReview.Time
	}
	return card
}

func (s *SetSchedule) ApplyFSRSCard(f fsrs.Card) {
	s.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	s.Stability = f.Stability
	s.Difficulty = f.Difficulty
	s.ElapsedDays = int(f.ElapsedDays)
	s.ScheduledDays = int(f.ScheduledDays)
	s.Reps = int(f.Reps)
	s.Lapses = int(f.Lapses)
	s.State = int(f.State)
	s.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}

func max[T ~int | ~int32 | ~int64](a, b T) T {
	if a > b {
		return a
	}
	return b
}
