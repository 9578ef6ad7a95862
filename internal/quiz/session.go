package quiz

import (
	"context"
	"errors"
	"log"
	"math"
	"time"
)

var (
	// ErrNoCards rejects starting a session over an empty set.
	ErrNoCards = errors.New("set has no cards")
	// ErrNotRevealed rejects an answer before the current card's answer is shown.
	ErrNotRevealed = errors.New("answer is not revealed yet")
	// ErrSessionComplete rejects reveal/answer events after the final card.
	ErrSessionComplete = errors.New("session is already complete")
)

// Card is the minimal flashcard view a session needs.
type Card struct {
	ID       int64
	Question string
	Answer   string
}

// ResultSink receives the final score of a completed pass. Saving is
// fire-and-forget: a sink failure is logged and never reaches the session.
type ResultSink interface {
	SaveResult(ctx context.Context, userID, setID string, correctCount, totalCount int) error
}

// Session drives a single-card-at-a-time review loop over a fixed card list:
// reveal the answer, self-assess, advance until the last card completes the
// pass. Retry restarts the pass from the first card.
type Session struct {
	userID string
	setID  string
	cards  []Card
	sink   ResultSink

	currentIndex int
	revealed     bool
	correctCount int
	complete     bool
}

// NewSession starts a session at the first card. The card list is fixed for
// the session's lifetime and must not be empty.
func NewSession(userID, setID string, cards []Card, sink ResultSink) (*Session, error) {
	if len(cards) == 0 {
		return nil, ErrNoCards
	}
	return &Session{
		userID: userID,
		setID:  setID,
		cards:  cards,
		sink:   sink,
	}, nil
}

// Reveal toggles whether the current card's answer is shown.
func (s *Session) Reveal() error {
	if s.complete {
		return ErrSessionComplete
	}
	s.revealed = !s.revealed
	return nil
}

// Answer records the self-assessment for the current card and advances to the
// next card, or completes the session on the last one. The answer must be
// revealed first. Completion dispatches exactly one result save.
func (s *Session) Answer(correct bool) error {
	if s.complete {
		return ErrSessionComplete
	}
	if !s.revealed {
		return ErrNotRevealed
	}

	if correct {
		s.correctCount++
	}

	if s.currentIndex+1 < len(s.cards) {
		s.currentIndex++
		s.revealed = false
		return nil
	}

	s.complete = true
	s.dispatchResult()
	return nil
}

// Retry restarts the pass from the first card with the score reset. No
// result is persisted on retry.
func (s *Session) Retry() {
	s.currentIndex = 0
	s.revealed = false
	s.correctCount = 0
	s.complete = false
}

func (s *Session) dispatchResult() {
	if s.sink == nil {
		return
	}
	userID, setID := s.userID, s.setID
	correct, total := s.correctCount, len(s.cards)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.sink.SaveResult(ctx, userID, setID, correct, total); err != nil {
			log.Printf("save quiz result for set %s: %v", setID, err)
		}
	}()
}

// Current returns the card under review.
func (s *Session) Current() Card {
	return s.cards[s.currentIndex]
}

func (s *Session) UserID() string    { return s.userID }
func (s *Session) SetID() string     { return s.setID }
func (s *Session) Index() int        { return s.currentIndex }
func (s *Session) Revealed() bool    { return s.revealed }
func (s *Session) CorrectCount() int { return s.correctCount }
func (s *Session) Complete() bool    { return s.complete }
func (s *Session) TotalCount() int   { return len(s.cards) }

// ProgressPercent reports how far through the pass the session is.
func (s *Session) ProgressPercent() int {
	return 100 * (s.currentIndex + 1) / len(s.cards)
}

// ScorePercent is the final score once complete, rounded half up.
func (s *Session) ScorePercent() int {
	return int(math.Round(100 * float64(s.correctCount) / float64(len(s.cards))))
}
