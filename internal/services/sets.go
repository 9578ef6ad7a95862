package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notedeck/internal/generate"
	"notedeck/internal/models"
)

var (
	// ErrSetNotFound indicates the set does not exist or belongs to another user.
	ErrSetNotFound = errors.New("flashcard set not found")
)

// SetService persists flashcard sets and their cards.
type SetService struct {
	db *sql.DB
}

func NewSetService(db *sql.DB) *SetService {
	return &SetService{db: db}
}

// CreateSet stores a set and its cards in one transaction, so a failed card
// insert never leaves a half-saved set behind.
func (s *SetService) CreateSet(ctx context.Context, userID, title, sourceText string, drafts []generate.Draft) (*models.FlashcardSet, error) {
	if len(drafts) == 0 {
		return nil, errors.New("no flashcards to save")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	set := &models.FlashcardSet{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		SourceText: sourceText,
		CreatedAt:  time.Now().UTC(),
		CardCount:  len(drafts),
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO flashcard_sets (id, user_id, title, source_text, created_at)
		VALUES (?, ?, ?, ?, ?);
	`, set.ID, set.UserID, set.Title, set.SourceText, set.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert flashcard set: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flashcards (set_id, position, question, answer)
		VALUES (?, ?, ?, ?);
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare card insert: %w", err)
	}
	defer stmt.Close()

	for i, draft := range drafts {
		if _, err = stmt.ExecContext(ctx, set.ID, i, draft.Question, draft.Answer); err != nil {
			return nil, fmt.Errorf("insert card %q: %w", draft.Question, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit set insert: %w", err)
	}
	return set, nil
}

// GetSet loads one of the user's sets by ID.
func (s *SetService) GetSet(ctx context.Context, userID, setID string) (*models.FlashcardSet, error) {
	set := &models.FlashcardSet{}
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.user_id, s.title, s.source_text, s.created_at,
		       (SELECT COUNT(*) FROM flashcards c WHERE c.set_id = s.id)
		FROM flashcard_sets s
		WHERE s.id = ? AND s.user_id = ?;
	`, setID, userID)
	if err := row.Scan(&set.ID, &set.UserID, &set.Title, &set.SourceText, &set.CreatedAt, &set.CardCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, fmt.Errorf("load set %s: %w", setID, err)
	}
	return set, nil
}

// ListSets returns the user's sets, newest first.
func (s *SetService) ListSets(ctx context.Context, userID string) ([]models.FlashcardSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.title, s.source_text, s.created_at,
		       (SELECT COUNT(*) FROM flashcards c WHERE c.set_id = s.id)
		FROM flashcard_sets s
		WHERE s.user_id = ?
		ORDER BY s.created_at DESC;
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sets: %w", err)
	}
	defer rows.Close()

	var sets []models.FlashcardSet
	for rows.Next() {
		var set models.FlashcardSet
		if err := rows.Scan(&set.ID, &set.UserID, &set.Title, &set.SourceText, &set.CreatedAt, &set.CardCount); err != nil {
			return nil, fmt.Errorf("scan set: %w", err)
		}
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sets: %w", err)
	}
	return sets, nil
}

// ListCards returns a set's cards in insertion order.
func (s *SetService) ListCards(ctx context.Context, setID string) ([]models.Flashcard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, set_id, position, question, answer
		FROM flashcards
		WHERE set_id = ?
		ORDER BY position ASC;
	`, setID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Flashcard
	for rows.Next() {
		var card models.Flashcard
		if err := rows.Scan(&card.ID, &card.SetID, &card.Position, &card.Question, &card.Answer); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return cards, nil
}
