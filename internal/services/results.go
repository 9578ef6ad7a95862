package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"notedeck/internal/models"
)

// ResultService records completed quiz passes. It implements quiz.ResultSink.
type ResultService struct {
	db       *sql.DB
	schedule *ScheduleService
}

func NewResultService(db *sql.DB, schedule *ScheduleService) *ResultService {
	return &ResultService{db: db, schedule: schedule}
}

// SaveResult inserts one quiz result row and feeds the score into the set's
// review schedule. The schedule update is advisory: its failure is logged but
// does not fail the save.
func (s *ResultService) SaveResult(ctx context.Context, userID, setID string, correctCount, totalCount int) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO quiz_results (user_id, set_id, correct_count, total_count, created_at)
		VALUES (?, ?, ?, ?, ?);
	`, userID, setID, correctCount, totalCount, now); err != nil {
		return fmt.Errorf("insert quiz result: %w", err)
	}

	if s.schedule != nil {
		if _, err := s.schedule.ReviewSet(ctx, userID, setID, correctCount, totalCount); err != nil {
			log.Printf("update review schedule for set %s: %v", setID, err)
		}
	}
	return nil
}

// ListResults returns the user's quiz history, newest first. An empty setID
// returns results across all sets.
func (s *ResultService) ListResults(ctx context.Context, userID, setID string) ([]models.QuizResult, error) {
	query := `
		SELECT id, user_id, set_id, correct_count, total_count, created_at
		FROM quiz_results
		WHERE user_id = ?`
	args := []any{userID}
	if setID != "" {
		query += ` AND set_id = ?`
		args = append(args, setID)
	}
	query += ` ORDER BY created_at DESC;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quiz results: %w", err)
	}
	defer rows.Close()

	var results []models.QuizResult
	for rows.Next() {
		var result models.QuizResult
		if err := rows.Scan(&result.ID, &result.UserID, &result.SetID, &result.CorrectCount, &result.TotalCount, &result.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quiz result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quiz results: %w", err)
	}
	return results, nil
}
