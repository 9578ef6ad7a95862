package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"notedeck/internal/models"
)

// ScheduleService keeps one FSRS schedule per (user, set). Each completed
// quiz is treated as a review whose rating is derived from the score, so sets
// the user struggles with come due again sooner.
type ScheduleService struct {
	db     *sql.DB
	params fsrs.Parameters
}

func NewScheduleService(db *sql.DB) *ScheduleService {
	return &ScheduleService{db: db, params: fsrs.DefaultParam()}
}

// RatingForScore maps a quiz score to an FSRS rating by quartile.
func RatingForScore(correctCount, totalCount int) fsrs.Rating {
	if totalCount <= 0 {
		return fsrs.Again
	}
	percent := 100 * correctCount / totalCount
	switch {
	case percent < 50:
		return fsrs.Again
	case percent < 70:
		return fsrs.Hard
	case percent < 90:
		return fsrs.Good
	default:
		return fsrs.Easy
	}
}

// ReviewSet folds a completed quiz score into the set's schedule and returns
// the updated state.
func (s *ScheduleService) ReviewSet(ctx context.Context, userID, setID string, correctCount, totalCount int) (*models.SetSchedule, error) {
	schedule, err := s.getSchedule(ctx, userID, setID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		schedule = &models.SetSchedule{UserID: userID, SetID: setID}
	}

	now := time.Now().UTC()
	rating := RatingForScore(correctCount, totalCount)
	scheduling := s.params.Repeat(schedule.ToFSRSCard(), now)
	info, ok := scheduling[rating]
	if !ok {
		return nil, fmt.Errorf("rating %d not supported", rating)
	}
	schedule.ApplyFSRSCard(info.Card)
	schedule.UpdatedAt = now

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO set_schedules (user_id, set_id, due, stability, difficulty, elapsed_days,
		                           scheduled_days, reps, lapses, state, last_review, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, set_id) DO UPDATE SET
			due = excluded.due, stability = excluded.stability, difficulty = excluded.difficulty,
			elapsed_days = excluded.elapsed_days, scheduled_days = excluded.scheduled_days,
			reps = excluded.reps, lapses = excluded.lapses, state = excluded.state,
			last_review = excluded.last_review, updated_at = excluded.updated_at;
	`,
		schedule.UserID,
		schedule.SetID,
		nullTime(schedule.Due),
		schedule.Stability,
		schedule.Difficulty,
		schedule.ElapsedDays,
		schedule.ScheduledDays,
		schedule.Reps,
		schedule.Lapses,
		schedule.State,
		nullTime(schedule.LastReview),
		schedule.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("upsert set schedule: %w", err)
	}

	return schedule, nil
}

func (s *ScheduleService) getSchedule(ctx context.Context, userID, setID string) (*models.SetSchedule, error) {
	schedule := &models.SetSchedule{}
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, set_id, due, stability, difficulty, elapsed_days,
		       scheduled_days, reps, lapses, state, last_review, updated_at
		FROM set_schedules
		WHERE user_id = ? AND set_id = ?;
	`, userID, setID)
	if err := row.Scan(
		&schedule.UserID,
		&schedule.SetID,
		&schedule.Due,
		&schedule.Stability,
		&schedule.Difficulty,
		&schedule.ElapsedDays,
		&schedule.ScheduledDays,
		&schedule.Reps,
		&schedule.Lapses,
		&schedule.State,
		&schedule.LastReview,
		&schedule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return schedule, nil
}

// DueSets lists the user's sets whose next review is due, soonest first.
func (s *ScheduleService) DueSets(ctx context.Context, userID string, now time.Time) ([]models.SetSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sc.user_id, sc.set_id, sc.due, sc.stability, sc.difficulty, sc.elapsed_days,
		       sc.scheduled_days, sc.reps, sc.lapses, sc.state, sc.last_review, sc.updated_at,
		       fs.title
		FROM set_schedules sc
		JOIN flashcard_sets fs ON fs.id = sc.set_id
		WHERE sc.user_id = ? AND sc.due IS NOT NULL AND sc.due <= ?
		ORDER BY sc.due ASC;
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list due sets: %w", err)
	}
	defer rows.Close()

	var schedules []models.SetSchedule
	for rows.Next() {
		var schedule models.SetSchedule
		if err := rows.Scan(
			&schedule.UserID,
			&schedule.SetID,
			&schedule.Due,
			&schedule.Stability,
			&schedule.Difficulty,
			&schedule.ElapsedDays,
			&schedule.ScheduledDays,
			&schedule.Reps,
			&schedule.Lapses,
			&schedule.State,
			&schedule.LastReview,
			&schedule.UpdatedAt,
			&schedule.SetTitle,
		); err != nil {
			return nil, fmt.Errorf("scan set schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate set schedules: %w", err)
	}
	return schedules, nil
}

func nullTime(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}
