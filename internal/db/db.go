package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open connects to the SQLite database and runs schema migrations.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_foreign_keys=1", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return conn, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS flashcard_sets (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			source_text TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS flashcards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			set_id TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			FOREIGN KEY(set_id) REFERENCES flashcard_sets(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS quiz_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			set_id TEXT NOT NULL,
			correct_count INTEGER NOT NULL,
			total_count INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(set_id) REFERENCES flashcard_sets(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS set_schedules (
			user_id TEXT NOT NULL,
			set_id TEXT NOT NULL,
			due DATETIME,
			stability REAL NOT NULL DEFAULT 0,
			difficulty REAL NOT NULL DEFAULT 0,
			elapsed_days INTEGER NOT NULL DEFAULT 0,
			scheduled_days INTEGER NOT NULL DEFAULT 0,
			reps INTEGER NOT NULL DEFAULT 0,
			lapses INTEGER NOT NULL DEFAULT 0,
			state INTEGER NOT NULL DEFAULT 0,
			last_review DATETIME,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY(user_id, set_id),
			FOREIGN KEY(set_id) REFERENCES flashcard_sets(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sets_user ON flashcard_sets(user_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_set ON flashcards(set_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_results_user_set ON quiz_results(user_id, set_id);`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_due ON set_schedules(due);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}

	return nil
}
