package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open connects to the SQLite database and runs schema migrations.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return conn, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS subjects (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(user_id, name),
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS exams (
			id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			file_url TEXT NOT NULL,
			file_type TEXT NOT NULL CHECK(file_type IN ('pdf','txt')),
			analysis_status TEXT NOT NULL DEFAULT 'pending'
				CHECK(analysis_status IN ('pending','processing','completed','error')),
			error_message TEXT NOT NULL DEFAULT '',
			file_size INTEGER NOT NULL CHECK(file_size > 0),
			original_file_name TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(subject_id) REFERENCES subjects(id) ON DELETE CASCADE,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS study_guides (
			id TEXT PRIMARY KEY,
			exam_id TEXT NOT NULL UNIQUE,
			subject_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			topics TEXT NOT NULL,
			overall_summary TEXT NOT NULL,
			total_topics INTEGER NOT NULL DEFAULT 0,
			processing_time_ms INTEGER NOT NULL DEFAULT 0,
			ai_model TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(exam_id) REFERENCES exams(id) ON DELETE CASCADE,
			FOREIGN KEY(subject_id) REFERENCES subjects(id) ON DELETE CASCADE,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_subjects_user ON subjects(user_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_exams_user_subject ON exams(user_id, subject_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_exams_status ON exams(analysis_status, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_guides_user_subject ON study_guides(user_id, subject_id, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}
