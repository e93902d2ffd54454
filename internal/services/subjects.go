package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"leanpass/internal/models"
)

const (
	maxSubjectNameLen = 100
	maxDescriptionLen = 500
)

type SubjectService struct {
	db *sql.DB
}

func NewSubjectService(db *sql.DB) *SubjectService {
	return &SubjectService{db: db}
}

func validateSubject(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return "", "", invalid("name", "subject name is required")
	}
	if len([]rune(name)) > maxSubjectNameLen {
		return "", "", invalid("name", "subject name cannot exceed 100 characters")
	}
	if len([]rune(description)) > maxDescriptionLen {
		return "", "", invalid("description", "description cannot exceed 500 characters")
	}
	return name, description, nil
}

// List returns the user's subjects, newest first.
func (s *SubjectService) List(ctx context.Context, userID string) ([]models.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, created_at, updated_at
		FROM subjects WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC;
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	subjects := []models.Subject{}
	for rows.Next() {
		var subject models.Subject
		if err := rows.Scan(&subject.ID, &subject.UserID, &subject.Name, &subject.Description, &subject.CreatedAt, &subject.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

func (s *SubjectService) Create(ctx context.Context, userID, name, description string) (*models.Subject, error) {
	name, description, err := validateSubject(name, description)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	subject := &models.Subject{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO subjects (id, user_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, subject.ID, userID, name, description, now, now); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("subject %q: %w", name, ErrConflict)
		}
		return nil, fmt.Errorf("insert subject: %w", err)
	}
	return subject, nil
}

func (s *SubjectService) Get(ctx context.Context, userID, id string) (*models.Subject, error) {
	var subject models.Subject
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, created_at, updated_at
		FROM subjects WHERE id = ? AND user_id = ?;
	`, id, userID).Scan(&subject.ID, &subject.UserID, &subject.Name, &subject.Description, &subject.CreatedAt, &subject.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subject: %w", err)
	}
	return &subject, nil
}

func (s *SubjectService) Update(ctx context.Context, userID, id, name, description string) (*models.Subject, error) {
	name, description, err := validateSubject(name, description)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE subjects SET name = ?, description = ?, updated_at = ?
		WHERE id = ? AND user_id = ?;
	`, name, description, time.Now().UTC(), id, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("subject %q: %w", name, ErrConflict)
		}
		return nil, fmt.Errorf("update subject: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, userID, id)
}

// Delete removes the subject together with its exams and study guides.
func (s *SubjectService) Delete(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM study_guides WHERE subject_id = ? AND user_id = ?;`, id, userID); err != nil {
		return fmt.Errorf("delete subject guides: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE subject_id = ? AND user_id = ?;`, id, userID); err != nil {
		return fmt.Errorf("delete subject exams: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM subjects WHERE id = ? AND user_id = ?;`, id, userID)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
