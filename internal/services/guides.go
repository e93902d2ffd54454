package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leanpass/internal/models"
)

type StudyGuideService struct {
	db *sql.DB
}

func NewStudyGuideService(db *sql.DB) *StudyGuideService {
	return &StudyGuideService{db: db}
}

const guideColumns = `
	g.id, g.exam_id, g.subject_id, g.user_id, g.topics, g.overall_summary, g.total_topics,
	g.processing_time_ms, g.ai_model, g.created_at, g.updated_at,
	COALESCE(e.title, ''), COALESCE(e.original_file_name, ''), COALESCE(s.name, '')`

const guideJoins = `
	FROM study_guides g
	LEFT JOIN exams e ON e.id = g.exam_id
	LEFT JOIN subjects s ON s.id = g.subject_id`

// Save stores the guide for its exam, replacing any earlier guide for the
// same exam. The guide's ID and timestamps are filled in.
func (s *StudyGuideService) Save(ctx context.Context, guide *models.StudyGuide) error {
	topics, err := json.Marshal(guide.Topics)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}
	guide.TotalTopics = len(guide.Topics)

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM study_guides WHERE exam_id = ? AND user_id = ?;`, guide.ExamID, guide.UserID); err != nil {
		return fmt.Errorf("replace study guide: %w", err)
	}
	guide.ID = uuid.NewString()
	guide.CreatedAt = now
	guide.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO study_guides (id, exam_id, subject_id, user_id, topics, overall_summary, total_topics,
			processing_time_ms, ai_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, guide.ID, guide.ExamID, guide.SubjectID, guide.UserID, string(topics), guide.OverallSummary,
		guide.TotalTopics, guide.ProcessingTimeMS, guide.AIModel, now, now); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("study guide for exam %s: %w", guide.ExamID, ErrConflict)
		}
		return fmt.Errorf("insert study guide: %w", err)
	}
	return tx.Commit()
}

// List returns the user's guides, newest first, optionally for one subject.
func (s *StudyGuideService) List(ctx context.Context, userID, subjectID string) ([]models.StudyGuide, error) {
	query := `SELECT` + guideColumns + guideJoins + ` WHERE g.user_id = ?`
	args := []any{userID}
	if subjectID != "" {
		query += ` AND g.subject_id = ?`
		args = append(args, subjectID)
	}
	query += ` ORDER BY g.created_at DESC, g.rowid DESC;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query study guides: %w", err)
	}
	defer rows.Close()

	guides := []models.StudyGuide{}
	for rows.Next() {
		guide, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		guides = append(guides, *guide)
	}
	return guides, rows.Err()
}

func (s *StudyGuideService) Get(ctx context.Context, userID, id string) (*models.StudyGuide, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+guideColumns+guideJoins+` WHERE g.id = ? AND g.user_id = ?;`, id, userID)
	guide, err := scanGuide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return guide, err
}

// ForExam returns the guide produced for an exam.
func (s *StudyGuideService) ForExam(ctx context.Context, userID, examID string) (*models.StudyGuide, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+guideColumns+guideJoins+` WHERE g.exam_id = ? AND g.user_id = ?;`, examID, userID)
	guide, err := scanGuide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return guide, err
}

func (s *StudyGuideService) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM study_guides WHERE id = ? AND user_id = ?;`, id, userID)
	if err != nil {
		return fmt.Errorf("delete study guide: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanGuide(row rowScanner) (*models.StudyGuide, error) {
	var guide models.StudyGuide
	var topics string
	if err := row.Scan(
		&guide.ID,
		&guide.ExamID,
		&guide.SubjectID,
		&guide.UserID,
		&topics,
		&guide.OverallSummary,
		&guide.TotalTopics,
		&guide.ProcessingTimeMS,
		&guide.AIModel,
		&guide.CreatedAt,
		&guide.UpdatedAt,
		&guide.ExamTitle,
		&guide.OriginalFileName,
		&guide.SubjectName,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan study guide: %w", err)
	}
	if err := json.Unmarshal([]byte(topics), &guide.Topics); err != nil {
		return nil, fmt.Errorf("decode topics of guide %s: %w", guide.ID, err)
	}
	return &guide, nil
}
