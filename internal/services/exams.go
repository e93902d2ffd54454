package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"leanpass/internal/models"
)

const (
	maxTitleLen = 200
	// DefaultMaxFileSize caps uploads when no limit is configured.
	DefaultMaxFileSize = 10 << 20
)

// ExamUpload is the input for ExamService.Create.
type ExamUpload struct {
	SubjectID string
	Title     string
	FileName  string
	MIME      string
	Data      []byte
}

// ExamFilter narrows ExamService.List. Empty fields match everything.
type ExamFilter struct {
	SubjectID string
	Status    models.AnalysisStatus
}

type ExamService struct {
	db          *sql.DB
	subjects    *SubjectService
	maxFileSize int64
}

func NewExamService(db *sql.DB, subjects *SubjectService, maxFileSize int64) *ExamService {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &ExamService{db: db, subjects: subjects, maxFileSize: maxFileSize}
}

// DetectFileType maps a MIME type or, failing that, a file extension onto
// one of the accepted exam formats.
func DetectFileType(fileName, mime string) (models.FileType, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "application/pdf":
		return models.FilePDF, true
	case "text/plain":
		return models.FileTXT, true
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return models.FilePDF, true
	case ".txt":
		return models.FileTXT, true
	}
	return "", false
}

// Create stores an uploaded exam as a data URL under a subject the user owns.
func (s *ExamService) Create(ctx context.Context, userID string, upload ExamUpload) (*models.Exam, error) {
	title := strings.TrimSpace(upload.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(upload.FileName), filepath.Ext(upload.FileName))
	}
	if title == "" || title == "." {
		return nil, invalid("title", "exam title is required")
	}
	if len([]rune(title)) > maxTitleLen {
		return nil, invalid("title", "title cannot exceed 200 characters")
	}
	fileType, ok := DetectFileType(upload.FileName, upload.MIME)
	if !ok {
		return nil, invalid("file", "only PDF and TXT files are supported")
	}
	size := int64(len(upload.Data))
	if size == 0 {
		return nil, invalid("file", "file is empty")
	}
	if size > s.maxFileSize {
		return nil, invalid("file", fmt.Sprintf("file exceeds %d bytes", s.maxFileSize))
	}
	if _, err := s.subjects.Get(ctx, userID, upload.SubjectID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	exam := &models.Exam{
		ID:               uuid.NewString(),
		SubjectID:        upload.SubjectID,
		UserID:           userID,
		Title:            title,
		FileURL:          EncodeDataURL(fileType.MIME(), upload.Data),
		FileType:         fileType,
		AnalysisStatus:   models.StatusPending,
		FileSize:         size,
		OriginalFileName: filepath.Base(upload.FileName),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO exams (id, subject_id, user_id, title, file_url, file_type, analysis_status,
			error_message, file_size, original_file_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', ?, ?, ?, ?);
	`, exam.ID, exam.SubjectID, userID, exam.Title, exam.FileURL, exam.FileType, exam.AnalysisStatus,
		exam.FileSize, exam.OriginalFileName, now, now); err != nil {
		return nil, fmt.Errorf("insert exam: %w", err)
	}
	return exam, nil
}

// List returns the user's exams without their file payloads, newest first.
func (s *ExamService) List(ctx context.Context, userID string, filter ExamFilter) ([]models.Exam, error) {
	query := `
		SELECT id, subject_id, user_id, title, '', file_type, analysis_status, error_message,
			file_size, original_file_name, created_at, updated_at
		FROM exams WHERE user_id = ?`
	args := []any{userID}
	if filter.SubjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, filter.SubjectID)
	}
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, invalid("status", "unknown analysis status")
		}
		query += ` AND analysis_status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exams: %w", err)
	}
	defer rows.Close()

	exams := []models.Exam{}
	for rows.Next() {
		exam, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *exam)
	}
	return exams, rows.Err()
}

// Get returns one exam including its file payload.
func (s *ExamService) Get(ctx context.Context, userID, id string) (*models.Exam, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, user_id, title, file_url, file_type, analysis_status, error_message,
			file_size, original_file_name, created_at, updated_at
		FROM exams WHERE id = ? AND user_id = ?;
	`, id, userID)
	exam, err := scanExam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return exam, err
}

func (s *ExamService) UpdateTitle(ctx context.Context, userID, id, title string) (*models.Exam, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("title", "exam title is required")
	}
	if len([]rune(title)) > maxTitleLen {
		return nil, invalid("title", "title cannot exceed 200 characters")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE exams SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?;
	`, title, time.Now().UTC(), id, userID)
	if err != nil {
		return nil, fmt.Errorf("update exam title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, userID, id)
}

// SetStatus records the analysis state. The message is kept only for
// StatusError and cleared otherwise.
func (s *ExamService) SetStatus(ctx context.Context, userID, id string, status models.AnalysisStatus, message string) error {
	if !status.Valid() {
		return invalid("status", "unknown analysis status")
	}
	if status != models.StatusError {
		message = ""
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE exams SET analysis_status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND user_id = ?;
	`, status, message, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("update exam status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the exam and its study guide.
func (s *ExamService) Delete(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM study_guides WHERE exam_id = ? AND user_id = ?;`, id, userID); err != nil {
		return fmt.Errorf("delete exam guide: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id = ? AND user_id = ?;`, id, userID)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (*models.Exam, error) {
	var exam models.Exam
	if err := row.Scan(
		&exam.ID,
		&exam.SubjectID,
		&exam.UserID,
		&exam.Title,
		&exam.FileURL,
		&exam.FileType,
		&exam.AnalysisStatus,
		&exam.ErrorMessage,
		&exam.FileSize,
		&exam.OriginalFileName,
		&exam.CreatedAt,
		&exam.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan exam: %w", err)
	}
	return &exam, nil
}
