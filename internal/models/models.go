package models

import (
	"time"

	"leanpass/internal/extract"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Subject struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type FileType string

const (
	FilePDF FileType = "pdf"
	FileTXT FileType = "txt"
)

// MIME returns the content type stored in the exam's data URL.
func (f FileType) MIME() string {
	if f == FilePDF {
		return "application/pdf"
	}
	return "text/plain"
}

type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusError      AnalysisStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s AnalysisStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Exam is an uploaded exam document. FileURL holds the whole upload as a
// base64 data URL and is omitted from list responses.
type Exam struct {
	ID               string         `json:"id"`
	SubjectID        string         `json:"subjectId"`
	UserID           string         `json:"userId"`
	Title            string         `json:"title"`
	FileURL          string         `json:"fileUrl,omitempty"`
	FileType         FileType       `json:"fileType"`
	AnalysisStatus   AnalysisStatus `json:"analysisStatus"`
	ErrorMessage     string         `json:"errorMessage,omitempty"`
	FileSize         int64          `json:"fileSize"`
	OriginalFileName string         `json:"originalFileName"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// StudyGuide is the persisted result of an extended analysis.
type StudyGuide struct {
	ID               string          `json:"id"`
	ExamID           string          `json:"examId"`
	SubjectID        string          `json:"subjectId"`
	UserID           string          `json:"userId"`
	Topics           []extract.Topic `json:"topics"`
	OverallSummary   string          `json:"overallSummary"`
	TotalTopics      int             `json:"totalTopics"`
	ProcessingTimeMS int64           `json:"processingTime"`
	AIModel          string          `json:"aiModel"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`

	// Populated by list queries.
	ExamTitle        string `json:"examTitle,omitempty"`
	OriginalFileName string `json:"originalFileName,omitempty"`
	SubjectName      string `json:"subjectName,omitempty"`
}
