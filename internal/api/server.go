// Package api exposes the study-guide services over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"leanpass/internal/auth"
	"leanpass/internal/extract"
	"leanpass/internal/llm"
	"leanpass/internal/logger"
	"leanpass/internal/models"
	"leanpass/internal/services"
)

const (
	maxMultipartMemory = 8 << 20 // 8 MB
	maxJSONBody        = 1 << 20
	maxJobExams        = 20
)

// Services groups the domain services the API serves.
type Services struct {
	Users    *services.UserService
	Subjects *services.SubjectService
	Exams    *services.ExamService
	Guides   *services.StudyGuideService
	Analysis *services.AnalysisService
}

type Server struct {
	mux       *http.ServeMux
	users     *services.UserService
	subjects  *services.SubjectService
	exams     *services.ExamService
	guides    *services.StudyGuideService
	analysis  *services.AnalysisService
	sessions  *auth.Sessions
	jobs      *JobManager
	log       *logger.Logger
	maxUpload int64
}

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewServer(svc Services, sessions *auth.Sessions, log *logger.Logger, maxUpload int64) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if maxUpload <= 0 {
		maxUpload = services.DefaultMaxFileSize
	}
	s := &Server{
		mux:       http.NewServeMux(),
		users:     svc.Users,
		subjects:  svc.Subjects,
		exams:     svc.Exams,
		guides:    svc.Guides,
		analysis:  svc.Analysis,
		sessions:  sessions,
		jobs:      NewJobManager(),
		log:       log,
		maxUpload: maxUpload,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("/api/auth/me", s.requireAuth(s.handleMe))

	s.mux.HandleFunc("/api/subjects", s.requireAuth(s.handleSubjects))
	s.mux.HandleFunc("/api/subjects/{id}", s.requireAuth(s.handleSubject))
	s.mux.HandleFunc("/api/exams", s.requireAuth(s.handleExams))
	s.mux.HandleFunc("/api/exams/{id}", s.requireAuth(s.handleExam))
	s.mux.HandleFunc("/api/analyze", s.requireAuth(s.handleAnalyze))
	s.mux.HandleFunc("/api/analyze/jobs", s.requireAuth(s.handleCreateAnalysisJob))
	s.mux.HandleFunc("/api/analyze/jobs/{id}", s.requireAuth(s.handleJobStatus))
	s.mux.HandleFunc("/api/study-guides", s.requireAuth(s.handleStudyGuides))
	s.mux.HandleFunc("/api/study-guides/{id}", s.requireAuth(s.handleStudyGuide))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authedHandler receives the user resolved from the session.
type authedHandler func(w http.ResponseWriter, r *http.Request, user *models.User)

func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.sessions.Resolve(r)
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err != nil {
			s.log.Error("resolve session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if rec, ok := w.(*statusRecorder); ok {
			rec.userID = identity.User.ID
		}
		r = r.WithContext(auth.WithIdentity(r.Context(), identity))
		next(w, r, identity.User)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	userID string
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		kv := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(started).Milliseconds(),
		}
		if rec.userID != "" {
			kv = append(kv, "user_id", rec.userID)
		}
		if rec.status >= http.StatusInternalServerError {
			s.log.Warn("request failed", kv...)
			return
		}
		s.log.Debug("request", kv...)
	})
}

// writeServiceError maps domain errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *services.ValidationError
	var extractErr *extract.Error
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrNoText):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, extract.ErrTruncated), errors.Is(err, services.ErrNoTopics):
		writeError(w, http.StatusUnprocessableEntity, services.FailureMessage(err))
	case errors.Is(err, llm.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, services.FailureMessage(err))
	case errors.As(err, &extractErr), errors.Is(err, llm.ErrUpstream):
		s.log.Warn("upstream analysis failure", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, services.FailureMessage(err))
	default:
		s.log.Error("request error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID returns the {id} wildcard if it is a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if err := uuid.Validate(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// readUpload reads the named multipart file, refusing anything above limit.
func readUpload(r *http.Request, field string, limit int64) (name, mime string, data []byte, err error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", "", nil, &services.ValidationError{Field: field, Message: "a PDF or TXT file is required"}
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return "", "", nil, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	if int64(len(data)) > limit {
		return "", "", nil, &services.ValidationError{Field: field, Message: fmt.Sprintf("file exceeds %d bytes", limit)}
	}
	return header.Filename, header.Header.Get("Content-Type"), data, nil
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: true, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
