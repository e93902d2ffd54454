package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"leanpass/internal/models"
	"leanpass/internal/services"
)

type examTitleRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleExams(w http.ResponseWriter, r *http.Request, user *models.User) {
	switch r.Method {
	case http.MethodGet:
		s.handleListExams(w, r, user)
	case http.MethodPost:
		s.handleUploadExam(w, r, user)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleListExams(w http.ResponseWriter, r *http.Request, user *models.User) {
	query := r.URL.Query()
	filter := services.ExamFilter{
		SubjectID: strings.TrimSpace(query.Get("subjectId")),
		Status:    models.AnalysisStatus(strings.TrimSpace(query.Get("status"))),
	}
	if filter.SubjectID != "" && uuid.Validate(filter.SubjectID) != nil {
		writeError(w, http.StatusBadRequest, "invalid subjectId")
		return
	}

	exams, err := s.exams.List(r.Context(), user.ID, filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, exams)
}

func (s *Server) handleUploadExam(w http.ResponseWriter, r *http.Request, user *models.User) {
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	subjectID := strings.TrimSpace(r.FormValue("subjectId"))
	if uuid.Validate(subjectID) != nil {
		writeError(w, http.StatusBadRequest, "a valid subjectId is required")
		return
	}
	name, mime, data, err := readUpload(r, "file", s.maxUpload)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	exam, err := s.exams.Create(r.Context(), user.ID, services.ExamUpload{
		SubjectID: subjectID,
		Title:     r.FormValue("title"),
		FileName:  name,
		MIME:      mime,
		Data:      data,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.log.Info("exam uploaded", "exam_id", exam.ID, "file_type", string(exam.FileType), "size", exam.FileSize)

	exam.FileURL = ""
	writeData(w, http.StatusCreated, exam)
}

func (s *Server) handleExam(w http.ResponseWriter, r *http.Request, user *models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		exam, err := s.exams.Get(r.Context(), user.ID, id)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, exam)
	case http.MethodPut:
		var body examTitleRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		exam, err := s.exams.UpdateTitle(r.Context(), user.ID, id, body.Title)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		exam.FileURL = ""
		writeData(w, http.StatusOK, exam)
	case http.MethodDelete:
		if err := s.exams.Delete(r.Context(), user.ID, id); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "Exam deleted")
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
