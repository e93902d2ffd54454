package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"leanpass/internal/models"
	"leanpass/internal/services"
)

type analyzeRequest struct {
	ExamID string `json:"examId"`
}

type analysisJobRequest struct {
	ExamIDs []string `json:"examIds"`
}

// handleAnalyze runs the extended analysis of a stored exam for a JSON
// body, or the basic analysis of an uploaded file that is never stored.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, user *models.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if isMultipart(r) {
		if !s.parseMultipart(w, r) {
			return
		}
		defer r.MultipartForm.RemoveAll()

		name, mime, data, err := readUpload(r, "file", s.maxUpload)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		result, err := s.analysis.AnalyzeDocument(r.Context(), name, mime, data)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, result)
		return
	}

	var body analyzeRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if uuid.Validate(body.ExamID) != nil {
		writeError(w, http.StatusBadRequest, "a valid examId is required")
		return
	}
	guide, err := s.analysis.AnalyzeExam(r.Context(), user.ID, body.ExamID, nil)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, guide)
}

func (s *Server) handleCreateAnalysisJob(w http.ResponseWriter, r *http.Request, user *models.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var body analysisJobRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.ExamIDs) == 0 {
		writeError(w, http.StatusBadRequest, "examIds must not be empty")
		return
	}
	if len(body.ExamIDs) > maxJobExams {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d exams per job", maxJobExams))
		return
	}

	seen := make(map[string]bool, len(body.ExamIDs))
	targets := make([]JobTarget, 0, len(body.ExamIDs))
	for _, id := range body.ExamIDs {
		if uuid.Validate(id) != nil {
			writeError(w, http.StatusBadRequest, "invalid exam id "+id)
			return
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		exam, err := s.exams.Get(r.Context(), user.ID, id)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		targets = append(targets, JobTarget{ExamID: exam.ID, Title: exam.Title})
	}

	jobID, snapshot := s.jobs.CreateJob(user.ID, targets)
	s.log.Info("analysis job queued", "job_id", jobID, "exams", len(targets))

	go s.runAnalysisJob(context.WithoutCancel(r.Context()), jobID, user.ID, targets)

	writeData(w, http.StatusAccepted, snapshot)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request, user *models.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	job, ok := s.jobs.GetJob(user.ID, id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeData(w, http.StatusOK, job)
}

func (s *Server) runAnalysisJob(ctx context.Context, jobID, userID string, targets []JobTarget) {
	log := s.log.With("job_id", jobID)

	s.jobs.MarkProcessing(jobID)
	for idx, target := range targets {
		s.jobs.MarkExamStarted(jobID, idx)
		progress := func(step, message string, current, total int) {
			s.jobs.UpdateExamProgress(jobID, idx, step, message, current, total)
		}
		guide, err := s.analysis.AnalyzeExam(ctx, userID, target.ExamID, progress)
		if err != nil {
			log.Warn("job exam failed", "exam_id", target.ExamID, "error", err)
			s.jobs.MarkExamError(jobID, idx, services.FailureMessage(err))
			continue
		}
		s.jobs.MarkExamComplete(jobID, idx, ExamResult{GuideID: guide.ID, TotalTopics: guide.TotalTopics})
	}
	s.jobs.MarkFinished(jobID)
	log.Info("analysis job finished")
}
