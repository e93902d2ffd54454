package api

import (
	"net/http"

	"leanpass/internal/models"
)

type subjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request, user *models.User) {
	switch r.Method {
	case http.MethodGet:
		subjects, err := s.subjects.List(r.Context(), user.ID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, subjects)
	case http.MethodPost:
		var body subjectRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		subject, err := s.subjects.Create(r.Context(), user.ID, body.Name, body.Description)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, subject)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleSubject(w http.ResponseWriter, r *http.Request, user *models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		subject, err := s.subjects.Get(r.Context(), user.ID, id)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, subject)
	case http.MethodPut:
		var body subjectRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		subject, err := s.subjects.Update(r.Context(), user.ID, id, body.Name, body.Description)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, subject)
	case http.MethodDelete:
		if err := s.subjects.Delete(r.Context(), user.ID, id); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "Subject deleted")
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
