package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"leanpass/internal/models"
)

func (s *Server) handleStudyGuides(w http.ResponseWriter, r *http.Request, user *models.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	subjectID := strings.TrimSpace(r.URL.Query().Get("subjectId"))
	if subjectID != "" && uuid.Validate(subjectID) != nil {
		writeError(w, http.StatusBadRequest, "invalid subjectId")
		return
	}

	guides, err := s.guides.List(r.Context(), user.ID, subjectID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, guides)
}

func (s *Server) handleStudyGuide(w http.ResponseWriter, r *http.Request, user *models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		guide, err := s.guides.Get(r.Context(), user.ID, id)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, guide)
	case http.MethodDelete:
		if err := s.guides.Delete(r.Context(), user.ID, id); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "Study guide deleted")
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}
