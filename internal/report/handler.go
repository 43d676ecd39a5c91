package report

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clinical-scribe/internal/consultation"
)

type Handler struct {
	svc           *Service
	consultations consultation.Repository
}

func NewHandler(svc *Service, consultations consultation.Repository) *Handler {
	return &Handler{svc: svc, consultations: consultations}
}

// Download serves the note PDF for a finished consultation.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid consultation ID", http.StatusBadRequest)
		return
	}

	c, err := h.consultations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, consultation.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if c.GeneratedNoteID == nil {
		http.Error(w, "consultation has no generated note yet", http.StatusConflict)
		return
	}
	note, err := h.consultations.GetNote(r.Context(), *c.GeneratedNoteID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	pdf, err := h.svc.Render(c, note)
	if err != nil {
		http.Error(w, "Failed to render report: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="note_%s.pdf"`, c.ID))
	w.Write(pdf)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/consultations/{id}/report", h.Download)
}
