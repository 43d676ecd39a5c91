package advisory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clinical-scribe/internal/consultation"
	"clinical-scribe/internal/patient"
)

// Handler exposes the advisory helpers over HTTP. Every endpoint returns
// usable text; helper-level failures degrade to fallbacks, so the only error
// responses here are bad ids and missing records.
type Handler struct {
	patients      patient.Repository
	consultations consultation.Repository

	scheduling *Scheduling
	email      *Email
	summary    *Summary
	imaging    *Imaging
}

func NewHandler(patients patient.Repository, consultations consultation.Repository, scheduling *Scheduling, email *Email, summary *Summary, imaging *Imaging) *Handler {
	return &Handler{
		patients:      patients,
		consultations: consultations,
		scheduling:    scheduling,
		email:         email,
		summary:       summary,
		imaging:       imaging,
	}
}

func (h *Handler) PatientSummary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return
	}
	p, err := h.patients.GetByID(r.Context(), id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	history, err := h.consultations.ListByPatient(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"summary": h.summary.PatientHistory(r.Context(), p, history),
	})
}

func (h *Handler) AppointmentSuggestion(w http.ResponseWriter, r *http.Request) {
	c, note, ok := h.loadNoted(w, r)
	if !ok {
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"suggestion": h.scheduling.SuggestNextAppointment(r.Context(), c, note),
	})
}

func (h *Handler) PatientEmail(w http.ResponseWriter, r *http.Request) {
	c, note, ok := h.loadNoted(w, r)
	if !ok {
		return
	}
	p, err := h.patients.GetByID(r.Context(), c.PatientID)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"email": h.email.PatientExplanation(r.Context(), p, note),
	})
}

type ImagingRequest struct {
	Modality     string `json:"modality"`
	BodyPart     string `json:"body_part"`
	Observations string `json:"observations"`
}

func (h *Handler) DescribeImaging(w http.ResponseWriter, r *http.Request) {
	var req ImagingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Observations == "" {
		http.Error(w, "observations are required", http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"findings": h.imaging.DescribeFindings(r.Context(), req.Modality, req.BodyPart, req.Observations),
	})
}

// loadNoted fetches a consultation that must already carry a note.
func (h *Handler) loadNoted(w http.ResponseWriter, r *http.Request) (*consultation.Consultation, *consultation.GeneratedNote, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid consultation ID", http.StatusBadRequest)
		return nil, nil, false
	}
	c, err := h.consultations.GetByID(r.Context(), id)
	if err != nil {
		writeLookupError(w, err)
		return nil, nil, false
	}
	if c.GeneratedNoteID == nil {
		http.Error(w, "consultation has no generated note yet", http.StatusConflict)
		return nil, nil, false
	}
	note, err := h.consultations.GetNote(r.Context(), *c.GeneratedNoteID)
	if err != nil {
		writeLookupError(w, err)
		return nil, nil, false
	}
	return c, note, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, consultation.ErrNotFound) || errors.Is(err, consultation.ErrNoteNotFound) || errors.Is(err, patient.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/patients/{id}/summary", h.PatientSummary)
	r.Get("/consultations/{id}/appointment-suggestion", h.AppointmentSuggestion)
	r.Get("/consultations/{id}/patient-email", h.PatientEmail)
	r.Post("/imaging/describe", h.DescribeImaging)
}
