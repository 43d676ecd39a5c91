package consultation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clinical-scribe/internal/patient"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type UploadRequest struct {
	PatientID   string      `json:"patient_id"`
	ClinicianID string      `json:"clinician_id"`
	Transcript  string      `json:"raw_transcript"`
	VitalSigns  *VitalSigns `json:"vital_signs,omitempty"`
}

type UploadResponse struct {
	ConsultationID string `json:"consultation_id"`
	State          State  `json:"state"`
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return
	}
	clinicianID, err := uuid.Parse(req.ClinicianID)
	if err != nil {
		http.Error(w, "Invalid clinician ID", http.StatusBadRequest)
		return
	}

	c, err := h.svc.Submit(r.Context(), SubmitRequest{
		PatientID:   patientID,
		ClinicianID: clinicianID,
		Transcript:  req.Transcript,
		VitalSigns:  req.VitalSigns,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	json.NewEncoder(w).Encode(UploadResponse{
		ConsultationID: c.ID.String(),
		State:          c.State,
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	status, err := h.svc.GetStatus(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	json.NewEncoder(w).Encode(status)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	json.NewEncoder(w).Encode(detail)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return
	}
	details, err := h.svc.History(r.Context(), patientID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	json.NewEncoder(w).Encode(details)
}

type ApprovalRequest struct {
	Approve     bool   `json:"approve"`
	ClinicianID string `json:"clinician_id"`
}

type ApprovalResponse struct {
	Approved bool   `json:"approved"`
	Message  string `json:"message"`
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if !req.Approve {
		json.NewEncoder(w).Encode(ApprovalResponse{Approved: false, Message: "Consultation not approved"})
		return
	}

	if err := h.svc.Approve(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	json.NewEncoder(w).Encode(ApprovalResponse{Approved: true, Message: "Consultation approved and synced"})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid consultation ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoteNotFound), errors.Is(err, patient.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNotRunnable):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/consultations/upload", h.Upload)
	r.Get("/consultations/{id}", h.Get)
	r.Get("/consultations/{id}/status", h.GetStatus)
	r.Post("/consultations/{id}/approve", h.Approve)
	r.Get("/consultations/patient/{patientID}/history", h.History)
}
