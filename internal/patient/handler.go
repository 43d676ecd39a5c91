package patient

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

type CreateRequest struct {
	FirstName           string   `json:"first_name"`
	LastName            string   `json:"last_name"`
	DOB                 string   `json:"dob,omitempty"`
	MedicalRecordNumber string   `json:"medical_record_number,omitempty"`
	Allergies           []string `json:"allergies,omitempty"`
	ChronicConditions   []string `json:"chronic_conditions,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		http.Error(w, "first_name and last_name are required", http.StatusBadRequest)
		return
	}

	p := &Patient{
		ID:                  uuid.New(),
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		MedicalRecordNumber: req.MedicalRecordNumber,
		Allergies:           req.Allergies,
		ChronicConditions:   req.ChronicConditions,
		CreatedAt:           time.Now(),
	}
	if req.DOB != "" {
		dob, err := time.Parse("2006-01-02", req.DOB)
		if err != nil {
			http.Error(w, "dob must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		p.DOB = &dob
	}

	if err := h.repo.Save(r.Context(), p); err != nil {
		http.Error(w, "Failed to create patient", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(p)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid patient ID", http.StatusBadRequest)
		return
	}
	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	patients, err := h.repo.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if patients == nil {
		patients = []Patient{}
	}
	json.NewEncoder(w).Encode(patients)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/patients", h.Create)
	r.Get("/patients", h.List)
	r.Get("/patients/{id}", h.Get)
}
