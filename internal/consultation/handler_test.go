package consultation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type stubService struct {
	submit  func(ctx context.Context, req SubmitRequest) (*Consultation, error)
	status  func(ctx context.Context, id uuid.UUID) (*Status, error)
	get     func(ctx context.Context, id uuid.UUID) (*Detail, error)
	history func(ctx context.Context, patientID uuid.UUID) ([]Detail, error)
	approve func(ctx context.Context, id uuid.UUID) error
}

func (s *stubService) Submit(ctx context.Context, req SubmitRequest) (*Consultation, error) {
	return s.submit(ctx, req)
}
func (s *stubService) GetStatus(ctx context.Context, id uuid.UUID) (*Status, error) {
	return s.status(ctx, id)
}
func (s *stubService) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return s.get(ctx, id)
}
func (s *stubService) History(ctx context.Context, patientID uuid.UUID) ([]Detail, error) {
	return s.history(ctx, patientID)
}
func (s *stubService) Approve(ctx context.Context, id uuid.UUID) error {
	return s.approve(ctx, id)
}

func newRouter(svc Service) *chi.Mux {
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(svc))
	return r
}

func TestUploadReturnsConsultationID(t *testing.T) {
	created := &Consultation{ID: uuid.New(), State: StateQueued}
	svc := &stubService{
		submit: func(ctx context.Context, req SubmitRequest) (*Consultation, error) {
			if req.Transcript != "Patient reports fever." {
				t.Fatalf("transcript not forwarded: %q", req.Transcript)
			}
			return created, nil
		},
	}

	body, _ := json.Marshal(UploadRequest{
		PatientID:   uuid.New().String(),
		ClinicianID: uuid.New().String(),
		Transcript:  "Patient reports fever.",
	})
	req := httptest.NewRequest("POST", "/consultations/upload", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ConsultationID != created.ID.String() || resp.State != StateQueued {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestUploadRejectsBadPatientID(t *testing.T) {
	svc := &stubService{}
	body := []byte(`{"patient_id": "not-a-uuid", "clinician_id": "` + uuid.New().String() + `", "raw_transcript": "x"}`)
	req := httptest.NewRequest("POST", "/consultations/upload", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	id := uuid.New()
	svc := &stubService{
		status: func(ctx context.Context, got uuid.UUID) (*Status, error) {
			if got != id {
				t.Fatalf("wrong id: %s", got)
			}
			return &Status{ID: id, State: StateError, ErrorMessage: "boom"}, nil
		},
	}

	req := httptest.NewRequest("GET", "/consultations/"+id.String()+"/status", nil)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.State != StateError || status.ErrorMessage != "boom" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestStatusNotFoundMapsTo404(t *testing.T) {
	svc := &stubService{
		status: func(ctx context.Context, id uuid.UUID) (*Status, error) {
			return nil, ErrNotFound
		},
	}
	req := httptest.NewRequest("GET", "/consultations/"+uuid.New().String()+"/status", nil)
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestApproveEndpoint(t *testing.T) {
	id := uuid.New()
	approved := false
	svc := &stubService{
		approve: func(ctx context.Context, got uuid.UUID) error {
			approved = got == id
			return nil
		},
	}

	body := []byte(`{"approve": true, "clinician_id": "` + uuid.New().String() + `"}`)
	req := httptest.NewRequest("POST", "/consultations/"+id.String()+"/approve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !approved {
		t.Fatal("service not invoked")
	}
}

func TestApproveDeclinedSkipsService(t *testing.T) {
	svc := &stubService{
		approve: func(ctx context.Context, id uuid.UUID) error {
			t.Fatal("approve must not be called when declined")
			return nil
		},
	}

	body := []byte(`{"approve": false}`)
	req := httptest.NewRequest("POST", "/consultations/"+uuid.New().String()+"/approve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp ApprovalResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Approved {
		t.Fatal("declined approval should report approved=false")
	}
}

func TestApproveConflictMapsTo409(t *testing.T) {
	svc := &stubService{
		approve: func(ctx context.Context, id uuid.UUID) error {
			return ErrNotRunnable
		},
	}
	body := []byte(`{"approve": true}`)
	req := httptest.NewRequest("POST", "/consultations/"+uuid.New().String()+"/approve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}
