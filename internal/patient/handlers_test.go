package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caio-healthchain/ms-patients/pkg/logger"
	"github.com/caio-healthchain/ms-patients/pkg/types"
)

// stubService returns canned results so the tests exercise only the
// transport adapter.
type stubService struct {
	patient    *types.Patient
	projection *types.PatientProjection
	paged      *types.PagedResult
	err        error

	lastActorID string
	lastFilters *types.SearchFilters
	lastPatch   *types.PatientPatch
	lastStatus  types.ValidationStatus
}

func (s *stubService) CreatePatient(ctx context.Context, patient *types.Patient, actorID string) (*types.Patient, error) {
	s.lastActorID = actorID
	return s.patient, s.err
}

func (s *stubService) UpdatePatient(ctx context.Context, id string, patch *types.PatientPatch, actorID string) (*types.Patient, error) {
	s.lastActorID = actorID
	s.lastPatch = patch
	return s.patient, s.err
}

func (s *stubService) DeletePatient(ctx context.Context, id, actorID string) error {
	s.lastActorID = actorID
	return s.err
}

func (s *stubService) ValidatePatient(ctx context.Context, id string, status types.ValidationStatus, actorID string) (*types.Patient, error) {
	s.lastActorID = actorID
	s.lastStatus = status
	return s.patient, s.err
}

func (s *stubService) GetPatientByID(ctx context.Context, id string) (*types.PatientProjection, error) {
	return s.projection, s.err
}

func (s *stubService) GetPatientByCPF(ctx context.Context, cpf string) (*types.PatientProjection, error) {
	return s.projection, s.err
}

func (s *stubService) GetPatientByMedicalRecord(ctx context.Context, mrn string) (*types.PatientProjection, error) {
	return s.projection, s.err
}

func (s *stubService) SearchPatients(ctx context.Context, filters *types.SearchFilters, pagination *types.Pagination) (*types.PagedResult, error) {
	s.lastFilters = filters
	return s.paged, s.err
}

func setupRouter(service *stubService) *mux.Router {
	router := mux.NewRouter()
	NewHandlers(service, logger.New("error")).RegisterRoutes(router)
	return router
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) *types.Response {
	t.Helper()
	var body types.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return &body
}

func TestCreatePatientReturns201AndForwardsActor(t *testing.T) {
	service := &stubService{patient: samplePatient("abc-123")}
	router := setupRouter(service)

	payload, _ := json.Marshal(validPatientPayload())
	req := httptest.NewRequest("POST", "/patients", bytes.NewReader(payload))
	req.Header.Set("X-User-ID", "reception-7")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "reception-7", service.lastActorID)
	body := decodeResponse(t, rec)
	assert.True(t, body.Success)
}

func TestCreatePatientRejectsMalformedJSON(t *testing.T) {
	router := setupRouter(&stubService{})

	req := httptest.NewRequest("POST", "/patients", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServiceErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "validation maps to 400",
			err:    types.NewValidationError(types.ErrCodeInvalidCPF, "invalid cpf", nil),
			status: http.StatusBadRequest,
			code:   types.ErrCodeInvalidCPF,
		},
		{
			name:   "conflict maps to 409",
			err:    types.NewConflictError(types.ErrCodeDuplicateCPF, "duplicate cpf", nil),
			status: http.StatusConflict,
			code:   types.ErrCodeDuplicateCPF,
		},
		{
			name:   "not found maps to 404",
			err:    types.NewNotFoundError(types.ErrCodePatientNotFound, "no such patient"),
			status: http.StatusNotFound,
			code:   types.ErrCodePatientNotFound,
		},
		{
			name:   "publish failure maps to 500",
			err:    types.NewPublishError("broker unreachable", nil),
			status: http.StatusInternalServerError,
			code:   types.ErrCodePublishFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := setupRouter(&stubService{err: tc.err})

			req := httptest.NewRequest("GET", "/patients/abc-123", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)

			body := decodeResponse(t, rec)
			assert.False(t, body.Success)
			data, ok := body.Data.(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, tc.code, data["code"])
		})
	}
}

func TestNaturalKeyRoutesAreNotShadowed(t *testing.T) {
	service := &stubService{projection: &types.PatientProjection{ID: "abc-123", CPF: "52998224725"}}
	router := setupRouter(service)

	for _, path := range []string{
		"/patients/cpf/52998224725",
		"/patients/medical-record/MRN-001",
	} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestSearchPatientsParsesQuery(t *testing.T) {
	service := &stubService{paged: types.NewPagedResult(nil, 1, 10, 0)}
	router := setupRouter(service)

	req := httptest.NewRequest("GET",
		"/patients/search?name=maria&status=active&admitted_after=2024-01-01T00:00:00Z&page=2&limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, service.lastFilters)
	assert.Equal(t, "maria", service.lastFilters.Name)
	assert.Equal(t, "active", service.lastFilters.Status)
	require.NotNil(t, service.lastFilters.AdmittedAfter)
}

func TestSearchPatientsRejectsBadDate(t *testing.T) {
	router := setupRouter(&stubService{})

	req := httptest.NewRequest("GET", "/patients/search?admitted_after=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidatePatientParsesStatus(t *testing.T) {
	service := &stubService{patient: samplePatient("abc-123")}
	router := setupRouter(service)

	req := httptest.NewRequest("POST", "/patients/abc-123/validate",
		bytes.NewReader([]byte(`{"validation_status":"approved"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.ValidationStatusApproved, service.lastStatus)
}

func TestDeletePatientReturnsEnvelope(t *testing.T) {
	service := &stubService{}
	router := setupRouter(service)

	req := httptest.NewRequest("DELETE", "/patients/abc-123", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "patient deleted", body.Message)
}
