package patient

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/caio-healthchain/ms-patients/pkg/interfaces"
	"github.com/caio-healthchain/ms-patients/pkg/logger"
	"github.com/caio-healthchain/ms-patients/pkg/types"
)

// Handlers is the thin HTTP adapter over the domain service. It parses
// requests, delegates, and maps typed errors to transport status codes;
// it contains no domain logic.
type Handlers struct {
	service interfaces.PatientService
	logger  *logger.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(service interfaces.PatientService, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers HTTP routes. The search and natural-key
// routes must precede the {patientID} routes or mux shadows them.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/patients/search", h.SearchPatients).Methods("GET")
	router.HandleFunc("/patients/cpf/{cpf}", h.GetPatientByCPF).Methods("GET")
	router.HandleFunc("/patients/medical-record/{mrn}", h.GetPatientByMedicalRecord).Methods("GET")

	router.HandleFunc("/patients", h.CreatePatient).Methods("POST")
	router.HandleFunc("/patients/{patientID}", h.GetPatient).Methods("GET")
	router.HandleFunc("/patients/{patientID}", h.UpdatePatient).Methods("PUT")
	router.HandleFunc("/patients/{patientID}", h.DeletePatient).Methods("DELETE")
	router.HandleFunc("/patients/{patientID}/validate", h.ValidatePatient).Methods("POST")
}

// CreatePatient handles patient creation
func (h *Handlers) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var patient types.Patient
	if err := json.NewDecoder(r.Body).Decode(&patient); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	created, err := h.service.CreatePatient(r.Context(), &patient, h.actorID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, types.NewResponse(true, created, "patient created"))
}

// GetPatient handles point lookup by id
func (h *Handlers) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["patientID"]

	projection, err := h.service.GetPatientByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, types.NewResponse(true, projection, ""))
}

// GetPatientByCPF handles point lookup by cpf
func (h *Handlers) GetPatientByCPF(w http.ResponseWriter, r *http.Request) {
	cpf := mux.Vars(r)["cpf"]

	projection, err := h.service.GetPatientByCPF(r.Context(), cpf)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, types.NewResponse(true, projection, ""))
}

// GetPatientByMedicalRecord handles point lookup by medical record number
func (h *Handlers) GetPatientByMedicalRecord(w http.ResponseWriter, r *http.Request) {
	mrn := mux.Vars(r)["mrn"]

	projection, err := h.service.GetPatientByMedicalRecord(r.Context(), mrn)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, types.NewResponse(true, projection, ""))
}

// UpdatePatient handles partial update
func (h *Handlers) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["patientID"]

	var patch types.PatientPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	updated, err := h.service.UpdatePatient(r.Context(), id, &patch, h.actorID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, types.NewResponse(true, updated, "patient updated"))
}

// DeletePatient handles hard delete
func (h *Handlers) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["patientID"]

	if err := h.service.DeletePatient(r.Context(), id, h.actorID(r)); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, types.NewResponse(true, nil, "patient deleted"))
}

// ValidatePatient handles validation status transitions
func (h *Handlers) ValidatePatient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["patientID"]

	var body struct {
		ValidationStatus types.ValidationStatus `json:"validation_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	updated, err := h.service.ValidatePatient(r.Context(), id, body.ValidationStatus, h.actorID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, types.NewResponse(true, updated, "patient validation status updated"))
}

// SearchPatients handles filtered, paginated search
func (h *Handlers) SearchPatients(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filters := &types.SearchFilters{
		Name:              query.Get("name"),
		CPF:               query.Get("cpf"),
		Status:            query.Get("status"),
		RoomNumber:        query.Get("room_number"),
		InsurancePlan:     query.Get("insurance_plan"),
		ResponsibleDoctor: query.Get("responsible_doctor"),
	}

	if raw := query.Get("admitted_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid admitted_after date")
			return
		}
		filters.AdmittedAfter = &t
	}
	if raw := query.Get("admitted_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid admitted_before date")
			return
		}
		filters.AdmittedBefore = &t
	}

	pagination := &types.Pagination{}
	if page, err := strconv.Atoi(query.Get("page")); err == nil {
		pagination.Page = page
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		pagination.Limit = limit
	}

	result, err := h.service.SearchPatients(r.Context(), filters, pagination)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, types.NewResponse(true, result, ""))
}

// actorID extracts the acting user from the request. Authentication is
// handled upstream; the adapter only forwards the identity.
func (h *Handlers) actorID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *types.ServiceError
	if !errors.As(err, &svcErr) {
		h.logger.WithError(err).Error("Unhandled error")
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch svcErr.Type {
	case types.ErrorTypeValidation:
		status = http.StatusBadRequest
	case types.ErrorTypeConflict:
		status = http.StatusConflict
	case types.ErrorTypeNotFound:
		status = http.StatusNotFound
	}

	// The code is the stable machine-readable reason; the message is
	// for humans
	h.writeJSON(w, status, types.NewResponse(false, map[string]string{"code": svcErr.Code}, svcErr.Message))
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, types.NewResponse(false, nil, message))
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body *types.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}
