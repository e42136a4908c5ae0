package types

import (
	"time"
)

// PatientStatus represents the lifecycle status of a patient
type PatientStatus string

const (
	PatientStatusActive      PatientStatus = "active"
	PatientStatusInactive    PatientStatus = "inactive"
	PatientStatusTransferred PatientStatus = "transferred"
	PatientStatusDischarged  PatientStatus = "discharged"
)

// ValidationStatus represents the clinical validation state of a patient record
type ValidationStatus string

const (
	ValidationStatusPending     ValidationStatus = "pending"
	ValidationStatusApproved    ValidationStatus = "approved"
	ValidationStatusRejected    ValidationStatus = "rejected"
	ValidationStatusUnderReview ValidationStatus = "under_review"
)

// ValidStatuses lists the accepted patient lifecycle statuses
var ValidStatuses = []PatientStatus{
	PatientStatusActive,
	PatientStatusInactive,
	PatientStatusTransferred,
	PatientStatusDischarged,
}

// ValidValidationStatuses lists the accepted validation statuses
var ValidValidationStatuses = []ValidationStatus{
	ValidationStatusPending,
	ValidationStatusApproved,
	ValidationStatusRejected,
	ValidationStatusUnderReview,
}

// EmergencyContact holds the emergency contact details of a patient
type EmergencyContact struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
	Phone    string `json:"phone"`
}

// Patient is the canonical patient record owned by the write store.
// The id is assigned at creation and immutable; cpf and
// medical_record_number are globally unique natural keys.
type Patient struct {
	ID                  string            `json:"id" db:"id"`
	CPF                 string            `json:"cpf" db:"cpf"`
	MedicalRecordNumber string            `json:"medical_record_number,omitempty" db:"medical_record_number"`
	Name                string            `json:"name" db:"name"`
	BirthDate           time.Time         `json:"birth_date" db:"birth_date"`
	Phone               string            `json:"phone,omitempty" db:"phone"`
	Email               string            `json:"email,omitempty" db:"email"`
	Address             string            `json:"address,omitempty" db:"address"`
	EmergencyContact    *EmergencyContact `json:"emergency_contact,omitempty" db:"-"`
	RoomNumber          string            `json:"room_number,omitempty" db:"room_number"`
	ResponsibleDoctor   string            `json:"responsible_doctor,omitempty" db:"responsible_doctor"`
	AdmissionDate       *time.Time        `json:"admission_date,omitempty" db:"admission_date"`
	InsurancePlan       string            `json:"insurance_plan,omitempty" db:"insurance_plan"`
	InsuranceNumber     string            `json:"insurance_number,omitempty" db:"insurance_number"`
	InsuranceValidity   *time.Time        `json:"insurance_validity,omitempty" db:"insurance_validity"`
	Status              PatientStatus     `json:"status" db:"status"`
	ValidationStatus    ValidationStatus  `json:"validation_status" db:"validation_status"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" db:"updated_at"`
	DeletedAt           *time.Time        `json:"deleted_at,omitempty" db:"deleted_at"`
}

// PatientPatch is a partial update to a patient. A nil field means
// "do not touch"; it is never interpreted as a zero value.
type PatientPatch struct {
	CPF                 *string           `json:"cpf,omitempty"`
	MedicalRecordNumber *string           `json:"medical_record_number,omitempty"`
	Name                *string           `json:"name,omitempty"`
	BirthDate           *time.Time        `json:"birth_date,omitempty"`
	Phone               *string           `json:"phone,omitempty"`
	Email               *string           `json:"email,omitempty"`
	Address             *string           `json:"address,omitempty"`
	EmergencyContact    *EmergencyContact `json:"emergency_contact,omitempty"`
	RoomNumber          *string           `json:"room_number,omitempty"`
	ResponsibleDoctor   *string           `json:"responsible_doctor,omitempty"`
	AdmissionDate       *time.Time        `json:"admission_date,omitempty"`
	InsurancePlan       *string           `json:"insurance_plan,omitempty"`
	InsuranceNumber     *string           `json:"insurance_number,omitempty"`
	InsuranceValidity   *time.Time        `json:"insurance_validity,omitempty"`
	Status              *PatientStatus    `json:"status,omitempty"`
}

// IsEmpty reports whether the patch touches no fields
func (p *PatientPatch) IsEmpty() bool {
	return p.CPF == nil &&
		p.MedicalRecordNumber == nil &&
		p.Name == nil &&
		p.BirthDate == nil &&
		p.Phone == nil &&
		p.Email == nil &&
		p.Address == nil &&
		p.EmergencyContact == nil &&
		p.RoomNumber == nil &&
		p.ResponsibleDoctor == nil &&
		p.AdmissionDate == nil &&
		p.InsurancePlan == nil &&
		p.InsuranceNumber == nil &&
		p.InsuranceValidity == nil &&
		p.Status == nil
}

// PatientProjection is the denormalized read-store copy of a patient.
// Version increments on every successful sync; the projection is
// eventually consistent with the canonical record.
type PatientProjection struct {
	ID                  string            `json:"id"`
	CPF                 string            `json:"cpf"`
	MedicalRecordNumber string            `json:"medical_record_number,omitempty"`
	Name                string            `json:"name"`
	BirthDate           time.Time         `json:"birth_date"`
	Phone               string            `json:"phone,omitempty"`
	Email               string            `json:"email,omitempty"`
	Address             string            `json:"address,omitempty"`
	EmergencyContact    *EmergencyContact `json:"emergency_contact,omitempty"`
	RoomNumber          string            `json:"room_number,omitempty"`
	ResponsibleDoctor   string            `json:"responsible_doctor,omitempty"`
	AdmissionDate       *time.Time        `json:"admission_date,omitempty"`
	InsurancePlan       string            `json:"insurance_plan,omitempty"`
	InsuranceNumber     string            `json:"insurance_number,omitempty"`
	InsuranceValidity   *time.Time        `json:"insurance_validity,omitempty"`
	Status              PatientStatus     `json:"status"`
	ValidationStatus    ValidationStatus  `json:"validation_status"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	Version             int64             `json:"version"`
	LastSyncedAt        time.Time         `json:"last_synced_at"`
}

// NewProjection maps a canonical patient into its read projection shape.
// The version is set by the read store on upsert, not here.
func NewProjection(p *Patient) *PatientProjection {
	return &PatientProjection{
		ID:                  p.ID,
		CPF:                 p.CPF,
		MedicalRecordNumber: p.MedicalRecordNumber,
		Name:                p.Name,
		BirthDate:           p.BirthDate,
		Phone:               p.Phone,
		Email:               p.Email,
		Address:             p.Address,
		EmergencyContact:    p.EmergencyContact,
		RoomNumber:          p.RoomNumber,
		ResponsibleDoctor:   p.ResponsibleDoctor,
		AdmissionDate:       p.AdmissionDate,
		InsurancePlan:       p.InsurancePlan,
		InsuranceNumber:     p.InsuranceNumber,
		InsuranceValidity:   p.InsuranceValidity,
		Status:              p.Status,
		ValidationStatus:    p.ValidationStatus,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

// SearchFilters holds the supported patient search criteria
type SearchFilters struct {
	Name              string     `json:"name,omitempty"`
	CPF               string     `json:"cpf,omitempty"`
	Status            string     `json:"status,omitempty"`
	RoomNumber        string     `json:"room_number,omitempty"`
	InsurancePlan     string     `json:"insurance_plan,omitempty"`
	ResponsibleDoctor string     `json:"responsible_doctor,omitempty"`
	AdmittedAfter     *time.Time `json:"admitted_after,omitempty"`
	AdmittedBefore    *time.Time `json:"admitted_before,omitempty"`
}

// Pagination bounds for search queries
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Pagination holds 1-based page selection for search queries
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps pagination to the accepted bounds
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}

// Offset returns the zero-based row offset for the page
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PagedResult is the search response envelope
type PagedResult struct {
	Items      []*PatientProjection `json:"items"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	Total      int64                `json:"total"`
	TotalPages int                  `json:"total_pages"`
	HasNext    bool                 `json:"has_next"`
	HasPrev    bool                 `json:"has_prev"`
}

// NewPagedResult computes the pagination metadata for a result page
func NewPagedResult(items []*PatientProjection, page, limit int, total int64) *PagedResult {
	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}
	return &PagedResult{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1 && total > 0,
	}
}

// Response is the uniform command/query response envelope
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewResponse builds a response envelope stamped with the current time
func NewResponse(success bool, data interface{}, message string) *Response {
	return &Response{
		Success:   success,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
