package patient

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/caio-healthchain/ms-patients/pkg/logger"
	"github.com/caio-healthchain/ms-patients/pkg/types"
)

const patientColumns = `id, cpf, medical_record_number, name, birth_date, phone, email,
	address, emergency_contact, room_number, responsible_doctor, admission_date,
	insurance_plan, insurance_number, insurance_validity, status, validation_status,
	created_at, updated_at, deleted_at`

// Repository is the write store gateway. It owns the canonical patient
// rows; every mutation of the system of record goes through it.
type Repository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRepository creates a new write store gateway
func NewRepository(db *sql.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// Create inserts a new canonical patient row. Identity and lifecycle
// defaults are assigned here; the returned record is the post-write
// canonical state.
func (r *Repository) Create(ctx context.Context, patient *types.Patient) (*types.Patient, error) {
	patient.ID = uuid.New().String()
	patient.Status = types.PatientStatusActive
	patient.ValidationStatus = types.ValidationStatusPending
	patient.CreatedAt = time.Now().UTC()
	patient.UpdatedAt = patient.CreatedAt

	contactJSON, err := marshalContact(patient.EmergencyContact)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to marshal emergency contact", err)
	}

	query := `
		INSERT INTO patients (
			id, cpf, medical_record_number, name, birth_date, phone, email,
			address, emergency_contact, room_number, responsible_doctor, admission_date,
			insurance_plan, insurance_number, insurance_validity, status, validation_status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		patient.ID,
		patient.CPF,
		nullString(patient.MedicalRecordNumber),
		patient.Name,
		patient.BirthDate,
		nullString(patient.Phone),
		nullString(patient.Email),
		nullString(patient.Address),
		contactJSON,
		nullString(patient.RoomNumber),
		nullString(patient.ResponsibleDoctor),
		nullTime(patient.AdmissionDate),
		nullString(patient.InsurancePlan),
		nullString(patient.InsuranceNumber),
		nullTime(patient.InsuranceValidity),
		patient.Status,
		patient.ValidationStatus,
		patient.CreatedAt,
		patient.UpdatedAt,
	).Scan(&patient.CreatedAt, &patient.UpdatedAt)

	if err != nil {
		if conflictErr := mapUniqueViolation(err); conflictErr != nil {
			return nil, conflictErr
		}
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to create patient", err)
	}

	r.logger.WithPatientID(patient.ID).Info("Created patient record")
	return patient, nil
}

// Update applies a partial patch to the canonical row. Absent patch
// fields are untouched. Returns the full post-write canonical record.
func (r *Repository) Update(ctx context.Context, id string, patch *types.PatientPatch) (*types.Patient, error) {
	if err := ensurePatientID(id); err != nil {
		return nil, err
	}

	setClauses := []string{}
	args := []interface{}{}
	idx := 1

	addSet := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}

	if patch.CPF != nil {
		addSet("cpf", *patch.CPF)
	}
	if patch.MedicalRecordNumber != nil {
		addSet("medical_record_number", nullString(*patch.MedicalRecordNumber))
	}
	if patch.Name != nil {
		addSet("name", *patch.Name)
	}
	if patch.BirthDate != nil {
		addSet("birth_date", *patch.BirthDate)
	}
	if patch.Phone != nil {
		addSet("phone", nullString(*patch.Phone))
	}
	if patch.Email != nil {
		addSet("email", nullString(*patch.Email))
	}
	if patch.Address != nil {
		addSet("address", nullString(*patch.Address))
	}
	if patch.EmergencyContact != nil {
		contactJSON, err := marshalContact(patch.EmergencyContact)
		if err != nil {
			return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to marshal emergency contact", err)
		}
		addSet("emergency_contact", contactJSON)
	}
	if patch.RoomNumber != nil {
		addSet("room_number", nullString(*patch.RoomNumber))
	}
	if patch.ResponsibleDoctor != nil {
		addSet("responsible_doctor", nullString(*patch.ResponsibleDoctor))
	}
	if patch.AdmissionDate != nil {
		addSet("admission_date", *patch.AdmissionDate)
	}
	if patch.InsurancePlan != nil {
		addSet("insurance_plan", nullString(*patch.InsurancePlan))
	}
	if patch.InsuranceNumber != nil {
		addSet("insurance_number", nullString(*patch.InsuranceNumber))
	}
	if patch.InsuranceValidity != nil {
		addSet("insurance_validity", *patch.InsuranceValidity)
	}
	if patch.Status != nil {
		addSet("status", string(*patch.Status))
	}

	// An empty patch still touches updated_at
	addSet("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE patients SET %s
		WHERE id = $%d AND deleted_at IS NULL
		RETURNING %s`, strings.Join(setClauses, ", "), idx, patientColumns)

	patient, err := scanPatient(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodePatientNotFound,
				fmt.Sprintf("patient not found: %s", id))
		}
		if conflictErr := mapUniqueViolation(err); conflictErr != nil {
			return nil, conflictErr
		}
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to update patient", err)
	}

	r.logger.WithPatientID(id).Info("Updated patient record")
	return patient, nil
}

// UpdateValidationStatus transitions the validation status of the
// canonical record and returns the post-write state
func (r *Repository) UpdateValidationStatus(ctx context.Context, id string, status types.ValidationStatus) (*types.Patient, error) {
	if err := ensurePatientID(id); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE patients SET validation_status = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
		RETURNING %s`, patientColumns)

	patient, err := scanPatient(r.db.QueryRowContext(ctx, query, status, time.Now().UTC(), id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodePatientNotFound,
				fmt.Sprintf("patient not found: %s", id))
		}
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to update validation status", err)
	}

	r.logger.WithPatientID(id).WithField("validation_status", status).Info("Updated patient validation status")
	return patient, nil
}

// Delete removes the canonical row permanently. There is no restore
// path for a hard delete.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := ensurePatientID(id); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to delete patient", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to read delete result", err)
	}
	if rows == 0 {
		return types.NewNotFoundError(types.ErrCodePatientNotFound,
			fmt.Sprintf("patient not found: %s", id))
	}

	r.logger.WithPatientID(id).Info("Deleted patient record")
	return nil
}

// GetByID retrieves the canonical record by id
func (r *Repository) GetByID(ctx context.Context, id string) (*types.Patient, error) {
	if err := ensurePatientID(id); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM patients WHERE id = $1 AND deleted_at IS NULL`, patientColumns)

	patient, err := scanPatient(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodePatientNotFound,
				fmt.Sprintf("patient not found: %s", id))
		}
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to get patient", err)
	}

	return patient, nil
}

// ExistsByCPF reports whether a non-deleted patient with the given cpf
// exists, excluding excludeID when non-empty (the entity's own row on
// updates)
func (r *Repository) ExistsByCPF(ctx context.Context, cpf, excludeID string) (bool, error) {
	return r.exists(ctx, "cpf", cpf, excludeID)
}

// ExistsByMedicalRecord reports whether a non-deleted patient with the
// given medical record number exists, under the same exclusion rule
func (r *Repository) ExistsByMedicalRecord(ctx context.Context, mrn, excludeID string) (bool, error) {
	return r.exists(ctx, "medical_record_number", mrn, excludeID)
}

func (r *Repository) exists(ctx context.Context, column, value, excludeID string) (bool, error) {
	// The id column is uuid typed, so the exclusion clause is only
	// added when excludeID can actually name a row. Binding an empty
	// string against `id <> $2` would fail at parameter binding on the
	// create path, where there is no own row to exclude.
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM patients WHERE %s = $1 AND deleted_at IS NULL)`, column)
	args := []interface{}{value}

	if _, err := uuid.Parse(excludeID); err == nil {
		query = fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM patients WHERE %s = $1 AND deleted_at IS NULL AND id <> $2)`, column)
		args = append(args, excludeID)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", column, err)
	}
	return exists, nil
}

// ensurePatientID rejects ids that cannot name a row before they are
// bound against the uuid-typed id column. A malformed id is
// indistinguishable from an unknown one to callers.
func ensurePatientID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return types.NewNotFoundError(types.ErrCodePatientNotFound,
			fmt.Sprintf("patient not found: %s", id))
	}
	return nil
}

// mapUniqueViolation maps a PostgreSQL unique-constraint violation to a
// typed conflict error. This catches the rare race where a concurrent
// writer collides between validation and write.
func mapUniqueViolation(err error) error {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" {
		return nil
	}

	if strings.Contains(pqErr.Constraint, "mrn") {
		return types.NewConflictError(types.ErrCodeDuplicateMRN,
			"a patient with this medical record number already exists", nil)
	}
	return types.NewConflictError(types.ErrCodeDuplicateCPF,
		"a patient with this cpf already exists", nil)
}

// scanPatient scans a full patient row
func scanPatient(row *sql.Row) (*types.Patient, error) {
	var patient types.Patient
	var mrn, phone, email, address, room, doctor, plan, number sql.NullString
	var admission, validity, deleted sql.NullTime
	var contactJSON []byte

	err := row.Scan(
		&patient.ID,
		&patient.CPF,
		&mrn,
		&patient.Name,
		&patient.BirthDate,
		&phone,
		&email,
		&address,
		&contactJSON,
		&room,
		&doctor,
		&admission,
		&plan,
		&number,
		&validity,
		&patient.Status,
		&patient.ValidationStatus,
		&patient.CreatedAt,
		&patient.UpdatedAt,
		&deleted,
	)
	if err != nil {
		return nil, err
	}

	patient.MedicalRecordNumber = mrn.String
	patient.Phone = phone.String
	patient.Email = email.String
	patient.Address = address.String
	patient.RoomNumber = room.String
	patient.ResponsibleDoctor = doctor.String
	patient.InsurancePlan = plan.String
	patient.InsuranceNumber = number.String

	if admission.Valid {
		patient.AdmissionDate = &admission.Time
	}
	if validity.Valid {
		patient.InsuranceValidity = &validity.Time
	}
	if deleted.Valid {
		patient.DeletedAt = &deleted.Time
	}

	if len(contactJSON) > 0 {
		var contact types.EmergencyContact
		if err := json.Unmarshal(contactJSON, &contact); err != nil {
			return nil, fmt.Errorf("failed to unmarshal emergency contact: %w", err)
		}
		patient.EmergencyContact = &contact
	}

	return &patient, nil
}

func marshalContact(contact *types.EmergencyContact) ([]byte, error) {
	if contact == nil {
		return nil, nil
	}
	return json.Marshal(contact)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
