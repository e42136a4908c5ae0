package patient

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caio-healthchain/ms-patients/pkg/logger"
	"github.com/caio-healthchain/ms-patients/pkg/types"
)

const (
	rowID        = "6f1f9a3e-8a44-4d36-9e47-3f2b1c9d0a11"
	missingRowID = "00000000-0000-0000-0000-000000000001"
)

var patientRowColumns = []string{
	"id", "cpf", "medical_record_number", "name", "birth_date", "phone", "email",
	"address", "emergency_contact", "room_number", "responsible_doctor", "admission_date",
	"insurance_plan", "insurance_number", "insurance_validity", "status", "validation_status",
	"created_at", "updated_at", "deleted_at",
}

func fullPatientRow(id string, updatedAt time.Time) []driver.Value {
	birth := time.Date(1980, 3, 12, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	return []driver.Value{
		id, "52998224725", "MRN-001", "Maria Souza", birth, "11999990000", nil,
		nil, []byte(`{"name":"Joao Souza","relation":"spouse","phone":"11988887777"}`), "101", "Dr. Lima", nil,
		"Unimed", "9876", nil, "active", "pending",
		created, updatedAt, nil,
	}
}

func setupRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(db, logger.New("error")), mock
}

func TestRepositoryCreateAssignsIdentityAndDefaults(t *testing.T) {
	repo, mock := setupRepository(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO patients")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	patient := &types.Patient{
		CPF:       "52998224725",
		Name:      "Maria Souza",
		BirthDate: time.Date(1980, 3, 12, 0, 0, 0, 0, time.UTC),
	}

	created, err := repo.Create(context.Background(), patient)

	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, types.PatientStatusActive, created.Status)
	assert.Equal(t, types.ValidationStatusPending, created.ValidationStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreateUniqueViolationMapsToConflict(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO patients")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "patients_cpf_unique"})

	patient := &types.Patient{
		CPF:       "52998224725",
		Name:      "Maria Souza",
		BirthDate: time.Date(1980, 3, 12, 0, 0, 0, 0, time.UTC),
	}

	created, err := repo.Create(context.Background(), patient)

	assert.Nil(t, created)
	assert.True(t, types.IsType(err, types.ErrorTypeConflict))
}

func TestRepositoryCreateMRNViolationMapsToConflict(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO patients")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "patients_mrn_unique"})

	patient := &types.Patient{CPF: "52998224725", Name: "Maria Souza"}
	_, err := repo.Create(context.Background(), patient)

	var svcErr *types.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, types.ErrCodeDuplicateMRN, svcErr.Code)
}

func TestRepositoryUpdateEmptyPatchTouchesOnlyUpdatedAt(t *testing.T) {
	repo, mock := setupRepository(t)
	updatedAt := time.Now().UTC()

	// The SET list carries a single column when the patch is empty
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE patients SET updated_at = $1")).
		WithArgs(sqlmock.AnyArg(), rowID).
		WillReturnRows(sqlmock.NewRows(patientRowColumns).AddRow(fullPatientRow(rowID, updatedAt)...))

	updated, err := repo.Update(context.Background(), rowID, &types.PatientPatch{})

	assert.NoError(t, err)
	assert.Equal(t, rowID, updated.ID)
	assert.Equal(t, "Maria Souza", updated.Name)
	assert.Equal(t, "Joao Souza", updated.EmergencyContact.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateOnlyPatchedColumns(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE patients SET room_number = $1, updated_at = $2")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), rowID).
		WillReturnRows(sqlmock.NewRows(patientRowColumns).AddRow(fullPatientRow(rowID, time.Now().UTC())...))

	room := "208"
	_, err := repo.Update(context.Background(), rowID, &types.PatientPatch{RoomNumber: &room})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateNotFound(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE patients SET")).
		WillReturnRows(sqlmock.NewRows(patientRowColumns))

	_, err := repo.Update(context.Background(), missingRowID, &types.PatientPatch{})

	assert.True(t, types.IsType(err, types.ErrorTypeNotFound))
}

func TestRepositoryDelete(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM patients WHERE id = $1")).
		WithArgs(rowID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), rowID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDeleteNotFound(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM patients WHERE id = $1")).
		WithArgs(missingRowID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), missingRowID)
	assert.True(t, types.IsType(err, types.ErrorTypeNotFound))
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery("SELECT .+ FROM patients WHERE id =").
		WillReturnRows(sqlmock.NewRows(patientRowColumns))

	_, err := repo.GetByID(context.Background(), missingRowID)
	assert.True(t, types.IsType(err, types.ErrorTypeNotFound))
}

func TestRepositoryExistsByCPFExcludesOwnRow(t *testing.T) {
	repo, mock := setupRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM patients WHERE cpf = $1 AND deleted_at IS NULL AND id <> $2)")).
		WithArgs("52998224725", rowID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.ExistsByCPF(context.Background(), "52998224725", rowID)

	assert.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryExistsByCPFWithoutExclusionBindsSingleParam(t *testing.T) {
	repo, mock := setupRepository(t)

	// On the create path there is no row to exclude. The id column is uuid
	// typed, so the query must not bind an empty string against it.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM patients WHERE cpf = $1 AND deleted_at IS NULL)")).
		WithArgs("52998224725").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByCPF(context.Background(), "52998224725", "")

	assert.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRejectsMalformedIDsBeforeQuerying(t *testing.T) {
	repo, mock := setupRepository(t)

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	assert.True(t, types.IsType(err, types.ErrorTypeNotFound))

	err = repo.Delete(context.Background(), "not-a-uuid")
	assert.True(t, types.IsType(err, types.ErrorTypeNotFound))

	_, err = repo.Update(context.Background(), "not-a-uuid", &types.PatientPatch{})
	assert.True(t, types.IsType(err, types.ErrorTypeNotFound))

	_, err = repo.UpdateValidationStatus(context.Background(), "not-a-uuid", types.ValidationStatusApproved)
	assert.True(t, types.IsType(err, types.ErrorTypeNotFound))

	// No statement may reach the database for an id that cannot be a uuid.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateValidationStatus(t *testing.T) {
	repo, mock := setupRepository(t)

	row := fullPatientRow(rowID, time.Now().UTC())
	row[16] = "approved"

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE patients SET validation_status = $1, updated_at = $2")).
		WithArgs("approved", sqlmock.AnyArg(), rowID).
		WillReturnRows(sqlmock.NewRows(patientRowColumns).AddRow(row...))

	updated, err := repo.UpdateValidationStatus(context.Background(), rowID, types.ValidationStatusApproved)

	assert.NoError(t, err)
	assert.Equal(t, types.ValidationStatusApproved, updated.ValidationStatus)
}
