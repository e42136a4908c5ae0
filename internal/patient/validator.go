package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caio-healthchain/ms-patients/pkg/interfaces"
	"github.com/caio-healthchain/ms-patients/pkg/logger"
	"github.com/caio-healthchain/ms-patients/pkg/types"
)

// maxPatientAge bounds the plausible age derived from a birth date
const maxPatientAge = 150

// Validator enforces identity and uniqueness invariants before a write
// is attempted. A failed validation short-circuits the command: the
// write store is never touched after a violation.
type Validator struct {
	repository interfaces.PatientRepository
	logger     *logger.Logger
	now        func() time.Time
}

// NewValidator creates a new validator backed by the write store for
// uniqueness checks
func NewValidator(repository interfaces.PatientRepository, log *logger.Logger) *Validator {
	return &Validator{
		repository: repository,
		logger:     log,
		now:        time.Now,
	}
}

// ValidateCreate validates a candidate patient before creation
func (v *Validator) ValidateCreate(ctx context.Context, patient *types.Patient) error {
	patient.CPF = NormalizeCPF(patient.CPF)

	if err := ValidateCPF(patient.CPF); err != nil {
		return v.rejected(err)
	}

	if err := v.checkCPFUnique(ctx, patient.CPF, ""); err != nil {
		return v.rejected(err)
	}

	if patient.MedicalRecordNumber != "" {
		if err := v.checkMedicalRecordUnique(ctx, patient.MedicalRecordNumber, ""); err != nil {
			return v.rejected(err)
		}
	}

	return v.rejected(v.validateDates(patient.BirthDate, patient.AdmissionDate, patient.InsuranceValidity))
}

// ValidateUpdate validates a partial patch against the entity identified
// by id. Only supplied fields are checked; the entity's own row is
// excluded from uniqueness checks.
func (v *Validator) ValidateUpdate(ctx context.Context, id string, patch *types.PatientPatch) error {
	if patch.CPF != nil {
		normalized := NormalizeCPF(*patch.CPF)
		patch.CPF = &normalized

		if err := ValidateCPF(normalized); err != nil {
			return v.rejected(err)
		}

		if err := v.checkCPFUnique(ctx, normalized, id); err != nil {
			return v.rejected(err)
		}
	}

	if patch.MedicalRecordNumber != nil && *patch.MedicalRecordNumber != "" {
		if err := v.checkMedicalRecordUnique(ctx, *patch.MedicalRecordNumber, id); err != nil {
			return v.rejected(err)
		}
	}

	if patch.Status != nil && !isValidStatus(*patch.Status) {
		return v.rejected(types.NewValidationError(types.ErrCodeInvalidStatus,
			fmt.Sprintf("invalid patient status: %s", *patch.Status), nil))
	}

	var birthDate time.Time
	if patch.BirthDate != nil {
		birthDate = *patch.BirthDate
	}
	return v.rejected(v.validateDates(birthDate, patch.AdmissionDate, patch.InsuranceValidity))
}

// ValidateStatus checks a validation status transition value
func (v *Validator) ValidateStatus(status types.ValidationStatus) error {
	for _, s := range types.ValidValidationStatuses {
		if s == status {
			return nil
		}
	}
	return v.rejected(types.NewValidationError(types.ErrCodeInvalidStatus,
		fmt.Sprintf("invalid validation status: %s", status), nil))
}

// rejected records the verdict before it is surfaced. Validation is the
// last stop before the write store, so this is the only trace of why a
// command never reached it. Internal errors are left to the caller.
func (v *Validator) rejected(err error) error {
	var svcErr *types.ServiceError
	if errors.As(err, &svcErr) && svcErr.Type != types.ErrorTypeInternal {
		v.logger.WithFields(map[string]interface{}{
			"code":   svcErr.Code,
			"reason": svcErr.Message,
		}).Warn("Patient validation rejected")
	}
	return err
}

func (v *Validator) checkCPFUnique(ctx context.Context, cpf, excludeID string) error {
	exists, err := v.repository.ExistsByCPF(ctx, cpf, excludeID)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to check cpf uniqueness", err)
	}
	if exists {
		return types.NewConflictError(types.ErrCodeDuplicateCPF,
			"a patient with this cpf already exists",
			map[string]interface{}{"cpf": cpf})
	}
	return nil
}

func (v *Validator) checkMedicalRecordUnique(ctx context.Context, mrn, excludeID string) error {
	exists, err := v.repository.ExistsByMedicalRecord(ctx, mrn, excludeID)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to check medical record uniqueness", err)
	}
	if exists {
		return types.NewConflictError(types.ErrCodeDuplicateMRN,
			"a patient with this medical record number already exists",
			map[string]interface{}{"medical_record_number": mrn})
	}
	return nil
}

// validateDates checks date-range sanity relative to the call time
func (v *Validator) validateDates(birthDate time.Time, admissionDate, insuranceValidity *time.Time) error {
	now := v.now()

	if !birthDate.IsZero() {
		if birthDate.After(now) {
			return types.NewValidationError(types.ErrCodeInvalidBirthDate,
				"birth date cannot be in the future", nil)
		}
		if birthDate.Before(now.AddDate(-maxPatientAge, 0, 0)) {
			return types.NewValidationError(types.ErrCodeInvalidBirthDate,
				fmt.Sprintf("birth date implies age over %d years", maxPatientAge), nil)
		}
	}

	if admissionDate != nil && admissionDate.After(now) {
		return types.NewValidationError(types.ErrCodeInvalidAdmission,
			"admission date cannot be in the future", nil)
	}

	if insuranceValidity != nil && insuranceValidity.Before(now) {
		return types.NewValidationError(types.ErrCodeExpiredInsurance,
			"insurance validity must not be in the past", nil)
	}

	return nil
}

func isValidStatus(status types.PatientStatus) bool {
	for _, s := range types.ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// NormalizeCPF strips the conventional formatting characters from a CPF
// so that "529.982.247-25" and "52998224725" compare equal
func NormalizeCPF(cpf string) string {
	cpf = strings.ReplaceAll(cpf, ".", "")
	cpf = strings.ReplaceAll(cpf, "-", "")
	return strings.TrimSpace(cpf)
}

// ValidateCPF checks the structural validity of a Brazilian CPF: an
// 11-digit numeral, not a repeated-digit sequence, with both check
// digits matching the weighted-sum mod 11 algorithm.
func ValidateCPF(cpf string) error {
	if len(cpf) != 11 {
		return types.NewValidationError(types.ErrCodeInvalidCPF,
			"cpf must have exactly 11 digits", nil)
	}

	digits := make([]int, 11)
	for i, r := range cpf {
		if r < '0' || r > '9' {
			return types.NewValidationError(types.ErrCodeInvalidCPF,
				"cpf must contain only digits", nil)
		}
		digits[i] = int(r - '0')
	}

	// Sequences of a single repeated digit pass the arithmetic but are
	// not valid CPFs
	repeated := true
	for i := 1; i < 11; i++ {
		if digits[i] != digits[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return types.NewValidationError(types.ErrCodeInvalidCPF,
			"cpf cannot be a repeated-digit sequence", nil)
	}

	if cpfCheckDigit(digits, 9) != digits[9] || cpfCheckDigit(digits, 10) != digits[10] {
		return types.NewValidationError(types.ErrCodeInvalidCPF,
			"cpf check digits do not match", nil)
	}

	return nil
}

// cpfCheckDigit computes the check digit over the first n digits with
// descending weights n+1..2. A remainder of 10 or 11 maps to 0.
func cpfCheckDigit(digits []int, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += digits[i] * (n + 1 - i)
	}
	check := 11 - (sum % 11)
	if check >= 10 {
		return 0
	}
	return check
}
