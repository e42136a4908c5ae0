package patient

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/caio-healthchain/ms-patients/pkg/logger"
	"github.com/caio-healthchain/ms-patients/pkg/types"
)

func TestValidateCPF(t *testing.T) {
	tests := []struct {
		name  string
		cpf   string
		valid bool
	}{
		{"known valid cpf", "52998224725", true},
		{"another valid cpf", "11144477735", true},
		{"wrong first check digit", "52998224715", false},
		{"wrong second check digit", "52998224724", false},
		{"repeated digits rejected", "11111111111", false},
		{"repeated zeros rejected", "00000000000", false},
		{"too short", "5299822472", false},
		{"too long", "529982247251", false},
		{"non numeric", "5299822472a", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCPF(tt.cpf)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, types.IsType(err, types.ErrorTypeValidation))
			}
		})
	}
}

func TestValidateCPFCheckDigitAlgorithm(t *testing.T) {
	// Exhaustively verify the two-stage weighted-sum algorithm on a
	// spread of bases: the validator must accept exactly the check
	// digits the arithmetic produces
	bases := []string{"529982247", "111444777", "123456789", "935411347", "390533447"}

	for _, base := range bases {
		digits := make([]int, 11)
		for i, r := range base {
			digits[i] = int(r - '0')
		}
		digits[9] = cpfCheckDigit(digits, 9)
		digits[10] = cpfCheckDigit(digits, 10)

		cpf := base + string(rune('0'+digits[9])) + string(rune('0'+digits[10]))

		repeated := true
		for i := 1; i < 11; i++ {
			if cpf[i] != cpf[0] {
				repeated = false
				break
			}
		}
		if repeated {
			continue
		}

		assert.NoError(t, ValidateCPF(cpf), "cpf %s should be valid", cpf)

		// Any other second check digit must be rejected
		wrong := (digits[10] + 1) % 10
		assert.Error(t, ValidateCPF(cpf[:10]+string(rune('0'+wrong))))
	}
}

func TestNormalizeCPF(t *testing.T) {
	assert.Equal(t, "52998224725", NormalizeCPF("529.982.247-25"))
	assert.Equal(t, "52998224725", NormalizeCPF("52998224725"))
	assert.Equal(t, "52998224725", NormalizeCPF(" 529.982.247-25 "))
}

func TestValidateCreateFormattedCPFAccepted(t *testing.T) {
	repo := &MockPatientRepository{}
	validator := NewValidator(repo, logger.New("error"))
	ctx := context.Background()

	repo.On("ExistsByCPF", ctx, "52998224725", "").Return(false, nil)

	patient := &types.Patient{
		CPF:       "529.982.247-25",
		Name:      "Maria Souza",
		BirthDate: time.Date(1980, 3, 12, 0, 0, 0, 0, time.UTC),
	}

	assert.NoError(t, validator.ValidateCreate(ctx, patient))
	// The payload carries the normalized form onward to the write store
	assert.Equal(t, "52998224725", patient.CPF)
}

func TestValidateCreateMedicalRecordConflict(t *testing.T) {
	repo := &MockPatientRepository{}
	validator := NewValidator(repo, logger.New("error"))
	ctx := context.Background()

	repo.On("ExistsByCPF", ctx, "52998224725", "").Return(false, nil)
	repo.On("ExistsByMedicalRecord", ctx, "MRN-001", "").Return(true, nil)

	patient := &types.Patient{
		CPF:                 "52998224725",
		MedicalRecordNumber: "MRN-001",
		Name:                "Maria Souza",
		BirthDate:           time.Date(1980, 3, 12, 0, 0, 0, 0, time.UTC),
	}

	err := validator.ValidateCreate(ctx, patient)
	assert.True(t, types.IsType(err, types.ErrorTypeConflict))
}

func TestValidateCreateDateSanity(t *testing.T) {
	repo := &MockPatientRepository{}
	validator := NewValidator(repo, logger.New("error"))
	ctx := context.Background()

	repo.On("ExistsByCPF", ctx, "52998224725", "").Return(false, nil)

	t.Run("future birth date", func(t *testing.T) {
		patient := &types.Patient{
			CPF:       "52998224725",
			BirthDate: time.Now().Add(48 * time.Hour),
		}
		err := validator.ValidateCreate(ctx, patient)
		assert.True(t, types.IsType(err, types.ErrorTypeValidation))
	})

	t.Run("implausibly old birth date", func(t *testing.T) {
		patient := &types.Patient{
			CPF:       "52998224725",
			BirthDate: time.Now().AddDate(-200, 0, 0),
		}
		err := validator.ValidateCreate(ctx, patient)
		assert.True(t, types.IsType(err, types.ErrorTypeValidation))
	})

	t.Run("future admission date", func(t *testing.T) {
		admission := time.Now().Add(48 * time.Hour)
		patient := &types.Patient{
			CPF:           "52998224725",
			BirthDate:     time.Date(1980, 3, 12, 0, 0, 0, 0, time.UTC),
			AdmissionDate: &admission,
		}
		err := validator.ValidateCreate(ctx, patient)
		assert.True(t, types.IsType(err, types.ErrorTypeValidation))
	})

	t.Run("expired insurance", func(t *testing.T) {
		validity := time.Now().Add(-time.Hour)
		patient := &types.Patient{
			CPF:               "52998224725",
			BirthDate:         time.Date(1980, 3, 12, 0, 0, 0, 0, time.UTC),
			InsuranceValidity: &validity,
		}
		err := validator.ValidateCreate(ctx, patient)
		assert.True(t, types.IsType(err, types.ErrorTypeValidation))
	})
}

func TestValidateUpdateExcludesOwnRow(t *testing.T) {
	repo := &MockPatientRepository{}
	validator := NewValidator(repo, logger.New("error"))
	ctx := context.Background()

	// The row's own cpf does not conflict with itself on update
	repo.On("ExistsByCPF", ctx, "52998224725", "p-1").Return(false, nil)

	cpf := "529.982.247-25"
	patch := &types.PatientPatch{CPF: &cpf}

	assert.NoError(t, validator.ValidateUpdate(ctx, "p-1", patch))
	repo.AssertCalled(t, "ExistsByCPF", ctx, "52998224725", "p-1")
}

func TestValidateUpdateEmptyPatchAccepted(t *testing.T) {
	repo := &MockPatientRepository{}
	validator := NewValidator(repo, logger.New("error"))

	assert.NoError(t, validator.ValidateUpdate(context.Background(), "p-1", &types.PatientPatch{}))
	repo.AssertNotCalled(t, "ExistsByCPF", mock.Anything, mock.Anything, mock.Anything)
}

func TestValidatorLogsRejections(t *testing.T) {
	repo := &MockPatientRepository{}
	log := logger.New("warn")
	hook := test.NewLocal(log.Logger)
	validator := NewValidator(repo, log)

	err := validator.ValidateCreate(context.Background(), &types.Patient{CPF: "11111111111"})
	assert.True(t, types.IsType(err, types.ErrorTypeValidation))

	if assert.Len(t, hook.Entries, 1) {
		entry := hook.LastEntry()
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		assert.Equal(t, types.ErrCodeInvalidCPF, entry.Data["code"])
	}

	// A clean validation leaves no trace
	hook.Reset()
	assert.NoError(t, validator.ValidateUpdate(context.Background(), "p-1", &types.PatientPatch{}))
	assert.Empty(t, hook.Entries)
}

func TestValidateStatusValues(t *testing.T) {
	repo := &MockPatientRepository{}
	validator := NewValidator(repo, logger.New("error"))

	for _, status := range types.ValidValidationStatuses {
		assert.NoError(t, validator.ValidateStatus(status))
	}
	assert.Error(t, validator.ValidateStatus("archived"))
}
