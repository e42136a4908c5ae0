package interfaces

import (
	"context"
	"time"

	"github.com/caio-healthchain/ms-patients/pkg/types"
)

// PatientService defines the command and query interface consumed by the
// transport layer
type PatientService interface {
	// Commands
	CreatePatient(ctx context.Context, patient *types.Patient, actorID string) (*types.Patient, error)
	UpdatePatient(ctx context.Context, id string, patch *types.PatientPatch, actorID string) (*types.Patient, error)
	DeletePatient(ctx context.Context, id, actorID string) error
	ValidatePatient(ctx context.Context, id string, status types.ValidationStatus, actorID string) (*types.Patient, error)

	// Queries (cache, falling back to the read projection)
	GetPatientByID(ctx context.Context, id string) (*types.PatientProjection, error)
	GetPatientByCPF(ctx context.Context, cpf string) (*types.PatientProjection, error)
	GetPatientByMedicalRecord(ctx context.Context, mrn string) (*types.PatientProjection, error)
	SearchPatients(ctx context.Context, filters *types.SearchFilters, pagination *types.Pagination) (*types.PagedResult, error)
}

// PatientRepository defines the write store gateway. It owns the system
// of record; every canonical mutation goes through it.
type PatientRepository interface {
	Create(ctx context.Context, patient *types.Patient) (*types.Patient, error)
	Update(ctx context.Context, id string, patch *types.PatientPatch) (*types.Patient, error)
	UpdateValidationStatus(ctx context.Context, id string, status types.ValidationStatus) (*types.Patient, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*types.Patient, error)
	ExistsByCPF(ctx context.Context, cpf, excludeID string) (bool, error)
	ExistsByMedicalRecord(ctx context.Context, mrn, excludeID string) (bool, error)
}

// ReadProjector maintains and queries the read-optimized projection.
// Project is best-effort: the orchestrator logs a failure and moves on.
type ReadProjector interface {
	Project(ctx context.Context, patient *types.Patient) error
	GetByID(ctx context.Context, id string) (*types.PatientProjection, error)
	GetByCPF(ctx context.Context, cpf string) (*types.PatientProjection, error)
	GetByMedicalRecord(ctx context.Context, mrn string) (*types.PatientProjection, error)
	Search(ctx context.Context, filters *types.SearchFilters, pagination *types.Pagination) (*types.PagedResult, error)
}

// EventPublisher emits domain events to named channels
type EventPublisher interface {
	Publish(ctx context.Context, channel string, envelope *types.EventEnvelope) error
	PublishCreated(ctx context.Context, patient *types.Patient) error
	PublishUpdated(ctx context.Context, oldPatient, newPatient *types.Patient) error
	PublishDeleted(ctx context.Context, patient *types.Patient) error
	PublishValidated(ctx context.Context, patient *types.Patient) error
}

// Cache is the optional read-path cache. Implementations must be safe
// to disable: the no-op implementation keeps the system correct with
// caching off.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}
