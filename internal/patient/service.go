package patient

import (
	"context"
	"time"

	"github.com/caio-healthchain/ms-patients/pkg/config"
	"github.com/caio-healthchain/ms-patients/pkg/interfaces"
	"github.com/caio-healthchain/ms-patients/pkg/logger"
	"github.com/caio-healthchain/ms-patients/pkg/monitoring"
	"github.com/caio-healthchain/ms-patients/pkg/types"
)

// Service orchestrates each patient command through the stages
// Validating -> Writing -> Projecting -> Publishing. Failure handling is
// asymmetric around the canonical write: anything before it aborts the
// command with zero side effects, anything after it degrades gracefully
// and never rolls the write back.
type Service struct {
	validator  *Validator
	repository interfaces.PatientRepository
	projector  interfaces.ReadProjector
	publisher  interfaces.EventPublisher
	cache      interfaces.Cache
	logger     *logger.Logger
	pointTTL   time.Duration
	searchTTL  time.Duration
}

// NewService creates the domain service with explicitly injected
// collaborators. No module-level state is involved; tests swap any
// collaborator for a fake.
func NewService(
	validator *Validator,
	repository interfaces.PatientRepository,
	projector interfaces.ReadProjector,
	publisher interfaces.EventPublisher,
	cache interfaces.Cache,
	cacheCfg *config.CacheConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		validator:  validator,
		repository: repository,
		projector:  projector,
		publisher:  publisher,
		cache:      cache,
		logger:     log,
		pointTTL:   time.Duration(cacheCfg.PointTTL) * time.Second,
		searchTTL:  time.Duration(cacheCfg.SearchTTL) * time.Second,
	}
}

// CreatePatient validates and creates a new patient, projects it to the
// read store and publishes a created event. A publish failure is
// returned together with the created record: the canonical write stands.
func (s *Service) CreatePatient(ctx context.Context, patient *types.Patient, actorID string) (*types.Patient, error) {
	// Validating
	if err := s.validator.ValidateCreate(ctx, patient); err != nil {
		monitoring.RecordCommand("create", "rejected")
		return nil, err
	}

	// Writing
	created, err := s.repository.Create(ctx, patient)
	if err != nil {
		monitoring.RecordCommand("create", "failed")
		return nil, err
	}

	s.logger.Audit(actorID, "create", "patient/"+created.ID, true, nil)

	// Projecting and cache invalidation are best-effort
	s.project(ctx, created)
	s.invalidate(ctx, created)

	// Publishing happens last; its failure is surfaced but the write
	// is already durable
	if err := s.publishCreated(ctx, created); err != nil {
		monitoring.RecordCommand("create", "publish_failed")
		return created, err
	}

	monitoring.RecordCommand("create", "ok")
	return created, nil
}

// UpdatePatient applies a partial patch to an existing patient. Absent
// patch fields are untouched; an empty patch only refreshes updated_at.
func (s *Service) UpdatePatient(ctx context.Context, id string, patch *types.PatientPatch, actorID string) (*types.Patient, error) {
	// Validating
	if err := s.validator.ValidateUpdate(ctx, id, patch); err != nil {
		monitoring.RecordCommand("update", "rejected")
		return nil, err
	}

	oldPatient, err := s.repository.GetByID(ctx, id)
	if err != nil {
		monitoring.RecordCommand("update", "failed")
		return nil, err
	}

	// Writing
	updated, err := s.repository.Update(ctx, id, patch)
	if err != nil {
		monitoring.RecordCommand("update", "failed")
		return nil, err
	}

	s.logger.Audit(actorID, "update", "patient/"+id, true, nil)

	s.project(ctx, updated)
	s.invalidate(ctx, oldPatient)
	s.invalidate(ctx, updated)

	if err := s.publish(ctx, updated.ID, types.EventPatientUpdated, func() error {
		return s.publisher.PublishUpdated(ctx, oldPatient, updated)
	}); err != nil {
		monitoring.RecordCommand("update", "publish_failed")
		return updated, err
	}

	monitoring.RecordCommand("update", "ok")
	return updated, nil
}

// DeletePatient hard-deletes the canonical row and publishes a deleted
// event carrying the pre-delete record. The read projection is NOT
// removed: a deleted patient can remain visible on the read path until
// a future compaction step. Known limitation of the current design.
func (s *Service) DeletePatient(ctx context.Context, id, actorID string) error {
	patient, err := s.repository.GetByID(ctx, id)
	if err != nil {
		monitoring.RecordCommand("delete", "failed")
		return err
	}

	// Writing
	if err := s.repository.Delete(ctx, id); err != nil {
		monitoring.RecordCommand("delete", "failed")
		return err
	}

	s.logger.Audit(actorID, "delete", "patient/"+id, true, nil)

	s.invalidate(ctx, patient)

	if err := s.publish(ctx, id, types.EventPatientDeleted, func() error {
		return s.publisher.PublishDeleted(ctx, patient)
	}); err != nil {
		monitoring.RecordCommand("delete", "publish_failed")
		return err
	}

	monitoring.RecordCommand("delete", "ok")
	return nil
}

// ValidatePatient transitions the validation status of a patient and
// publishes a validated event
func (s *Service) ValidatePatient(ctx context.Context, id string, status types.ValidationStatus, actorID string) (*types.Patient, error) {
	// Validating
	if err := s.validator.ValidateStatus(status); err != nil {
		monitoring.RecordCommand("validate", "rejected")
		return nil, err
	}

	// Writing
	updated, err := s.repository.UpdateValidationStatus(ctx, id, status)
	if err != nil {
		monitoring.RecordCommand("validate", "failed")
		return nil, err
	}

	s.logger.Audit(actorID, "validate", "patient/"+id, true,
		map[string]interface{}{"validation_status": status})

	s.project(ctx, updated)
	s.invalidate(ctx, updated)

	if err := s.publish(ctx, id, types.EventPatientValidated, func() error {
		return s.publisher.PublishValidated(ctx, updated)
	}); err != nil {
		monitoring.RecordCommand("validate", "publish_failed")
		return updated, err
	}

	monitoring.RecordCommand("validate", "ok")
	return updated, nil
}

// GetPatientByID serves a point lookup from cache, falling back to the
// read projection. Reads never touch the write store.
func (s *Service) GetPatientByID(ctx context.Context, id string) (*types.PatientProjection, error) {
	return s.cachedLookup(ctx, cacheKeyID(id), func() (*types.PatientProjection, error) {
		return s.projector.GetByID(ctx, id)
	})
}

// GetPatientByCPF serves a point lookup by cpf
func (s *Service) GetPatientByCPF(ctx context.Context, cpf string) (*types.PatientProjection, error) {
	cpf = NormalizeCPF(cpf)
	return s.cachedLookup(ctx, cacheKeyCPF(cpf), func() (*types.PatientProjection, error) {
		return s.projector.GetByCPF(ctx, cpf)
	})
}

// GetPatientByMedicalRecord serves a point lookup by medical record number
func (s *Service) GetPatientByMedicalRecord(ctx context.Context, mrn string) (*types.PatientProjection, error) {
	return s.cachedLookup(ctx, cacheKeyMRN(mrn), func() (*types.PatientProjection, error) {
		return s.projector.GetByMedicalRecord(ctx, mrn)
	})
}

// SearchPatients queries the read projection with filters and
// pagination. Result pages are cached under a filter signature with a
// shorter TTL than point lookups.
func (s *Service) SearchPatients(ctx context.Context, filters *types.SearchFilters, pagination *types.Pagination) (*types.PagedResult, error) {
	if pagination == nil {
		pagination = &types.Pagination{}
	}
	pagination.Normalize()

	key := cacheKeySearch(filters, pagination)

	var cached types.PagedResult
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).Debug("Cache read failed, falling through to read store")
	}
	if hit {
		monitoring.RecordCacheRequest(true)
		return &cached, nil
	}
	monitoring.RecordCacheRequest(false)

	result, err := s.projector.Search(ctx, filters, pagination)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, result, s.searchTTL); err != nil {
		s.logger.WithError(err).Debug("Cache write failed")
	}
	return result, nil
}

// project syncs the canonical record to the read store. The outcome is
// logged and counted; a failure is swallowed because the canonical
// write already succeeded.
func (s *Service) project(ctx context.Context, patient *types.Patient) {
	err := s.projector.Project(ctx, patient)
	s.logger.SyncOutcome(patient.ID, err)
	monitoring.RecordProjection(err == nil)
}

// publish runs a publish closure and records its outcome
func (s *Service) publish(ctx context.Context, patientID string, eventType types.EventType, fn func() error) error {
	err := fn()
	s.logger.PublishOutcome(string(eventType), patientID, err)
	monitoring.RecordPublish(string(eventType), err == nil)
	return err
}

func (s *Service) publishCreated(ctx context.Context, patient *types.Patient) error {
	return s.publish(ctx, patient.ID, types.EventPatientCreated, func() error {
		return s.publisher.PublishCreated(ctx, patient)
	})
}

// invalidate drops the cache keys scoped to the patient and every
// search page. Best-effort; a failure only costs cache freshness.
func (s *Service) invalidate(ctx context.Context, patient *types.Patient) {
	patterns := []string{
		cacheKeyID(patient.ID),
		cacheKeyCPF(patient.CPF),
		cacheKeySearchPattern(),
	}
	if patient.MedicalRecordNumber != "" {
		patterns = append(patterns, cacheKeyMRN(patient.MedicalRecordNumber))
	}

	for _, pattern := range patterns {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.WithError(err).WithField("pattern", pattern).Debug("Cache invalidation failed")
		}
	}
}

func (s *Service) cachedLookup(ctx context.Context, key string, fetch func() (*types.PatientProjection, error)) (*types.PatientProjection, error) {
	var cached types.PatientProjection
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).Debug("Cache read failed, falling through to read store")
	}
	if hit {
		monitoring.RecordCacheRequest(true)
		return &cached, nil
	}
	monitoring.RecordCacheRequest(false)

	projection, err := fetch()
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, projection, s.pointTTL); err != nil {
		s.logger.WithError(err).Debug("Cache write failed")
	}
	return projection, nil
}
