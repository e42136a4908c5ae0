package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/marshal"

	"github.com/caio-healthchain/ms-patients/pkg/logger"
	"github.com/caio-healthchain/ms-patients/pkg/readstore"
	"github.com/caio-healthchain/ms-patients/pkg/types"
)

// Projector maintains the read-optimized patient projection and serves
// the query side of the service. Project is best-effort: the canonical
// write already succeeded when it runs, so its failures are surfaced as
// sync errors for the orchestrator to log and swallow, never to roll
// back the write.
type Projector struct {
	store  readstore.Client
	logger *logger.Logger
	now    func() time.Time
}

// NewProjector creates a new read projector
func NewProjector(store readstore.Client, log *logger.Logger) *Projector {
	return &Projector{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

type versionRow struct {
	Version int64 `json:"version"`
}

type countRow struct {
	Total int64 `json:"total"`
}

// Project upserts the canonical record into the read store, incrementing
// the projection version and refreshing last_synced_at. Successful syncs
// apply in the order they were issued per patient id; nothing stronger
// is guaranteed.
func (p *Projector) Project(ctx context.Context, patient *types.Patient) error {
	projection := types.NewProjection(patient)

	current, err := p.currentVersion(patient.ID)
	if err != nil {
		return types.NewSyncError("failed to read projection version", err)
	}
	projection.Version = current + 1
	projection.LastSyncedAt = p.now().UTC()

	data, err := projectionToMap(projection)
	if err != nil {
		return types.NewSyncError("failed to encode projection", err)
	}

	if _, err := p.store.Merge(readstore.RecordID(patient.ID), data); err != nil {
		return types.NewSyncError("failed to upsert projection", err)
	}

	return nil
}

// GetByID retrieves a projection by patient id
func (p *Projector) GetByID(ctx context.Context, id string) (*types.PatientProjection, error) {
	return p.selectOne(`SELECT * FROM type::thing("patient", $id)`, map[string]interface{}{"id": id})
}

// GetByCPF retrieves a projection by cpf
func (p *Projector) GetByCPF(ctx context.Context, cpf string) (*types.PatientProjection, error) {
	return p.selectOne(`SELECT * FROM patient WHERE cpf = $cpf LIMIT 1`, map[string]interface{}{"cpf": cpf})
}

// GetByMedicalRecord retrieves a projection by medical record number
func (p *Projector) GetByMedicalRecord(ctx context.Context, mrn string) (*types.PatientProjection, error) {
	return p.selectOne(`SELECT * FROM patient WHERE medical_record_number = $mrn LIMIT 1`, map[string]interface{}{"mrn": mrn})
}

// Search queries projections with the supported filters and pagination,
// sorted by creation time descending
func (p *Projector) Search(ctx context.Context, filters *types.SearchFilters, pagination *types.Pagination) (*types.PagedResult, error) {
	pagination.Normalize()
	where, vars := buildSearchClauses(filters)

	countQuery := fmt.Sprintf(`SELECT count() AS total FROM patient%s GROUP ALL`, where)
	res, err := p.store.Query(countQuery, vars)
	counts, err := marshal.SmartUnmarshal[countRow](res, err)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to count projections", err)
	}

	var total int64
	if len(counts) > 0 {
		total = counts[0].Total
	}

	pageQuery := fmt.Sprintf(
		`SELECT * FROM patient%s ORDER BY created_at DESC LIMIT %d START %d`,
		where, pagination.Limit, pagination.Offset(),
	)
	res, err = p.store.Query(pageQuery, vars)
	rows, err := marshal.SmartUnmarshal[types.PatientProjection](res, err)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to search projections", err)
	}

	items := make([]*types.PatientProjection, 0, len(rows))
	for i := range rows {
		rows[i].ID = trimRecordID(rows[i].ID)
		items = append(items, &rows[i])
	}

	return types.NewPagedResult(items, pagination.Page, pagination.Limit, total), nil
}

func (p *Projector) selectOne(query string, vars map[string]interface{}) (*types.PatientProjection, error) {
	res, err := p.store.Query(query, vars)
	rows, err := marshal.SmartUnmarshal[types.PatientProjection](res, err)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to query projection", err)
	}
	if len(rows) == 0 {
		return nil, types.NewNotFoundError(types.ErrCodePatientNotFound, "patient not found in read store")
	}

	projection := rows[0]
	projection.ID = trimRecordID(projection.ID)
	return &projection, nil
}

func (p *Projector) currentVersion(id string) (int64, error) {
	res, err := p.store.Query(`SELECT version FROM type::thing("patient", $id)`, map[string]interface{}{"id": id})
	rows, err := marshal.SmartUnmarshal[versionRow](res, err)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Version, nil
}

// buildSearchClauses maps the search filters onto a SurrealQL WHERE
// clause. Name, cpf and responsible doctor are partial matches; the
// rest are exact.
func buildSearchClauses(filters *types.SearchFilters) (string, map[string]interface{}) {
	clauses := []string{}
	vars := map[string]interface{}{}

	if filters == nil {
		return "", vars
	}

	if filters.Name != "" {
		clauses = append(clauses, `string::lowercase(name) CONTAINS string::lowercase($name)`)
		vars["name"] = filters.Name
	}
	if filters.CPF != "" {
		clauses = append(clauses, `cpf CONTAINS $cpf`)
		vars["cpf"] = NormalizeCPF(filters.CPF)
	}
	if filters.Status != "" {
		clauses = append(clauses, `status = $status`)
		vars["status"] = filters.Status
	}
	if filters.RoomNumber != "" {
		clauses = append(clauses, `room_number = $room`)
		vars["room"] = filters.RoomNumber
	}
	if filters.InsurancePlan != "" {
		clauses = append(clauses, `insurance_plan = $plan`)
		vars["plan"] = filters.InsurancePlan
	}
	if filters.ResponsibleDoctor != "" {
		clauses = append(clauses, `string::lowercase(responsible_doctor) CONTAINS string::lowercase($doctor)`)
		vars["doctor"] = filters.ResponsibleDoctor
	}
	if filters.AdmittedAfter != nil {
		clauses = append(clauses, `admission_date >= $admitted_after`)
		vars["admitted_after"] = filters.AdmittedAfter.UTC().Format(time.RFC3339)
	}
	if filters.AdmittedBefore != nil {
		clauses = append(clauses, `admission_date <= $admitted_before`)
		vars["admitted_before"] = filters.AdmittedBefore.UTC().Format(time.RFC3339)
	}

	if len(clauses) == 0 {
		return "", vars
	}
	return " WHERE " + strings.Join(clauses, " AND "), vars
}

// projectionToMap flattens the projection into the field map sent to
// the read store. The id travels in the record identifier, not the
// document body.
func projectionToMap(projection *types.PatientProjection) (map[string]interface{}, error) {
	raw, err := json.Marshal(projection)
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}

	delete(data, "id")
	return data, nil
}

// trimRecordID strips the read store record prefix from an id field,
// so callers always see the plain patient id
func trimRecordID(id string) string {
	id = strings.TrimPrefix(id, "patient:")
	id = strings.TrimPrefix(id, "⟨")
	id = strings.TrimSuffix(id, "⟩")
	return id
}
