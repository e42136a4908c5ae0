package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/caio-healthchain/ms-patients/pkg/config"
	"github.com/caio-healthchain/ms-patients/pkg/logger"
	"github.com/caio-healthchain/ms-patients/pkg/types"
)

// Publisher emits domain events to named channels. The operating mode
// is fixed at construction: offline mode logs envelopes without a
// transport, live mode publishes them to Redis channels. Delivery is
// at-most-once; a failed publish is surfaced to the caller but never
// rolls back the canonical write that preceded it.
type Publisher struct {
	mode     string
	service  string
	channels map[types.EventType]string
	client   *redis.Client
	logger   *logger.Logger
	now      func() time.Time
}

// NewPublisher creates an event publisher. client may be nil in
// offline mode.
func NewPublisher(cfg *config.EventsConfig, client *redis.Client, log *logger.Logger) *Publisher {
	return &Publisher{
		mode:    cfg.Mode,
		service: cfg.ServiceName,
		channels: map[types.EventType]string{
			types.EventPatientCreated:   cfg.CreatedChannel,
			types.EventPatientUpdated:   cfg.UpdatedChannel,
			types.EventPatientDeleted:   cfg.DeletedChannel,
			types.EventPatientValidated: cfg.ValidatedChannel,
		},
		client: client,
		logger: log,
		now:    time.Now,
	}
}

// Publish sends an envelope to the named channel
func (p *Publisher) Publish(ctx context.Context, channel string, envelope *types.EventEnvelope) error {
	if p.mode == "offline" {
		p.logger.WithFields(map[string]interface{}{
			"channel":    channel,
			"event_type": envelope.EventType,
			"patient_id": envelope.PatientID,
			"message_id": envelope.MessageID,
		}).Info("Event publishing disabled, envelope logged only")
		return nil
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return types.NewPublishError("failed to encode event envelope", err)
	}

	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return types.NewPublishError(
			fmt.Sprintf("failed to publish %s event", envelope.EventType), err)
	}

	return nil
}

// PublishCreated emits a patient.created event
func (p *Publisher) PublishCreated(ctx context.Context, patient *types.Patient) error {
	envelope := p.envelope(types.EventPatientCreated, patient.ID)
	envelope.Data = patient
	return p.Publish(ctx, p.channels[types.EventPatientCreated], envelope)
}

// PublishUpdated emits a patient.updated event carrying the old and new
// state plus a field-level diff
func (p *Publisher) PublishUpdated(ctx context.Context, oldPatient, newPatient *types.Patient) error {
	envelope := p.envelope(types.EventPatientUpdated, newPatient.ID)
	envelope.OldData = oldPatient
	envelope.NewData = newPatient
	envelope.Changes = diffPatients(oldPatient, newPatient)
	return p.Publish(ctx, p.channels[types.EventPatientUpdated], envelope)
}

// PublishDeleted emits a patient.deleted event carrying the pre-delete
// canonical record
func (p *Publisher) PublishDeleted(ctx context.Context, patient *types.Patient) error {
	envelope := p.envelope(types.EventPatientDeleted, patient.ID)
	envelope.Data = patient
	return p.Publish(ctx, p.channels[types.EventPatientDeleted], envelope)
}

// PublishValidated emits a patient.validated event
func (p *Publisher) PublishValidated(ctx context.Context, patient *types.Patient) error {
	envelope := p.envelope(types.EventPatientValidated, patient.ID)
	envelope.Data = patient
	return p.Publish(ctx, p.channels[types.EventPatientValidated], envelope)
}

func (p *Publisher) envelope(eventType types.EventType, patientID string) *types.EventEnvelope {
	return &types.EventEnvelope{
		MessageID: uuid.New().String(),
		EventType: eventType,
		PatientID: patientID,
		Timestamp: p.now().UTC(),
		Service:   p.service,
	}
}

// diffPatients computes a structural field-level diff between two
// patient states. Values are normalized through JSON so that nested
// objects compare by content, not by reference.
func diffPatients(oldPatient, newPatient *types.Patient) []types.FieldChange {
	oldMap := patientToMap(oldPatient)
	newMap := patientToMap(newPatient)

	fields := make(map[string]struct{}, len(oldMap)+len(newMap))
	for k := range oldMap {
		fields[k] = struct{}{}
	}
	for k := range newMap {
		fields[k] = struct{}{}
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	var changes []types.FieldChange
	for _, field := range names {
		oldVal, newVal := oldMap[field], newMap[field]
		if !reflect.DeepEqual(oldVal, newVal) {
			changes = append(changes, types.FieldChange{
				Field:    field,
				OldValue: oldVal,
				NewValue: newVal,
			})
		}
	}
	return changes
}

func patientToMap(patient *types.Patient) map[string]interface{} {
	raw, err := json.Marshal(patient)
	if err != nil {
		return nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return data
}
