package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the write store schema
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	if _, err := db.ExecContext(ctx, createPatientsTable); err != nil {
		return fmt.Errorf("failed to create patients table: %w", err)
	}

	for _, index := range createPatientsIndexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

const createPatientsTable = `
CREATE TABLE IF NOT EXISTS patients (
	id UUID PRIMARY KEY,
	cpf VARCHAR(11) NOT NULL,
	medical_record_number VARCHAR(50),
	name VARCHAR(255) NOT NULL,
	birth_date DATE NOT NULL,
	phone VARCHAR(20),
	email VARCHAR(255),
	address TEXT,
	emergency_contact JSONB,
	room_number VARCHAR(20),
	responsible_doctor VARCHAR(255),
	admission_date TIMESTAMPTZ,
	insurance_plan VARCHAR(100),
	insurance_number VARCHAR(100),
	insurance_validity TIMESTAMPTZ,
	status VARCHAR(20) NOT NULL DEFAULT 'active',
	validation_status VARCHAR(20) NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at TIMESTAMPTZ
);`

// The unique indexes on cpf and medical_record_number back the
// validator's uniqueness checks; a concurrent writer that slips between
// check and write still hits them. They are partial over live rows so a
// soft-deleted patient does not block re-registration, matching the
// deleted_at IS NULL scope of the uniqueness queries.
var createPatientsIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS patients_cpf_unique ON patients(cpf) WHERE deleted_at IS NULL;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS patients_mrn_unique ON patients(medical_record_number) WHERE deleted_at IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_patients_status ON patients(status, validation_status);`,
	`CREATE INDEX IF NOT EXISTS idx_patients_insurance ON patients(insurance_plan, status);`,
	`CREATE INDEX IF NOT EXISTS idx_patients_doctor ON patients(responsible_doctor, admission_date);`,
	`CREATE INDEX IF NOT EXISTS idx_patients_name ON patients(name);`,
	`CREATE INDEX IF NOT EXISTS idx_patients_created_at ON patients(created_at DESC);`,
}
