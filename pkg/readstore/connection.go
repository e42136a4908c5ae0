package readstore

import (
	"fmt"

	surrealdb "github.com/surrealdb/surrealdb.go"

	"github.com/caio-healthchain/ms-patients/pkg/config"
	"github.com/caio-healthchain/ms-patients/pkg/logger"
)

// Client is the narrow surface the read side consumes. It is satisfied
// by *Store and by test fakes.
type Client interface {
	Merge(thing string, data map[string]interface{}) (interface{}, error)
	Query(sql string, vars map[string]interface{}) (interface{}, error)
	Delete(thing string) error
}

// Store wraps the SurrealDB connection holding the patient read projection
type Store struct {
	db     *surrealdb.DB
	config *config.ReadStoreConfig
	logger *logger.Logger
}

// NewConnection establishes a connection to the read store and selects
// the configured namespace and database
func NewConnection(cfg *config.ReadStoreConfig, log *logger.Logger) (*Store, error) {
	db, err := surrealdb.New(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to read store: %w", err)
	}

	if _, err := db.Signin(map[string]interface{}{
		"user": cfg.User,
		"pass": cfg.Password,
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to sign in to read store: %w", err)
	}

	if _, err := db.Use(cfg.Namespace, cfg.Database); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to select read store database: %w", err)
	}

	store := &Store{
		db:     db,
		config: cfg,
		logger: log,
	}

	log.Info("Read store connection established successfully")
	return store, nil
}

// Merge upserts the given fields into the record identified by thing,
// leaving fields absent from data untouched
func (s *Store) Merge(thing string, data map[string]interface{}) (interface{}, error) {
	return s.db.Change(thing, data)
}

// Query executes a SurrealQL statement with the given variables
func (s *Store) Query(sql string, vars map[string]interface{}) (interface{}, error) {
	return s.db.Query(sql, vars)
}

// Delete removes the record identified by thing
func (s *Store) Delete(thing string) error {
	_, err := s.db.Delete(thing)
	return err
}

// Close closes the read store connection
func (s *Store) Close() {
	s.db.Close()
}

// Health checks the read store connection health
func (s *Store) Health() error {
	_, err := s.db.Info()
	return err
}

// DefineIndexes creates the read-side indexes supporting the query
// patterns of the read path. Idempotent; safe to run at startup.
func (s *Store) DefineIndexes() error {
	statements := []string{
		`DEFINE INDEX patient_cpf ON TABLE patient COLUMNS cpf UNIQUE;`,
		`DEFINE INDEX patient_mrn ON TABLE patient COLUMNS medical_record_number;`,
		`DEFINE INDEX patient_status ON TABLE patient COLUMNS status, validation_status;`,
		`DEFINE INDEX patient_insurance ON TABLE patient COLUMNS insurance_plan, status;`,
		`DEFINE INDEX patient_doctor ON TABLE patient COLUMNS responsible_doctor, admission_date;`,
		`DEFINE INDEX patient_name ON TABLE patient COLUMNS name;`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Query(stmt, nil); err != nil {
			return fmt.Errorf("failed to define read store index: %w", err)
		}
	}

	s.logger.Info("Read store indexes defined successfully")
	return nil
}

// RecordID builds a patient record identifier for the read store.
// Angle brackets escape ids containing hyphens (UUIDs).
func RecordID(id string) string {
	return fmt.Sprintf("patient:⟨%s⟩", id)
}
