// Package patient provides the patient record repository.
package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dermaflow/go-clinic/internal/infrastructure/postgres"
	"github.com/dermaflow/go-clinic/internal/infrastructure/redpanda"
)

// ErrNotFound indicates the requested patient does not exist.
var ErrNotFound = errors.New("patient not found")

// Filters narrows and orders List results.
type Filters struct {
	Status         Status
	SortBy         string // "name" or "last_visit"
	SortDescending bool
}

// Repository persists patients in PostgreSQL. Updates are read-merge-write
// inside one transaction; the store is last-write-wins at the field-merge
// granularity, matching the workflow's single-editor assumption. Lifecycle
// events are written to the transactional outbox in the same transaction.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a new patient repository.
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger}
}

// Create inserts a new patient and assigns its ID.
func (r *Repository) Create(ctx context.Context, p Patient) (*Patient, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = StatusSaved
	}

	planJSON, err := marshalPlan(p.TreatmentPlan)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO patients (id, name, phone, email, condition, last_visit, status, treatment_plan)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Phone, p.Email, p.Condition, p.LastVisit, p.Status, planJSON).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert patient: %w", err)
	}

	if err := r.writeEvent(ctx, tx, &p, "PatientRegistered"); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	r.logger.Info("patient created", zap.String("id", p.ID))
	return &p, nil
}

// GetByID retrieves a patient by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, condition, last_visit, status, treatment_plan,
		       created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id))
}

// List retrieves patients matching the filters.
func (r *Repository) List(ctx context.Context, f Filters) ([]*Patient, error) {
	query := `
		SELECT id, name, phone, email, condition, last_visit, status, treatment_plan,
		       created_at, updated_at
		FROM patients
	`
	var args []any
	if f.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, f.Status)
	}

	switch f.SortBy {
	case "name":
		query += ` ORDER BY name`
	case "last_visit":
		query += ` ORDER BY last_visit`
	default:
		query += ` ORDER BY created_at`
	}
	if f.SortDescending {
		query += ` DESC`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// Update merges a partial patient into the stored record and returns the
// merged result. The row is locked for the duration of the merge so the
// write is atomic per call.
func (r *Repository) Update(ctx context.Context, id string, upd Patient) (*Patient, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanPatient(tx.QueryRow(ctx, `
		SELECT id, name, phone, email, condition, last_visit, status, treatment_plan,
		       created_at, updated_at
		FROM patients
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}

	merged := Merge(*current, upd)
	planJSON, err := marshalPlan(merged.TreatmentPlan)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE patients
		SET name = $2, phone = $3, email = $4, condition = $5, last_visit = $6,
		    status = $7, treatment_plan = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, id, merged.Name, merged.Phone, merged.Email, merged.Condition,
		merged.LastVisit, merged.Status, planJSON).Scan(&merged.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}

	if err := r.writeEvent(ctx, tx, &merged, "PatientUpdated"); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &merged, nil
}

// UpdateStatus sets the display status only.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE patients SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a patient. Used by the surrounding management pages, not
// by the workflow itself.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := r.writeEvent(ctx, tx, &Patient{ID: id}, "PatientDeleted"); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Info("patient deleted", zap.String("id", id))
	return nil
}

func (r *Repository) writeEvent(ctx context.Context, tx pgx.Tx, p *Patient, eventType string) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	return postgres.WriteEntry(ctx, tx, &postgres.OutboxEntry{
		AggregateID:   p.ID,
		AggregateType: "Patient",
		EventType:     eventType,
		Payload:       payload,
		Topic:         redpanda.TopicPatientEvents,
		Key:           p.ID,
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	var planJSON []byte
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.Condition, &p.LastVisit,
		&p.Status, &planJSON, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	if len(planJSON) > 0 {
		var plan TreatmentPlan
		if err := json.Unmarshal(planJSON, &plan); err != nil {
			return nil, fmt.Errorf("decode treatment plan: %w", err)
		}
		p.TreatmentPlan = &plan
	}
	return &p, nil
}

func marshalPlan(plan *TreatmentPlan) ([]byte, error) {
	if plan == nil {
		return nil, nil
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode treatment plan: %w", err)
	}
	return data, nil
}
