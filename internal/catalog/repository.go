// Package catalog provides the catalog repository.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound indicates the catalog entry does not exist.
var ErrNotFound = errors.New("catalog entry not found")

// Repository provides read-mostly access to treatments and medicines.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a new catalog repository.
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger}
}

// ListTreatments returns all treatments in insertion order.
func (r *Repository) ListTreatments(ctx context.Context) ([]Treatment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, duration, cost
		FROM treatments
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list treatments: %w", err)
	}
	defer rows.Close()

	var treatments []Treatment
	for rows.Next() {
		var t Treatment
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Duration, &t.Cost); err != nil {
			return nil, fmt.Errorf("scan treatment: %w", err)
		}
		treatments = append(treatments, t)
	}
	return treatments, rows.Err()
}

// ListMedicines returns all medicines in insertion order.
func (r *Repository) ListMedicines(ctx context.Context) ([]Medicine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, type, usage, dosage, stock
		FROM medicines
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	defer rows.Close()

	var medicines []Medicine
	for rows.Next() {
		var m Medicine
		if err := rows.Scan(&m.ID, &m.Name, &m.Type, &m.Usage, &m.Dosage, &m.Stock); err != nil {
			return nil, fmt.Errorf("scan medicine: %w", err)
		}
		medicines = append(medicines, m)
	}
	return medicines, rows.Err()
}

// GetTreatment returns a single treatment by ID.
func (r *Repository) GetTreatment(ctx context.Context, id int) (*Treatment, error) {
	var t Treatment
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, duration, cost
		FROM treatments
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Description, &t.Duration, &t.Cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get treatment: %w", err)
	}
	return &t, nil
}

// GetMedicine returns a single medicine by ID.
func (r *Repository) GetMedicine(ctx context.Context, id int) (*Medicine, error) {
	var m Medicine
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, type, usage, dosage, stock
		FROM medicines
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.Type, &m.Usage, &m.Dosage, &m.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get medicine: %w", err)
	}
	return &m, nil
}

// CreateTreatment inserts a treatment and returns it with the assigned ID.
func (r *Repository) CreateTreatment(ctx context.Context, t Treatment) (*Treatment, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO treatments (name, description, duration, cost)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, t.Name, t.Description, t.Duration, t.Cost).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("create treatment: %w", err)
	}
	r.logger.Info("treatment created", zap.Int("id", t.ID), zap.String("name", t.Name))
	return &t, nil
}

// CreateMedicine inserts a medicine and returns it with the assigned ID.
func (r *Repository) CreateMedicine(ctx context.Context, m Medicine) (*Medicine, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO medicines (name, type, usage, dosage, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, m.Name, m.Type, m.Usage, m.Dosage, m.Stock).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("create medicine: %w", err)
	}
	r.logger.Info("medicine created", zap.Int("id", m.ID), zap.String("name", m.Name))
	return &m, nil
}

// DeleteTreatment removes a treatment by ID.
func (r *Repository) DeleteTreatment(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM treatments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete treatment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMedicine removes a medicine by ID.
func (r *Repository) DeleteMedicine(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete medicine: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
