package modules

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the module does not exist.
var ErrNotFound = errors.New("modules: not found")

// ErrDuplicateCode indicates the module code is taken.
var ErrDuplicateCode = errors.New("modules: code already taken")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns modules in display order. Inactive modules are kept out
// of administration listings but their rows are never purged.
func (r *Repository) List(ctx context.Context, includeInactive bool) ([]Module, error) {
	query := `SELECT id, code, name, is_active, display_order, created_at, updated_at
	          FROM modules WHERE is_active ORDER BY display_order, id`
	if includeInactive {
		query = `SELECT id, code, name, is_active, display_order, created_at, updated_at
		         FROM modules ORDER BY display_order, id`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.IsActive, &m.DisplayOrder, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByCode fetches a module by its stable code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Module, error) {
	var m Module
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, is_active, display_order, created_at, updated_at FROM modules WHERE code = $1`, code,
	).Scan(&m.ID, &m.Code, &m.Name, &m.IsActive, &m.DisplayOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, fmt.Errorf("module %q: %w", code, ErrNotFound)
		}
		return Module{}, err
	}
	return m, nil
}

// Create inserts a module at the end of the display order.
func (r *Repository) Create(ctx context.Context, code, name string) (Module, error) {
	var m Module
	err := r.pool.QueryRow(ctx,
		`INSERT INTO modules (code, name, is_active, display_order)
		 VALUES ($1, $2, true, COALESCE((SELECT MAX(display_order) FROM modules), 0) + 1)
		 RETURNING id, code, name, is_active, display_order, created_at, updated_at`,
		code, name,
	).Scan(&m.ID, &m.Code, &m.Name, &m.IsActive, &m.DisplayOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Module{}, fmt.Errorf("module %q: %w", code, ErrDuplicateCode)
		}
		return Module{}, err
	}
	return m, nil
}

// SetActive flips the platform kill-switch for a module.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (Module, error) {
	var m Module
	err := r.pool.QueryRow(ctx,
		`UPDATE modules SET is_active = $2, updated_at = NOW() WHERE id = $1
		 RETURNING id, code, name, is_active, display_order, created_at, updated_at`,
		id, active,
	).Scan(&m.ID, &m.Code, &m.Name, &m.IsActive, &m.DisplayOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, fmt.Errorf("module %d: %w", id, ErrNotFound)
		}
		return Module{}, err
	}
	return m, nil
}
