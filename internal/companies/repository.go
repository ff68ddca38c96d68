package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the company does not exist.
var ErrNotFound = errors.New("companies: not found")

// ErrDuplicateCode indicates the company code is taken.
var ErrDuplicateCode = errors.New("companies: code already taken")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all companies ordered by id.
func (r *Repository) List(ctx context.Context) ([]Company, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, name, max_modules, created_at, updated_at FROM companies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.MaxModules, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a company by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, max_modules, created_at, updated_at FROM companies WHERE id = $1`, id,
	).Scan(&c.ID, &c.Code, &c.Name, &c.MaxModules, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, fmt.Errorf("company %d: %w", id, ErrNotFound)
		}
		return Company{}, err
	}
	return c, nil
}

// Create inserts a new company.
func (r *Repository) Create(ctx context.Context, code, name string, maxModules *int32) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx,
		`INSERT INTO companies (code, name, max_modules) VALUES ($1, $2, $3)
		 RETURNING id, code, name, max_modules, created_at, updated_at`,
		code, name, maxModules,
	).Scan(&c.ID, &c.Code, &c.Name, &c.MaxModules, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Company{}, fmt.Errorf("company %q: %w", code, ErrDuplicateCode)
		}
		return Company{}, err
	}
	return c, nil
}

// SetQuota updates the module quota; nil clears it (unlimited).
func (r *Repository) SetQuota(ctx context.Context, id int64, maxModules *int32) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx,
		`UPDATE companies SET max_modules = $2, updated_at = NOW() WHERE id = $1
		 RETURNING id, code, name, max_modules, created_at, updated_at`,
		id, maxModules,
	).Scan(&c.ID, &c.Code, &c.Name, &c.MaxModules, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, fmt.Errorf("company %d: %w", id, ErrNotFound)
		}
		return Company{}, err
	}
	return c, nil
}
