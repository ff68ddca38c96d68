package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the user does not exist.
var ErrNotFound = errors.New("users: not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUser fetches a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, company_id, role_id, is_active, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CompanyID, &u.RoleID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return User{}, err
	}
	return u, nil
}

// GetUserWithSuperFlag fetches a user joined with its role's super flag.
func (r *Repository) GetUserWithSuperFlag(ctx context.Context, id int64) (User, bool, error) {
	var (
		u       User
		isSuper bool
	)
	err := r.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.name, u.company_id, u.role_id, u.is_active, u.created_at, u.updated_at, r.is_super
		 FROM users u JOIN roles r ON r.id = u.role_id
		 WHERE u.id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CompanyID, &u.RoleID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &isSuper)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, false, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return User{}, false, err
	}
	return u, isSuper, nil
}

// ListUsers returns users, optionally restricted to one company.
func (r *Repository) ListUsers(ctx context.Context, companyID int64) ([]User, error) {
	query := `SELECT id, email, name, company_id, role_id, is_active, created_at, updated_at FROM users ORDER BY id`
	args := []any{}
	if companyID > 0 {
		query = `SELECT id, email, name, company_id, role_id, is_active, created_at, updated_at
		         FROM users WHERE company_id = $1 ORDER BY id`
		args = append(args, companyID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CompanyID, &u.RoleID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
