// Command seed creates the policy schema and loads a development
// dataset: the system roles, the module catalog, one demo company and
// its users.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian/internal/app"
)

const schema = `
CREATE TABLE IF NOT EXISTS roles (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    is_system BOOLEAN NOT NULL DEFAULT false,
    is_super BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS modules (
    id BIGSERIAL PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT true,
    display_order INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS companies (
    id BIGSERIAL PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    max_modules INT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    company_id BIGINT REFERENCES companies(id),
    role_id BIGINT NOT NULL REFERENCES roles(id),
    is_active BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS role_permissions (
    role_id BIGINT NOT NULL REFERENCES roles(id),
    module_id BIGINT NOT NULL REFERENCES modules(id),
    can_create BOOLEAN NOT NULL DEFAULT false,
    can_read BOOLEAN NOT NULL DEFAULT false,
    can_update BOOLEAN NOT NULL DEFAULT false,
    can_delete BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (role_id, module_id)
);

CREATE TABLE IF NOT EXISTS company_modules (
    company_id BIGINT NOT NULL REFERENCES companies(id),
    module_id BIGINT NOT NULL REFERENCES modules(id),
    enabled BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (company_id, module_id)
);

CREATE TABLE IF NOT EXISTS company_permissions (
    company_id BIGINT NOT NULL REFERENCES companies(id),
    feature TEXT NOT NULL,
    enabled BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (company_id, feature)
);

CREATE TABLE IF NOT EXISTS user_permissions (
    user_id BIGINT NOT NULL REFERENCES users(id),
    module_id BIGINT NOT NULL REFERENCES modules(id),
    can_create BOOLEAN NOT NULL DEFAULT false,
    can_read BOOLEAN NOT NULL DEFAULT false,
    can_update BOOLEAN NOT NULL DEFAULT false,
    can_delete BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, module_id)
);

CREATE TABLE IF NOT EXISTS audit_logs (
    id UUID PRIMARY KEY,
    actor_id BIGINT NOT NULL,
    action TEXT NOT NULL,
    entity TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    meta JSONB,
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS audit_logs_occurred_at_idx ON audit_logs (occurred_at);
`

var catalog = []struct {
	code string
	name string
}{
	{"permissions", "Permission Administration"},
	{"customer", "Customers"},
	{"deal", "Deals"},
	{"quote", "Quotes"},
	{"invoice", "Invoices"},
	{"ticket", "Tickets"},
	{"campaign", "Email Campaigns"},
	{"segment", "Segments"},
}

func main() {
	ctx := context.Background()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		logger.Error("create schema", slog.Any("error", err))
		os.Exit(1)
	}

	var superRoleID, adminRoleID, salesRoleID int64
	if err := pool.QueryRow(ctx,
		`INSERT INTO roles (name, is_system, is_super) VALUES ('Super Admin', true, true)
		 ON CONFLICT (name) DO UPDATE SET is_system = true, is_super = true
		 RETURNING id`).Scan(&superRoleID); err != nil {
		logger.Error("seed super role", slog.Any("error", err))
		os.Exit(1)
	}
	if err := pool.QueryRow(ctx,
		`INSERT INTO roles (name, is_system) VALUES ('Company Admin', true)
		 ON CONFLICT (name) DO UPDATE SET is_system = true
		 RETURNING id`).Scan(&adminRoleID); err != nil {
		logger.Error("seed admin role", slog.Any("error", err))
		os.Exit(1)
	}
	if err := pool.QueryRow(ctx,
		`INSERT INTO roles (name) VALUES ('Sales')
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`).Scan(&salesRoleID); err != nil {
		logger.Error("seed sales role", slog.Any("error", err))
		os.Exit(1)
	}

	moduleIDs := map[string]int64{}
	for i, m := range catalog {
		var id int64
		if err := pool.QueryRow(ctx,
			`INSERT INTO modules (code, name, display_order) VALUES ($1, $2, $3)
			 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`, m.code, m.name, i+1).Scan(&id); err != nil {
			logger.Error("seed module", slog.String("code", m.code), slog.Any("error", err))
			os.Exit(1)
		}
		moduleIDs[m.code] = id
	}

	var companyID int64
	if err := pool.QueryRow(ctx,
		`INSERT INTO companies (code, name, max_modules) VALUES ('acme', 'Acme Corp', 5)
		 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`).Scan(&companyID); err != nil {
		logger.Error("seed company", slog.Any("error", err))
		os.Exit(1)
	}

	seedUser(ctx, pool, logger, "root@meridian.local", "Platform Root", nil, superRoleID)
	seedUser(ctx, pool, logger, "admin@acme.test", "Acme Admin", &companyID, adminRoleID)
	seedUser(ctx, pool, logger, "sales@acme.test", "Acme Sales", &companyID, salesRoleID)

	// Company Admin manages permissions and reads everything licensed.
	for _, code := range []string{"permissions", "customer", "deal", "invoice"} {
		if _, err := pool.Exec(ctx,
			`INSERT INTO role_permissions (role_id, module_id, can_create, can_read, can_update, can_delete)
			 VALUES ($1, $2, true, true, true, true)
			 ON CONFLICT (role_id, module_id) DO NOTHING`, adminRoleID, moduleIDs[code]); err != nil {
			logger.Error("seed role grant", slog.Any("error", err))
			os.Exit(1)
		}
	}
	for _, code := range []string{"customer", "deal", "invoice"} {
		if _, err := pool.Exec(ctx,
			`INSERT INTO role_permissions (role_id, module_id, can_create, can_read, can_update, can_delete)
			 VALUES ($1, $2, true, true, false, false)
			 ON CONFLICT (role_id, module_id) DO NOTHING`, salesRoleID, moduleIDs[code]); err != nil {
			logger.Error("seed role grant", slog.Any("error", err))
			os.Exit(1)
		}
	}
	for _, code := range []string{"permissions", "customer", "deal", "invoice"} {
		if _, err := pool.Exec(ctx,
			`INSERT INTO company_modules (company_id, module_id, enabled) VALUES ($1, $2, true)
			 ON CONFLICT (company_id, module_id) DO UPDATE SET enabled = true`,
			companyID, moduleIDs[code]); err != nil {
			logger.Error("seed company module", slog.Any("error", err))
			os.Exit(1)
		}
	}

	logger.Info("seed complete",
		slog.Int64("company", companyID),
		slog.Int("modules", len(moduleIDs)))
}

func seedUser(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, email, name string, companyID *int64, roleID int64) {
	if _, err := pool.Exec(ctx,
		`INSERT INTO users (email, name, company_id, role_id) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO UPDATE SET role_id = EXCLUDED.role_id`,
		email, name, companyID, roleID); err != nil {
		logger.Error("seed user", slog.String("email", email), slog.Any("error", err))
		os.Exit(1)
	}
}
