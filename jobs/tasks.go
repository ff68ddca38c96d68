package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditCleanup sweeps expired audit log entries.
	TaskAuditCleanup = "audit:cleanup"
	// TaskAuthzWarmup pre-initialises generation counters.
	TaskAuthzWarmup = "authz:warmup"
)

// AuditCleanupPayload configures one retention sweep.
type AuditCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditCleanupTask constructs the retention sweep task.
func NewAuditCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditCleanupPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}

// NewAuditCleanupHandler returns the handler for TaskAuditCleanup.
func NewAuditCleanupHandler(audit *shared.AuditLogger, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.RetentionHours <= 0 {
			return asynq.SkipRetry
		}
		removed, err := audit.Cleanup(ctx, time.Duration(payload.RetentionHours)*time.Hour)
		if err != nil {
			return err
		}
		logger.Info("audit cleanup", slog.Int64("removed", removed))
		return nil
	}
}

// NewAuthzWarmupTask constructs the warmup task.
func NewAuthzWarmupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskAuthzWarmup, nil), nil
}

// NewAuthzWarmupHandler returns the handler for TaskAuthzWarmup. It
// walks the role and company tables and initialises each scope's
// generation counter.
func NewAuthzWarmupHandler(pool *pgxpool.Pool, cache *authz.Cache, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		roleIDs, err := scanIDs(ctx, pool, `SELECT id FROM roles`)
		if err != nil {
			return err
		}
		companyIDs, err := scanIDs(ctx, pool, `SELECT id FROM companies`)
		if err != nil {
			return err
		}
		if err := cache.Warm(ctx, roleIDs, companyIDs); err != nil {
			return err
		}
		logger.Info("authz warmup",
			slog.Int("roles", len(roleIDs)),
			slog.Int("companies", len(companyIDs)))
		return nil
	}
}

func scanIDs(ctx context.Context, pool *pgxpool.Pool, query string) ([]int64, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
