package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestAuditCleanupHandlerRejectsBadPayloads(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewAuditCleanupHandler(nil, logger)
	ctx := context.Background()

	// Malformed payloads and non-positive retention are dropped, not
	// retried forever.
	err := handler(ctx, asynq.NewTask(TaskAuditCleanup, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewAuditCleanupTask(-time.Hour)
	require.NoError(t, err)
	err = handler(ctx, task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewAuditCleanupTask(t *testing.T) {
	task, err := NewAuditCleanupTask(90 * 24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, TaskAuditCleanup, task.Type())
	require.JSONEq(t, `{"retention_hours":2160}`, string(task.Payload()))
}
