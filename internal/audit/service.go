package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TimelineRow is one activity log entry.
type TimelineRow struct {
	ID       uuid.UUID      `json:"id"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// TimelineFilters narrows the timeline query.
type TimelineFilters struct {
	From     *time.Time
	To       *time.Time
	ActorID  int64
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// PagingInfo carries cursorless paging state.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

// Service reads the append-only activity log.
type Service struct {
	pool *pgxpool.Pool
}

// NewService builds a Service instance.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Timeline returns activity entries newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.pool == nil {
		return Result{}, fmt.Errorf("audit: pool not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := `SELECT id, actor_id, action, entity, entity_id, meta, occurred_at FROM audit_logs WHERE true`
	args := []any{}
	n := 0
	add := func(clause string, value any) {
		n++
		query += fmt.Sprintf(" AND %s $%d", clause, n)
		args = append(args, value)
	}
	if filters.From != nil {
		add("occurred_at >=", *filters.From)
	}
	if filters.To != nil {
		add("occurred_at <=", *filters.To)
	}
	if filters.ActorID > 0 {
		add("actor_id =", filters.ActorID)
	}
	if filters.Entity != "" {
		add("entity =", filters.Entity)
	}
	if filters.Action != "" {
		add("action =", filters.Action)
	}
	query += fmt.Sprintf(" ORDER BY occurred_at DESC OFFSET $%d LIMIT $%d", n+1, n+2)
	args = append(args, offset, pageSize+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var (
			row  TimelineRow
			meta []byte
		)
		if err := rows.Scan(&row.ID, &row.ActorID, &row.Action, &row.Entity, &row.EntityID, &meta, &row.At); err != nil {
			return Result{}, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &row.Meta)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	hasNext := len(out) > pageSize
	if hasNext {
		out = out[:pageSize]
	}
	return Result{
		Rows:   out,
		Paging: PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext},
	}, nil
}
