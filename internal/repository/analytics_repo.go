package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"estate-leads/internal/domain"

	"github.com/google/uuid"
)

// PostgresAnalyticsRepo 分析事件Repository实现（append-only）
type PostgresAnalyticsRepo struct {
	db *sql.DB
}

// NewPostgresAnalyticsRepo 创建分析事件Repository
func NewPostgresAnalyticsRepo(db *sql.DB) *PostgresAnalyticsRepo {
	return &PostgresAnalyticsRepo{db: db}
}

// 确保实现了接口
var _ AnalyticsRepo = (*PostgresAnalyticsRepo)(nil)

// AppendEvent 追加事件
func (r *PostgresAnalyticsRepo) AppendEvent(ctx context.Context, ev *domain.AnalyticsEvent) error {
	if ev == nil || ev.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	payload := ev.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO analytics_events (event_id, type, payload, created_at)
		VALUES ($1, $2, $3::jsonb, $4)
	`, ev.EventID, ev.Type, string(payload), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert analytics event: %w", err)
	}
	return nil
}

// ListEvents 查询 since 之后的事件（时间升序）
func (r *PostgresAnalyticsRepo) ListEvents(ctx context.Context, since time.Time) ([]*domain.AnalyticsEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id::text, type, COALESCE(payload, '{}'::jsonb)::text, created_at
		FROM analytics_events
		WHERE created_at >= $1
		ORDER BY created_at ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list analytics events: %w", err)
	}
	defer rows.Close()

	out := []*domain.AnalyticsEvent{}
	for rows.Next() {
		var ev domain.AnalyticsEvent
		var payloadRaw string
		if err := rows.Scan(&ev.EventID, &ev.Type, &payloadRaw, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analytics event: %w", err)
		}
		ev.Payload = json.RawMessage(payloadRaw)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// CountEventsByType 按类型统计事件数量
func (r *PostgresAnalyticsRepo) CountEventsByType(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM analytics_events GROUP BY type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count analytics events: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		out[typ] = n
	}
	return out, rows.Err()
}

// MemoryAnalyticsRepo 内存分析事件仓储（单元测试用）
type MemoryAnalyticsRepo struct {
	mu     sync.RWMutex
	events []*domain.AnalyticsEvent
}

func NewMemoryAnalyticsRepo() *MemoryAnalyticsRepo {
	return &MemoryAnalyticsRepo{}
}

// 确保实现了接口
var _ AnalyticsRepo = (*MemoryAnalyticsRepo)(nil)

func (r *MemoryAnalyticsRepo) AppendEvent(_ context.Context, ev *domain.AnalyticsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	cp := *ev
	r.events = append(r.events, &cp)
	return nil
}

func (r *MemoryAnalyticsRepo) ListEvents(_ context.Context, since time.Time) ([]*domain.AnalyticsEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.AnalyticsEvent{}
	for _, ev := range r.events {
		if !ev.CreatedAt.Before(since) {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryAnalyticsRepo) CountEventsByType(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := map[string]int{}
	for _, ev := range r.events {
		out[ev.Type]++
	}
	return out, nil
}
