package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"estate-leads/internal/domain"

	"github.com/google/uuid"
)

// PostgresNotificationLogRepo 通知日志Repository实现（append-only）
type PostgresNotificationLogRepo struct {
	db *sql.DB
}

// NewPostgresNotificationLogRepo 创建通知日志Repository
func NewPostgresNotificationLogRepo(db *sql.DB) *PostgresNotificationLogRepo {
	return &PostgresNotificationLogRepo{db: db}
}

// 确保实现了接口
var _ NotificationLogRepo = (*PostgresNotificationLogRepo)(nil)

// AppendLog 追加通知日志
func (r *PostgresNotificationLogRepo) AppendLog(ctx context.Context, entry *domain.NotificationLogEntry) error {
	if entry == nil || entry.LeadID == "" || entry.Channel == "" {
		return fmt.Errorf("lead_id and channel are required")
	}
	if entry.LogID == "" {
		entry.LogID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_log (log_id, lead_id, event, channel, recipient, success, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.LogID, entry.LeadID, entry.Event, entry.Channel, entry.Recipient, entry.Success, entry.Error, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification log: %w", err)
	}
	return nil
}

// CountByChannel 按渠道统计发送成功数量
func (r *PostgresNotificationLogRepo) CountByChannel(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT channel, COUNT(*) FROM notification_log WHERE success = TRUE GROUP BY channel
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count notification log: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var channel string
		var n int
		if err := rows.Scan(&channel, &n); err != nil {
			return nil, fmt.Errorf("failed to scan notification count: %w", err)
		}
		out[channel] = n
	}
	return out, rows.Err()
}

// MemoryNotificationLogRepo 内存通知日志仓储（单元测试用）
type MemoryNotificationLogRepo struct {
	mu      sync.RWMutex
	entries []*domain.NotificationLogEntry
}

func NewMemoryNotificationLogRepo() *MemoryNotificationLogRepo {
	return &MemoryNotificationLogRepo{}
}

// 确保实现了接口
var _ NotificationLogRepo = (*MemoryNotificationLogRepo)(nil)

func (r *MemoryNotificationLogRepo) AppendLog(_ context.Context, entry *domain.NotificationLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.LogID == "" {
		entry.LogID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *MemoryNotificationLogRepo) CountByChannel(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := map[string]int{}
	for _, e := range r.entries {
		if e.Success {
			out[e.Channel]++
		}
	}
	return out, nil
}

// Entries 返回全部日志副本（测试断言用）
func (r *MemoryNotificationLogRepo) Entries() []*domain.NotificationLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.NotificationLogEntry, 0, len(r.entries))
	for _, e := range r.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}
