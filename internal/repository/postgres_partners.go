package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"estate-leads/internal/domain"

	"github.com/google/uuid"
)

// PostgresPartnersRepo 合作方Repository实现
type PostgresPartnersRepo struct {
	db *sql.DB
}

// NewPostgresPartnersRepo 创建合作方Repository
func NewPostgresPartnersRepo(db *sql.DB) *PostgresPartnersRepo {
	return &PostgresPartnersRepo{db: db}
}

// 确保实现了接口
var _ PartnersRepo = (*PostgresPartnersRepo)(nil)

// CreatePartner 创建合作方
func (r *PostgresPartnersRepo) CreatePartner(ctx context.Context, p *domain.Partner) error {
	if p == nil || p.Name == "" {
		return fmt.Errorf("partner name is required")
	}
	if p.PartnerID == "" {
		p.PartnerID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO partners (partner_id, name, type, default_commission, capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.PartnerID, p.Name, p.Type, p.DefaultCommission, p.Capacity, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert partner: %w", err)
	}
	return nil
}

// GetPartner 获取合作方（含收入明细）
func (r *PostgresPartnersRepo) GetPartner(ctx context.Context, partnerID string) (*domain.Partner, error) {
	if partnerID == "" {
		return nil, ErrNotFound
	}

	var p domain.Partner
	err := r.db.QueryRowContext(ctx, `
		SELECT partner_id::text, name, type, default_commission, capacity, created_at, updated_at
		FROM partners WHERE partner_id = $1
	`, partnerID).Scan(&p.PartnerID, &p.Name, &p.Type, &p.DefaultCommission, &p.Capacity, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT amount, currency, COALESCE(note, ''), created_at
		FROM partner_revenue WHERE partner_id = $1 ORDER BY created_at ASC
	`, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.RevenueEntry
		if err := rows.Scan(&e.Amount, &e.Currency, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revenue entry: %w", err)
		}
		p.RevenueEntries = append(p.RevenueEntries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate revenue entries: %w", err)
	}
	return &p, nil
}

// ListPartners 查询合作方列表
func (r *PostgresPartnersRepo) ListPartners(ctx context.Context) ([]*domain.Partner, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT partner_id::text, name, type, default_commission, capacity, created_at, updated_at
		FROM partners ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer rows.Close()

	out := []*domain.Partner{}
	for rows.Next() {
		var p domain.Partner
		if err := rows.Scan(&p.PartnerID, &p.Name, &p.Type, &p.DefaultCommission, &p.Capacity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// AddRevenue 追加收入明细
func (r *PostgresPartnersRepo) AddRevenue(ctx context.Context, partnerID string, entry domain.RevenueEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Currency == "" {
		entry.Currency = "AED"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE partners SET updated_at = NOW() WHERE partner_id = $1
	`, partnerID)
	if err != nil {
		return fmt.Errorf("failed to touch partner: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO partner_revenue (partner_id, amount, currency, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, partnerID, entry.Amount, entry.Currency, entry.Note, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert revenue entry: %w", err)
	}
	return tx.Commit()
}
