package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"estate-leads/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresLeadsRepo 线索Repository实现（强类型版本）
// 实现LeadsRepo接口，使用domain.Lead领域模型
// 所有变更都是行级 UPDATE/INSERT，避免整集合重写
type PostgresLeadsRepo struct {
	db *sql.DB
}

// NewPostgresLeadsRepo 创建线索Repository
func NewPostgresLeadsRepo(db *sql.DB) *PostgresLeadsRepo {
	return &PostgresLeadsRepo{db: db}
}

// 确保实现了接口
var _ LeadsRepo = (*PostgresLeadsRepo)(nil)

// CreateLead 创建线索（连同初始状态历史在同一事务内写入）
func (r *PostgresLeadsRepo) CreateLead(ctx context.Context, lead *domain.Lead) error {
	if lead == nil {
		return fmt.Errorf("lead is required")
	}
	if lead.LeadID == "" {
		lead.LeadID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = lead.CreatedAt

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	metadata := lead.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leads (
			lead_id, name, email, phone, budget, preferences,
			temperature, status, is_duplicate, duplicate_of,
			discussion_summary, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12::jsonb, $13, $14)
	`,
		lead.LeadID,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Budget,
		lead.Preferences,
		lead.Temperature,
		lead.Status,
		lead.IsDuplicate,
		lead.DuplicateOf,
		lead.DiscussionSummary,
		string(metadata),
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}

	for i, p := range lead.SelectedProperties {
		if err := insertProperty(ctx, tx, lead.LeadID, p, i); err != nil {
			return err
		}
	}

	for _, h := range lead.StatusHistory {
		if err := insertStatusHistory(ctx, tx, lead.LeadID, h); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lead: %w", err)
	}
	return nil
}

// GetLead 获取线索（含全部子集合）
func (r *PostgresLeadsRepo) GetLead(ctx context.Context, leadID string) (*domain.Lead, error) {
	if leadID == "" {
		return nil, ErrNotFound
	}

	query := `
		SELECT
			lead_id::text,
			name,
			COALESCE(email, '') AS email,
			COALESCE(phone, '') AS phone,
			COALESCE(budget, '') AS budget,
			COALESCE(preferences, '') AS preferences,
			temperature,
			status,
			is_duplicate,
			COALESCE(duplicate_of::text, '') AS duplicate_of,
			COALESCE(discussion_summary, '') AS discussion_summary,
			COALESCE(metadata, '{}'::jsonb)::text AS metadata,
			created_at,
			updated_at
		FROM leads
		WHERE lead_id = $1
	`

	lead, err := scanLead(r.db.QueryRowContext(ctx, query, leadID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	if err := r.loadChildren(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// ListLeads 查询线索列表（支持多条件过滤和分页）
func (r *PostgresLeadsRepo) ListLeads(ctx context.Context, filters LeadFilters, page, size int) ([]*domain.Lead, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}

	// 构建WHERE条件
	where := []string{"TRUE"}
	args := []any{}
	argn := 1

	if filters.Temperature != "" {
		where = append(where, fmt.Sprintf("temperature = $%d", argn))
		args = append(args, filters.Temperature)
		argn++
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argn))
		args = append(args, filters.Status)
		argn++
	}
	if filters.OnlyDuplicates {
		where = append(where, "is_duplicate = TRUE")
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR phone LIKE $%d)", argn, argn, argn))
		args = append(args, "%"+q+"%")
		argn++
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM leads WHERE " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT
			lead_id::text,
			name,
			COALESCE(email, '') AS email,
			COALESCE(phone, '') AS phone,
			COALESCE(budget, '') AS budget,
			COALESCE(preferences, '') AS preferences,
			temperature,
			status,
			is_duplicate,
			COALESCE(duplicate_of::text, '') AS duplicate_of,
			COALESCE(discussion_summary, '') AS discussion_summary,
			COALESCE(metadata, '{}'::jsonb)::text AS metadata,
			created_at,
			updated_at
		FROM leads
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argn, argn+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []*domain.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate leads: %w", err)
	}

	// 子集合逐条加载（线索量小，N+1 可接受）
	for _, lead := range leads {
		if err := r.loadChildren(ctx, lead); err != nil {
			return nil, 0, err
		}
	}
	return leads, total, nil
}

// ListAllLeads 全量读取（去重检测、统计、导出使用）
func (r *PostgresLeadsRepo) ListAllLeads(ctx context.Context) ([]*domain.Lead, error) {
	leads, _, err := r.ListLeads(ctx, LeadFilters{}, 1, 1000000)
	return leads, err
}

// UpdateTemperature 更新温度
func (r *PostgresLeadsRepo) UpdateTemperature(ctx context.Context, leadID, temperature string) error {
	return r.updateColumn(ctx, leadID, "temperature", temperature)
}

// UpdateSummary 覆盖洽谈纪要（不做版本化）
func (r *PostgresLeadsRepo) UpdateSummary(ctx context.Context, leadID, summary string) error {
	return r.updateColumn(ctx, leadID, "discussion_summary", summary)
}

// SetStatus 更新状态（状态合法性由服务层校验）
func (r *PostgresLeadsRepo) SetStatus(ctx context.Context, leadID, status string) error {
	return r.updateColumn(ctx, leadID, "status", status)
}

// AppendStatusHistory 追加状态历史
func (r *PostgresLeadsRepo) AppendStatusHistory(ctx context.Context, leadID string, entry domain.StatusHistoryEntry) error {
	if err := r.ensureLead(ctx, leadID); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertStatusHistory(ctx, tx, leadID, entry); err != nil {
		return err
	}
	if err := touchLead(ctx, tx, leadID); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendConversation 追加沟通记录
func (r *PostgresLeadsRepo) AppendConversation(ctx context.Context, leadID string, entry domain.ConversationEntry) error {
	if err := r.ensureLead(ctx, leadID); err != nil {
		return err
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lead_conversations (lead_id, channel, content, created_at)
		VALUES ($1, $2, $3, $4)
	`, leadID, entry.Channel, entry.Content, ts)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	if err := touchLead(ctx, tx, leadID); err != nil {
		return err
	}
	return tx.Commit()
}

// AddProperty 添加关注楼盘（幂等：ON CONFLICT DO NOTHING）
func (r *PostgresLeadsRepo) AddProperty(ctx context.Context, leadID string, prop domain.SelectedProperty) error {
	if err := r.ensureLead(ctx, leadID); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lead_properties (lead_id, property_id, name, location, price, roi, appreciation, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM lead_properties WHERE lead_id = $1))
		ON CONFLICT (lead_id, property_id) DO NOTHING
	`, leadID, prop.PropertyID, prop.Name, prop.Location, prop.Price, prop.ROI, prop.Appreciation)
	if err != nil {
		return fmt.Errorf("failed to insert property: %w", err)
	}
	if err := touchLead(ctx, tx, leadID); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveProperty 移除关注楼盘
func (r *PostgresLeadsRepo) RemoveProperty(ctx context.Context, leadID, propertyID string) error {
	if err := r.ensureLead(ctx, leadID); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM lead_properties WHERE lead_id = $1 AND property_id = $2
	`, leadID, propertyID)
	if err != nil {
		return fmt.Errorf("failed to delete property: %w", err)
	}
	if err := touchLead(ctx, tx, leadID); err != nil {
		return err
	}
	return tx.Commit()
}

// AddAppointment 创建预约
func (r *PostgresLeadsRepo) AddAppointment(ctx context.Context, appt *domain.Appointment) error {
	if appt == nil || appt.LeadID == "" {
		return fmt.Errorf("appointment with lead_id is required")
	}
	if err := r.ensureLead(ctx, appt.LeadID); err != nil {
		return err
	}
	if appt.AppointmentID == "" {
		appt.AppointmentID = uuid.NewString()
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}
	if appt.Status == "" {
		appt.Status = domain.AppointmentScheduled
	}

	offsets, err := json.Marshal(appt.ReminderOffsets)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder offsets: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO appointments (
			appointment_id, lead_id, type, start_time, end_time,
			location, reminder_offsets, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
	`,
		appt.AppointmentID,
		appt.LeadID,
		appt.Type,
		appt.StartTime,
		appt.EndTime,
		appt.Location,
		string(offsets),
		appt.Status,
		appt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	if err := touchLead(ctx, tx, appt.LeadID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateAppointmentStatus 更新预约状态
func (r *PostgresLeadsRepo) UpdateAppointmentStatus(ctx context.Context, leadID, appointmentID, status string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE appointments SET status = $1 WHERE lead_id = $2 AND appointment_id = $3
	`, status, leadID, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddSharingRecord 追加分享记录
func (r *PostgresLeadsRepo) AddSharingRecord(ctx context.Context, leadID string, rec domain.SharingRecord) error {
	if err := r.ensureLead(ctx, leadID); err != nil {
		return err
	}
	if rec.ShareID == "" {
		rec.ShareID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lead_sharing (
			share_id, lead_id, partner_id, kind,
			share_contact, share_budget, share_requirements,
			status, pending_approval, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		rec.ShareID,
		leadID,
		rec.PartnerID,
		rec.Kind,
		rec.Consent.ShareContact,
		rec.Consent.ShareBudget,
		rec.Consent.ShareRequirements,
		rec.Status,
		rec.PendingApproval,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sharing record: %w", err)
	}
	if err := touchLead(ctx, tx, leadID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateSharingRecord 更新分享记录状态/审批门
func (r *PostgresLeadsRepo) UpdateSharingRecord(ctx context.Context, leadID, shareID, status string, pendingApproval bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lead_sharing
		SET status = COALESCE(NULLIF($1, ''), status),
		    pending_approval = $2,
		    updated_at = NOW()
		WHERE lead_id = $3 AND share_id = $4
	`, status, pendingApproval, leadID, shareID)
	if err != nil {
		return fmt.Errorf("failed to update sharing record: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDueFollowups 跟进扫描：回访/跟进/尝试联系状态且长时间未更新的线索
func (r *PostgresLeadsRepo) ListDueFollowups(ctx context.Context, before time.Time) ([]*domain.Lead, error) {
	query := `
		SELECT
			lead_id::text,
			name,
			COALESCE(email, '') AS email,
			COALESCE(phone, '') AS phone,
			COALESCE(budget, '') AS budget,
			COALESCE(preferences, '') AS preferences,
			temperature,
			status,
			is_duplicate,
			COALESCE(duplicate_of::text, '') AS duplicate_of,
			COALESCE(discussion_summary, '') AS discussion_summary,
			COALESCE(metadata, '{}'::jsonb)::text AS metadata,
			created_at,
			updated_at
		FROM leads
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
	`
	statuses := []string{
		domain.StatusCallbackScheduled,
		domain.StatusFollowupScheduled,
		domain.StatusAttemptedContact,
	}
	rows, err := r.db.QueryContext(ctx, query, pq.Array(statuses), before)
	if err != nil {
		return nil, fmt.Errorf("failed to list due followups: %w", err)
	}
	defer rows.Close()

	leads := []*domain.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// ListUpcomingAppointments 提醒扫描：开始时间落在 [from, to) 内且仍为 scheduled 的预约
func (r *PostgresLeadsRepo) ListUpcomingAppointments(ctx context.Context, from, to time.Time) ([]*domain.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT appointment_id::text, lead_id::text, type, start_time, end_time,
		       COALESCE(location, ''), COALESCE(reminder_offsets, '[]'::jsonb)::text, status, created_at
		FROM appointments
		WHERE status = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time ASC
	`, domain.AppointmentScheduled, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}
	defer rows.Close()

	out := []*domain.Appointment{}
	for rows.Next() {
		var a domain.Appointment
		var offsetsRaw string
		if err := rows.Scan(&a.AppointmentID, &a.LeadID, &a.Type, &a.StartTime, &a.EndTime, &a.Location, &offsetsRaw, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		if offsetsRaw != "" {
			_ = json.Unmarshal([]byte(offsetsRaw), &a.ReminderOffsets)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// ============================================
// 内部辅助
// ============================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*domain.Lead, error) {
	var lead domain.Lead
	var metadataRaw string
	err := row.Scan(
		&lead.LeadID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Budget,
		&lead.Preferences,
		&lead.Temperature,
		&lead.Status,
		&lead.IsDuplicate,
		&lead.DuplicateOf,
		&lead.DiscussionSummary,
		&metadataRaw,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if metadataRaw != "" && metadataRaw != "{}" {
		lead.Metadata = json.RawMessage(metadataRaw)
	}
	return &lead, nil
}

// updateColumn 单列行级更新 + 刷新 updated_at
func (r *PostgresLeadsRepo) updateColumn(ctx context.Context, leadID, column, value string) error {
	// column 仅来自本文件内的固定调用点，不拼接外部输入
	query := fmt.Sprintf(`UPDATE leads SET %s = $1, updated_at = NOW() WHERE lead_id = $2`, column)
	res, err := r.db.ExecContext(ctx, query, value, leadID)
	if err != nil {
		return fmt.Errorf("failed to update lead %s: %w", column, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresLeadsRepo) ensureLead(ctx context.Context, leadID string) error {
	if leadID == "" {
		return ErrNotFound
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM leads WHERE lead_id = $1)`, leadID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check lead: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func touchLead(ctx context.Context, tx *sql.Tx, leadID string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE leads SET updated_at = NOW() WHERE lead_id = $1`, leadID); err != nil {
		return fmt.Errorf("failed to touch lead: %w", err)
	}
	return nil
}

func insertProperty(ctx context.Context, tx *sql.Tx, leadID string, p domain.SelectedProperty, position int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO lead_properties (lead_id, property_id, name, location, price, roi, appreciation, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (lead_id, property_id) DO NOTHING
	`, leadID, p.PropertyID, p.Name, p.Location, p.Price, p.ROI, p.Appreciation, position)
	if err != nil {
		return fmt.Errorf("failed to insert property: %w", err)
	}
	return nil
}

func insertStatusHistory(ctx context.Context, tx *sql.Tx, leadID string, h domain.StatusHistoryEntry) error {
	ts := h.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO lead_status_history (lead_id, status, note, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, leadID, h.Status, h.Note, h.ChangedBy, ts)
	if err != nil {
		return fmt.Errorf("failed to insert status history: %w", err)
	}
	return nil
}

// loadChildren 加载线索的全部子集合
func (r *PostgresLeadsRepo) loadChildren(ctx context.Context, lead *domain.Lead) error {
	// 关注楼盘
	rows, err := r.db.QueryContext(ctx, `
		SELECT property_id, name, COALESCE(location, ''), COALESCE(price, ''),
		       COALESCE(roi, ''), COALESCE(appreciation, ''), position
		FROM lead_properties WHERE lead_id = $1 ORDER BY position ASC
	`, lead.LeadID)
	if err != nil {
		return fmt.Errorf("failed to load properties: %w", err)
	}
	for rows.Next() {
		var p domain.SelectedProperty
		if err := rows.Scan(&p.PropertyID, &p.Name, &p.Location, &p.Price, &p.ROI, &p.Appreciation, &p.Position); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan property: %w", err)
		}
		lead.SelectedProperties = append(lead.SelectedProperties, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate properties: %w", err)
	}

	// 沟通记录
	rows, err = r.db.QueryContext(ctx, `
		SELECT channel, content, created_at
		FROM lead_conversations WHERE lead_id = $1 ORDER BY created_at ASC
	`, lead.LeadID)
	if err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}
	for rows.Next() {
		var c domain.ConversationEntry
		if err := rows.Scan(&c.Channel, &c.Content, &c.Timestamp); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan conversation: %w", err)
		}
		lead.Conversations = append(lead.Conversations, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate conversations: %w", err)
	}

	// 状态历史
	rows, err = r.db.QueryContext(ctx, `
		SELECT status, COALESCE(note, ''), COALESCE(changed_by, ''), created_at
		FROM lead_status_history WHERE lead_id = $1 ORDER BY created_at ASC
	`, lead.LeadID)
	if err != nil {
		return fmt.Errorf("failed to load status history: %w", err)
	}
	for rows.Next() {
		var h domain.StatusHistoryEntry
		if err := rows.Scan(&h.Status, &h.Note, &h.ChangedBy, &h.Timestamp); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan status history: %w", err)
		}
		lead.StatusHistory = append(lead.StatusHistory, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate status history: %w", err)
	}

	// 分享记录
	rows, err = r.db.QueryContext(ctx, `
		SELECT share_id::text, partner_id::text, kind,
		       share_contact, share_budget, share_requirements,
		       status, pending_approval, created_at, updated_at
		FROM lead_sharing WHERE lead_id = $1 ORDER BY created_at ASC
	`, lead.LeadID)
	if err != nil {
		return fmt.Errorf("failed to load sharing records: %w", err)
	}
	for rows.Next() {
		var s domain.SharingRecord
		if err := rows.Scan(
			&s.ShareID, &s.PartnerID, &s.Kind,
			&s.Consent.ShareContact, &s.Consent.ShareBudget, &s.Consent.ShareRequirements,
			&s.Status, &s.PendingApproval, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan sharing record: %w", err)
		}
		s.LeadID = lead.LeadID
		lead.SharingRecords = append(lead.SharingRecords, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate sharing records: %w", err)
	}

	// 预约
	rows, err = r.db.QueryContext(ctx, `
		SELECT appointment_id::text, type, start_time, end_time,
		       COALESCE(location, ''), COALESCE(reminder_offsets, '[]'::jsonb)::text, status, created_at
		FROM appointments WHERE lead_id = $1 ORDER BY start_time ASC
	`, lead.LeadID)
	if err != nil {
		return fmt.Errorf("failed to load appointments: %w", err)
	}
	for rows.Next() {
		var a domain.Appointment
		var offsetsRaw string
		if err := rows.Scan(&a.AppointmentID, &a.Type, &a.StartTime, &a.EndTime, &a.Location, &offsetsRaw, &a.Status, &a.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan appointment: %w", err)
		}
		if offsetsRaw != "" {
			_ = json.Unmarshal([]byte(offsetsRaw), &a.ReminderOffsets)
		}
		a.LeadID = lead.LeadID
		lead.Appointments = append(lead.Appointments, a)
	}
	rows.Close()
	return rows.Err()
}
