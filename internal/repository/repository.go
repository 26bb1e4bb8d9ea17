package repository

import (
	"context"
	"errors"
	"time"

	"estate-leads/internal/domain"
)

// ErrNotFound 记录不存在（Postgres/Memory 实现统一返回该哨兵错误）
var ErrNotFound = errors.New("record not found")

// LeadFilters 线索列表过滤条件
type LeadFilters struct {
	Temperature    string // hot/warm/cold，空表示不过滤
	Status         string // 处置状态码，空表示不过滤
	OnlyDuplicates bool   // 仅返回重复标记的线索
	Query          string // 对 name/email/phone 的模糊匹配
}

// LeadsRepo 线索仓储接口
// 所有变更都是行级更新（不整集合重写），updated_at 由实现负责刷新
type LeadsRepo interface {
	CreateLead(ctx context.Context, lead *domain.Lead) error
	GetLead(ctx context.Context, leadID string) (*domain.Lead, error)
	ListLeads(ctx context.Context, filters LeadFilters, page, size int) ([]*domain.Lead, int, error)
	// ListAllLeads 全量读取（去重检测、统计、导出使用；数据量小，可接受）
	ListAllLeads(ctx context.Context) ([]*domain.Lead, error)

	UpdateTemperature(ctx context.Context, leadID, temperature string) error
	UpdateSummary(ctx context.Context, leadID, summary string) error
	SetStatus(ctx context.Context, leadID, status string) error
	AppendStatusHistory(ctx context.Context, leadID string, entry domain.StatusHistoryEntry) error
	AppendConversation(ctx context.Context, leadID string, entry domain.ConversationEntry) error

	// AddProperty 幂等：同一 property_id 重复添加不产生重复行
	AddProperty(ctx context.Context, leadID string, prop domain.SelectedProperty) error
	RemoveProperty(ctx context.Context, leadID, propertyID string) error

	AddAppointment(ctx context.Context, appt *domain.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, leadID, appointmentID, status string) error

	AddSharingRecord(ctx context.Context, leadID string, rec domain.SharingRecord) error
	UpdateSharingRecord(ctx context.Context, leadID, shareID, status string, pendingApproval bool) error

	// ListDueFollowups 跟进扫描：处于回访/跟进状态且 updated_at 早于 before 的线索
	ListDueFollowups(ctx context.Context, before time.Time) ([]*domain.Lead, error)
	// ListUpcomingAppointments 提醒扫描：开始时间落在 [from, to) 内且仍为 scheduled 的预约
	ListUpcomingAppointments(ctx context.Context, from, to time.Time) ([]*domain.Appointment, error)
}

// PartnersRepo 合作方仓储接口
type PartnersRepo interface {
	CreatePartner(ctx context.Context, p *domain.Partner) error
	GetPartner(ctx context.Context, partnerID string) (*domain.Partner, error)
	ListPartners(ctx context.Context) ([]*domain.Partner, error)
	AddRevenue(ctx context.Context, partnerID string, entry domain.RevenueEntry) error
}

// AnalyticsRepo 分析事件仓储接口（append-only 事件日志）
type AnalyticsRepo interface {
	AppendEvent(ctx context.Context, ev *domain.AnalyticsEvent) error
	ListEvents(ctx context.Context, since time.Time) ([]*domain.AnalyticsEvent, error)
	CountEventsByType(ctx context.Context) (map[string]int, error)
}

// NotificationLogRepo 通知日志仓储接口
type NotificationLogRepo interface {
	AppendLog(ctx context.Context, entry *domain.NotificationLogEntry) error
	CountByChannel(ctx context.Context) (map[string]int, error)
}
