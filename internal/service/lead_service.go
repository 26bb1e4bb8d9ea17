package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"estate-leads/internal/domain"
	"estate-leads/internal/notify"
	"estate-leads/internal/repository"

	"go.uber.org/zap"
)

// LeadService 线索服务层
// 职责：
// 1. 业务规则验证（温度/状态/预约类型合法性）
// 2. 去重检测编排（保存前对全量线索做匹配）
// 3. 通知派发与事件记录（非关键路径，失败不阻塞主操作）
type LeadService struct {
	leadsRepo  repository.LeadsRepo
	dispatcher *notify.Dispatcher
	analytics  *AnalyticsService
	logger     *zap.Logger
}

// NewLeadService 创建线索服务
func NewLeadService(
	leadsRepo repository.LeadsRepo,
	dispatcher *notify.Dispatcher,
	analytics *AnalyticsService,
	logger *zap.Logger,
) *LeadService {
	return &LeadService{
		leadsRepo:  leadsRepo,
		dispatcher: dispatcher,
		analytics:  analytics,
		logger:     logger,
	}
}

// SaveLeadRequest 保存线索请求（表单提交）
type SaveLeadRequest struct {
	Name        string                    `json:"name"`
	Email       string                    `json:"email"`
	Phone       string                    `json:"phone"`
	Budget      string                    `json:"budget"`
	Preferences string                    `json:"preferences"`
	Temperature string                    `json:"temperature"`
	Properties  []domain.SelectedProperty `json:"properties"`
}

// SaveLead 保存线索
// 流程：验证 -> 去重检测 -> 落库（含初始状态历史）-> 通知扇出 -> 事件记录
// 重复线索不拒绝、不合并：照常保存，仅打重复标记并指向最早匹配
func (s *LeadService) SaveLead(ctx context.Context, req SaveLeadRequest) (*domain.Lead, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	temperature := req.Temperature
	if temperature == "" {
		temperature = domain.TemperatureWarm
	}
	if !domain.ValidTemperature(temperature) {
		return nil, fmt.Errorf("invalid temperature: %s", temperature)
	}

	existing, err := s.leadsRepo.ListAllLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads for duplicate check: %w", err)
	}
	check := DetectDuplicate(req.Email, req.Phone, existing)

	now := time.Now().UTC()
	lead := &domain.Lead{
		Name:               name,
		Email:              strings.TrimSpace(req.Email),
		Phone:              strings.TrimSpace(req.Phone),
		Budget:             req.Budget,
		Preferences:        req.Preferences,
		Temperature:        temperature,
		Status:             domain.StatusNew,
		IsDuplicate:        check.IsDuplicate,
		DuplicateOf:        check.DuplicateOf,
		SelectedProperties: req.Properties,
		StatusHistory: []domain.StatusHistoryEntry{
			{Status: domain.StatusNew, Timestamp: now, Note: "lead captured"},
		},
		CreatedAt: now,
	}

	if err := s.leadsRepo.CreateLead(ctx, lead); err != nil {
		s.logger.Error("Failed to create lead", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	s.logger.Info("Lead created",
		zap.String("lead_id", lead.LeadID),
		zap.Bool("is_duplicate", lead.IsDuplicate),
		zap.String("temperature", lead.Temperature),
	)

	// 通知与事件记录均为非关键路径：失败只记日志，不影响保存结果
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, lead, notify.Event{Kind: notify.EventLeadCreated})
	}
	if s.analytics != nil {
		s.analytics.RecordAsync(ctx, domain.EventLeadCreated, map[string]any{
			"lead_id":     lead.LeadID,
			"temperature": lead.Temperature,
		})
		if lead.IsDuplicate {
			s.analytics.RecordAsync(ctx, domain.EventLeadDuplicate, map[string]any{
				"lead_id":      lead.LeadID,
				"duplicate_of": lead.DuplicateOf,
				"reason":       check.Reason,
			})
		}
	}

	return lead, nil
}

// GetLead 获取线索
func (s *LeadService) GetLead(ctx context.Context, leadID string) (*domain.Lead, error) {
	if leadID == "" {
		return nil, fmt.Errorf("lead_id is required")
	}
	lead, err := s.leadsRepo.GetLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// ListLeads 查询线索列表
func (s *LeadService) ListLeads(ctx context.Context, filters repository.LeadFilters, page, size int) ([]*domain.Lead, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	leads, total, err := s.leadsRepo.ListLeads(ctx, filters, page, size)
	if err != nil {
		s.logger.Error("Failed to list leads", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, total, nil
}

// AllLeads 全量读取（导出用，不分页）
func (s *LeadService) AllLeads(ctx context.Context) ([]*domain.Lead, error) {
	leads, err := s.leadsRepo.ListAllLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads: %w", err)
	}
	return leads, nil
}

// UpdateTemperature 更新温度
func (s *LeadService) UpdateTemperature(ctx context.Context, leadID, temperature string) error {
	if !domain.ValidTemperature(temperature) {
		return fmt.Errorf("invalid temperature: %s", temperature)
	}
	if err := s.leadsRepo.UpdateTemperature(ctx, leadID, temperature); err != nil {
		return fmt.Errorf("failed to update temperature: %w", err)
	}
	if s.analytics != nil {
		s.analytics.RecordAsync(ctx, domain.EventTemperatureChanged, map[string]any{
			"lead_id":     leadID,
			"temperature": temperature,
		})
	}
	return nil
}

// UpdateSummary 覆盖洽谈纪要
func (s *LeadService) UpdateSummary(ctx context.Context, leadID, summary string) error {
	if err := s.leadsRepo.UpdateSummary(ctx, leadID, summary); err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}
	return nil
}

// AddNote 追加沟通记录
func (s *LeadService) AddNote(ctx context.Context, leadID, channel, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is required")
	}
	if channel == "" {
		channel = "note"
	}
	entry := domain.ConversationEntry{
		Timestamp: time.Now().UTC(),
		Channel:   channel,
		Content:   content,
	}
	if err := s.leadsRepo.AppendConversation(ctx, leadID, entry); err != nil {
		return fmt.Errorf("failed to add note: %w", err)
	}
	if s.analytics != nil {
		s.analytics.RecordAsync(ctx, domain.EventNoteAdded, map[string]any{
			"lead_id": leadID,
			"channel": channel,
		})
	}
	return nil
}

// AddProperty 添加关注楼盘（幂等）
func (s *LeadService) AddProperty(ctx context.Context, leadID string, prop domain.SelectedProperty) error {
	if prop.PropertyID == "" {
		return fmt.Errorf("property_id is required")
	}
	if err := s.leadsRepo.AddProperty(ctx, leadID, prop); err != nil {
		return fmt.Errorf("failed to add property: %w", err)
	}
	if s.analytics != nil {
		s.analytics.RecordAsync(ctx, domain.EventPropertyAdded, map[string]any{
			"lead_id":     leadID,
			"property_id": prop.PropertyID,
		})
	}
	return nil
}

// RemoveProperty 移除关注楼盘
func (s *LeadService) RemoveProperty(ctx context.Context, leadID, propertyID string) error {
	if propertyID == "" {
		return fmt.Errorf("property_id is required")
	}
	if err := s.leadsRepo.RemoveProperty(ctx, leadID, propertyID); err != nil {
		return fmt.Errorf("failed to remove property: %w", err)
	}
	if s.analytics != nil {
		s.analytics.RecordAsync(ctx, domain.EventPropertyRemoved, map[string]any{
			"lead_id":     leadID,
			"property_id": propertyID,
		})
	}
	return nil
}

// ============================================
// 状态流转
// ============================================

// SetStatus 显式设置状态
// 业务规则：
// - 状态必须在处置词汇表内，否则拒绝且不产生任何变更
// - 每次变更追加状态历史并刷新 updated_at
func (s *LeadService) SetStatus(ctx context.Context, leadID, status, note, changedBy string) (*domain.Lead, error) {
	if !domain.ValidStatus(status) {
		return nil, fmt.Errorf("invalid status: %s", status)
	}

	lead, err := s.leadsRepo.GetLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	prevStatus := lead.Status

	if err := s.leadsRepo.SetStatus(ctx, leadID, status); err != nil {
		return nil, fmt.Errorf("failed to set status: %w", err)
	}
	entry := domain.StatusHistoryEntry{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Note:      note,
		ChangedBy: changedBy,
	}
	if err := s.leadsRepo.AppendStatusHistory(ctx, leadID, entry); err != nil {
		return nil, fmt.Errorf("failed to append status history: %w", err)
	}

	s.logger.Info("Lead status changed",
		zap.String("lead_id", leadID),
		zap.String("from", prevStatus),
		zap.String("to", status),
	)

	lead.Status = status
	lead.StatusHistory = append(lead.StatusHistory, entry)

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, lead, notify.Event{
			Kind: notify.EventStatusChanged,
			Ref:  status,
			Meta: status,
		})
	}
	if s.analytics != nil {
		s.analytics.RecordAsync(ctx, domain.EventStatusChanged, map[string]any{
			"lead_id": leadID,
			"from":    prevStatus,
			"to":      status,
		})
	}

	return lead, nil
}

// ProgressStatus 沿状态链推进一步
// 终态与搁置态不可推进：返回错误且不追加状态历史
func (s *LeadService) ProgressStatus(ctx context.Context, leadID, changedBy string) (*domain.Lead, error) {
	lead, err := s.leadsRepo.GetLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	next, err := domain.NextStatus(lead.Status)
	if err != nil {
		return nil, err
	}

	return s.SetStatus(ctx, leadID, next, "auto-progressed", changedBy)
}

// ============================================
// 预约
// ============================================

// CreateAppointmentRequest 创建预约请求
type CreateAppointmentRequest struct {
	Type            string    `json:"type"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Location        string    `json:"location"`
	ReminderOffsets []int     `json:"reminder_offsets"`
}

// CreateAppointment 创建预约并派发通知
// 通知规则：type=call 只通知内部管理员；type=visit/meeting 通知全部渠道
func (s *LeadService) CreateAppointment(ctx context.Context, leadID string, req CreateAppointmentRequest) (*domain.Appointment, error) {
	if !domain.ValidAppointmentType(req.Type) {
		return nil, fmt.Errorf("invalid appointment type: %s", req.Type)
	}
	if req.StartTime.IsZero() {
		return nil, fmt.Errorf("start_time is required")
	}
	if !req.EndTime.IsZero() && req.EndTime.Before(req.StartTime) {
		return nil, fmt.Errorf("end_time before start_time")
	}

	lead, err := s.leadsRepo.GetLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	appt := &domain.Appointment{
		LeadID:          leadID,
		Type:            req.Type,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Location:        req.Location,
		ReminderOffsets: req.ReminderOffsets,
		Status:          domain.AppointmentScheduled,
	}
	if err := s.leadsRepo.AddAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to add appointment: %w", err)
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchAppointment(ctx, lead, appt)
	}
	if s.analytics != nil {
		s.analytics.RecordAsync(ctx, domain.EventAppointmentCreated, map[string]any{
			"lead_id":        leadID,
			"appointment_id": appt.AppointmentID,
			"type":           appt.Type,
		})
	}

	return appt, nil
}

// UpdateAppointmentStatus 更新预约状态（完成/取消）
func (s *LeadService) UpdateAppointmentStatus(ctx context.Context, leadID, appointmentID, status string) error {
	switch status {
	case domain.AppointmentScheduled, domain.AppointmentDone, domain.AppointmentCanceled:
	default:
		return fmt.Errorf("invalid appointment status: %s", status)
	}
	if err := s.leadsRepo.UpdateAppointmentStatus(ctx, leadID, appointmentID, status); err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	return nil
}
