package service

import (
	"context"
	"fmt"

	"estate-leads/internal/domain"
	"estate-leads/internal/notify"
	"estate-leads/internal/repository"

	"go.uber.org/zap"
)

// SharingService 线索分享/转派服务
// 职责：
// 1. 分享记录管理（consent 控制转发字段）
// 2. 分享负载构建并推送合作方网关
// 3. 转派审批门（pending_approval 未解除时阻塞 Reassign）
type SharingService struct {
	leadsRepo    repository.LeadsRepo
	partnersRepo repository.PartnersRepo
	gateway      *notify.GatewayClient
	analytics    *AnalyticsService
	logger       *zap.Logger
}

// NewSharingService 创建分享服务
func NewSharingService(
	leadsRepo repository.LeadsRepo,
	partnersRepo repository.PartnersRepo,
	gateway *notify.GatewayClient,
	analytics *AnalyticsService,
	logger *zap.Logger,
) *SharingService {
	return &SharingService{
		leadsRepo:    leadsRepo,
		partnersRepo: partnersRepo,
		gateway:      gateway,
		analytics:    analytics,
		logger:       logger,
	}
}

// ShareWithPartner 将线索分享给合作渠道
func (s *SharingService) ShareWithPartner(ctx context.Context, leadID, partnerID string, consent domain.ShareConsent) (*domain.SharingRecord, error) {
	return s.share(ctx, leadID, partnerID, domain.ShareKindPartner, consent)
}

// ShareWithDeveloper 将线索分享给开发商
// 业务规则：目标合作方类型必须是 developer
func (s *SharingService) ShareWithDeveloper(ctx context.Context, leadID, partnerID string, consent domain.ShareConsent) (*domain.SharingRecord, error) {
	partner, err := s.partnersRepo.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}
	if partner.Type != domain.PartnerTypeDeveloper {
		return nil, fmt.Errorf("partner %s is not a developer", partnerID)
	}
	return s.share(ctx, leadID, partnerID, domain.ShareKindDeveloper, consent)
}

// share 分享流程：建记录 -> 构建负载 -> 推送网关 -> 更新记录状态
// 网关推送失败时记录保持 pending（可由运营重试），不返回错误给调用方以外的语义
func (s *SharingService) share(ctx context.Context, leadID, partnerID, kind string, consent domain.ShareConsent) (*domain.SharingRecord, error) {
	lead, err := s.leadsRepo.GetLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	partner, err := s.partnersRepo.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}

	rec := domain.SharingRecord{
		LeadID:    leadID,
		PartnerID: partnerID,
		Kind:      kind,
		Consent:   consent,
		Status:    domain.ShareStatusPending,
	}
	if err := s.leadsRepo.AddSharingRecord(ctx, leadID, rec); err != nil {
		return nil, fmt.Errorf("failed to add sharing record: %w", err)
	}
	// AddSharingRecord 填充了 ShareID/时间戳
	saved, err := s.leadsRepo.GetLead(ctx, leadID)
	if err == nil && len(saved.SharingRecords) > 0 {
		rec = saved.SharingRecords[len(saved.SharingRecords)-1]
	}

	payload := BuildSharePayload(lead, partner, consent)
	if s.gateway != nil {
		if err := s.gateway.ShareLead(ctx, payload); err != nil {
			s.logger.Error("Failed to push share payload, record stays pending",
				zap.String("lead_id", leadID),
				zap.String("partner_id", partnerID),
				zap.Error(err),
			)
		} else {
			if err := s.leadsRepo.UpdateSharingRecord(ctx, leadID, rec.ShareID, domain.ShareStatusSent, rec.PendingApproval); err != nil {
				s.logger.Warn("Failed to mark sharing record sent", zap.Error(err))
			} else {
				rec.Status = domain.ShareStatusSent
			}
		}
	}

	if s.analytics != nil {
		s.analytics.RecordAsync(ctx, domain.EventLeadShared, map[string]any{
			"lead_id":    leadID,
			"partner_id": partnerID,
			"kind":       kind,
		})
	}

	s.logger.Info("Lead shared",
		zap.String("lead_id", leadID),
		zap.String("partner_id", partnerID),
		zap.String("kind", kind),
		zap.String("status", rec.Status),
	)
	return &rec, nil
}

// BuildSharePayload 构建分享负载（纯函数）
// consent 逐字段控制：姓名总是包含；邮箱/电话受 share_contact 控制；
// 预算受 share_budget 控制；需求描述与关注楼盘受 share_requirements 控制
func BuildSharePayload(lead *domain.Lead, partner *domain.Partner, consent domain.ShareConsent) map[string]any {
	payload := map[string]any{
		"lead_id":      lead.LeadID,
		"partner_id":   partner.PartnerID,
		"partner_name": partner.Name,
		"name":         lead.Name,
	}
	if consent.ShareContact {
		if lead.Email != "" {
			payload["email"] = lead.Email
		}
		if lead.Phone != "" {
			payload["phone"] = lead.Phone
		}
	}
	if consent.ShareBudget && lead.Budget != "" {
		payload["budget"] = lead.Budget
	}
	if consent.ShareRequirements {
		if lead.Preferences != "" {
			payload["preferences"] = lead.Preferences
		}
		if len(lead.SelectedProperties) > 0 {
			props := make([]map[string]any, 0, len(lead.SelectedProperties))
			for _, p := range lead.SelectedProperties {
				props = append(props, map[string]any{
					"property_id": p.PropertyID,
					"name":        p.Name,
					"location":    p.Location,
				})
			}
			payload["properties"] = props
		}
	}
	return payload
}

// Reassign 转派线索给新合作方
// 审批门：任一分享记录的 pending_approval 未解除时阻塞转派
// 新转派记录自身带 pending_approval=true，等待人工批准
func (s *SharingService) Reassign(ctx context.Context, leadID, newPartnerID string, consent domain.ShareConsent) (*domain.SharingRecord, error) {
	lead, err := s.leadsRepo.GetLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	for _, rec := range lead.SharingRecords {
		if rec.PendingApproval {
			return nil, fmt.Errorf("reassignment blocked: share %s awaits approval", rec.ShareID)
		}
	}

	if _, err := s.partnersRepo.GetPartner(ctx, newPartnerID); err != nil {
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}

	rec := domain.SharingRecord{
		LeadID:          leadID,
		PartnerID:       newPartnerID,
		Kind:            domain.ShareKindPartner,
		Consent:         consent,
		Status:          domain.ShareStatusPending,
		PendingApproval: true,
	}
	if err := s.leadsRepo.AddSharingRecord(ctx, leadID, rec); err != nil {
		return nil, fmt.Errorf("failed to add reassignment record: %w", err)
	}
	saved, err := s.leadsRepo.GetLead(ctx, leadID)
	if err == nil && len(saved.SharingRecords) > 0 {
		rec = saved.SharingRecords[len(saved.SharingRecords)-1]
	}

	if s.analytics != nil {
		s.analytics.RecordAsync(ctx, domain.EventLeadReassigned, map[string]any{
			"lead_id":    leadID,
			"partner_id": newPartnerID,
		})
	}
	return &rec, nil
}

// ResolveApproval 解除审批门
// approve=true -> accepted 并推送网关；approve=false -> rejected
func (s *SharingService) ResolveApproval(ctx context.Context, leadID, shareID string, approve bool) error {
	lead, err := s.leadsRepo.GetLead(ctx, leadID)
	if err != nil {
		return fmt.Errorf("failed to get lead: %w", err)
	}

	var target *domain.SharingRecord
	for i := range lead.SharingRecords {
		if lead.SharingRecords[i].ShareID == shareID {
			target = &lead.SharingRecords[i]
			break
		}
	}
	if target == nil {
		return repository.ErrNotFound
	}
	if !target.PendingApproval {
		return fmt.Errorf("share %s is not awaiting approval", shareID)
	}

	status := domain.ShareStatusRejected
	if approve {
		status = domain.ShareStatusAccepted
	}
	if err := s.leadsRepo.UpdateSharingRecord(ctx, leadID, shareID, status, false); err != nil {
		return fmt.Errorf("failed to resolve approval: %w", err)
	}

	if approve && s.gateway != nil {
		partner, err := s.partnersRepo.GetPartner(ctx, target.PartnerID)
		if err != nil {
			s.logger.Warn("Approved share but partner lookup failed", zap.Error(err))
			return nil
		}
		if err := s.gateway.ShareLead(ctx, BuildSharePayload(lead, partner, target.Consent)); err != nil {
			s.logger.Error("Failed to push approved share payload", zap.Error(err))
		}
	}
	return nil
}
