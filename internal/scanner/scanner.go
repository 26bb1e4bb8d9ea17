package scanner

import (
	"context"
	"fmt"
	"time"

	"estate-leads/internal/config"
	"estate-leads/internal/domain"
	"estate-leads/internal/notify"
	"estate-leads/internal/repository"
	"estate-leads/internal/service"

	"go.uber.org/zap"
)

// Scanner 跟进扫描器
// 周期扫描数据库中的到期跟进与即将开始的预约并派发通知。
// 状态全部在库里，进程重启不丢任务；跨周期的重复派发由
// 派发器的幂等键抑制（同一线索同一天只触达一次）。
type Scanner struct {
	cfg        config.ScannerConfig
	leadsRepo  repository.LeadsRepo
	dispatcher *notify.Dispatcher
	analytics  *service.AnalyticsService
	logger     *zap.Logger
}

// NewScanner 创建跟进扫描器
func NewScanner(
	cfg config.ScannerConfig,
	leadsRepo repository.LeadsRepo,
	dispatcher *notify.Dispatcher,
	analytics *service.AnalyticsService,
	logger *zap.Logger,
) *Scanner {
	return &Scanner{
		cfg:        cfg,
		leadsRepo:  leadsRepo,
		dispatcher: dispatcher,
		analytics:  analytics,
		logger:     logger,
	}
}

// Run 扫描循环（阻塞直到 ctx 取消）
func (s *Scanner) Run(ctx context.Context) {
	interval := s.cfg.CheckInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Followup scanner started",
		zap.Duration("check_interval", interval),
		zap.Duration("no_contact_after", s.cfg.NoContactAfter),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Followup scanner stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Followup scan failed", zap.Error(err))
			}
		}
	}
}

// RunOnce 执行一轮扫描
func (s *Scanner) RunOnce(ctx context.Context) error {
	if err := s.scanNoContact(ctx); err != nil {
		return err
	}
	return s.scanReminders(ctx)
}

// scanNoContact 到期跟进：长时间未更新的回访/跟进线索触发再触达
func (s *Scanner) scanNoContact(ctx context.Context) error {
	before := time.Now().UTC().Add(-s.cfg.NoContactAfter)
	leads, err := s.leadsRepo.ListDueFollowups(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to list due followups: %w", err)
	}

	// 同一线索同一天只触达一次：幂等键带日期限定符
	day := time.Now().UTC().Format("2006-01-02")
	for _, lead := range leads {
		results := s.dispatcher.Dispatch(ctx, lead, notify.Event{
			Kind: notify.EventReEngagement,
			Ref:  day,
		})
		sent := 0
		for _, r := range results {
			if r.Success {
				sent++
			}
		}
		if sent > 0 && s.analytics != nil {
			s.analytics.RecordAsync(ctx, domain.EventReEngagement, map[string]any{
				"lead_id":  lead.LeadID,
				"status":   lead.Status,
				"channels": sent,
			})
		}
	}

	if len(leads) > 0 {
		s.logger.Info("No-contact scan finished", zap.Int("due_leads", len(leads)))
	}
	return nil
}

// scanReminders 预约提醒：lookahead 窗口内即将开始的预约
func (s *Scanner) scanReminders(ctx context.Context) error {
	now := time.Now().UTC()
	appts, err := s.leadsRepo.ListUpcomingAppointments(ctx, now, now.Add(s.cfg.ReminderLookahead))
	if err != nil {
		return fmt.Errorf("failed to list upcoming appointments: %w", err)
	}

	for _, appt := range appts {
		lead, err := s.leadsRepo.GetLead(ctx, appt.LeadID)
		if err != nil {
			s.logger.Warn("Reminder for missing lead skipped",
				zap.String("appointment_id", appt.AppointmentID),
				zap.Error(err),
			)
			continue
		}
		// 提醒复用预约事件的幂等键空间，限定符区分提醒与创建通知
		s.dispatcher.Dispatch(ctx, lead, notify.Event{
			Kind: notify.EventAppointmentCreated,
			Ref:  appt.AppointmentID + ":reminder",
			Meta: appt.Type,
		})
	}
	return nil
}
