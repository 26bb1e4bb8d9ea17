package notify

import (
	"context"
	"fmt"
	"sync"

	"estate-leads/internal/config"
	"estate-leads/internal/domain"
	"estate-leads/internal/repository"

	"go.uber.org/zap"
)

// 通知事件类型
const (
	EventLeadCreated        = "lead_created"
	EventAppointmentCreated = "appointment_created"
	EventStatusChanged      = "status_changed"
	EventReEngagement       = "re_engagement"
)

// 渠道名称
const (
	ChannelAdminWhatsApp  = "admin_whatsapp"
	ChannelAdminEmail     = "admin_email"
	ChannelClientWhatsApp = "client_whatsapp"
	ChannelClientSMS      = "client_sms"
	ChannelClientEmail    = "client_email"
)

// Event 一次通知触发
// Kind 为事件类型；Ref 为事件内的限定符（如预约ID），
// 幂等键由 (lead_id, Kind, Ref, channel) 组成
type Event struct {
	Kind string
	Ref  string
	Meta string // 附加到消息正文的上下文（如新状态）
}

// ChannelResult 单渠道派发结果
type ChannelResult struct {
	Channel string `json:"channel"`
	Skipped bool   `json:"skipped"` // 幂等抑制或接收方缺失
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// channelSend 渠道发送函数
type channelSend func(ctx context.Context) error

// plannedChannel 派发计划中的一个渠道
type plannedChannel struct {
	name      string
	recipient string
	send      channelSend
}

// Dispatcher 通知派发器
// 对给定线索和事件扇出到各渠道：单渠道失败不影响其他渠道；
// 发送前通过幂等键抑制跨触发点的重复发送；每次渠道调用写入通知日志
type Dispatcher struct {
	cfg     config.NotifyConfig
	gateway *GatewayClient
	idem    IdemStore
	logRepo repository.NotificationLogRepo
	logger  *zap.Logger
}

// NewDispatcher 创建通知派发器
func NewDispatcher(
	cfg config.NotifyConfig,
	gateway *GatewayClient,
	idem IdemStore,
	logRepo repository.NotificationLogRepo,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		gateway: gateway,
		idem:    idem,
		logRepo: logRepo,
		logger:  logger,
	}
}

// Dispatch 扇出派发（并发调用各渠道，等待全部完成）
func (d *Dispatcher) Dispatch(ctx context.Context, lead *domain.Lead, ev Event) []ChannelResult {
	plan := d.planChannels(lead, ev)
	results := make([]ChannelResult, len(plan))

	var wg sync.WaitGroup
	for i, ch := range plan {
		wg.Add(1)
		go func(i int, ch plannedChannel) {
			defer wg.Done()
			results[i] = d.dispatchOne(ctx, lead, ev, ch)
		}(i, ch)
	}
	wg.Wait()

	return results
}

// DispatchAppointment 预约事件派发
// 约定：type=call 只通知内部管理员；type=visit/meeting 通知全部四个渠道
func (d *Dispatcher) DispatchAppointment(ctx context.Context, lead *domain.Lead, appt *domain.Appointment) []ChannelResult {
	return d.Dispatch(ctx, lead, Event{
		Kind: EventAppointmentCreated,
		Ref:  appt.AppointmentID,
		Meta: appt.Type,
	})
}

// dispatchOne 单渠道发送：幂等检查 -> 发送 -> 记日志
func (d *Dispatcher) dispatchOne(ctx context.Context, lead *domain.Lead, ev Event, ch plannedChannel) ChannelResult {
	result := ChannelResult{Channel: ch.name}

	key := idemKey(lead.LeadID, ev, ch.name)
	ok, err := d.idem.Acquire(ctx, key, d.cfg.IdempotencyTTL)
	if err != nil {
		// 幂等存储不可用时放行发送（宁可重发，不可漏发）
		d.logger.Warn("Idempotency check failed, sending anyway",
			zap.String("key", key),
			zap.Error(err),
		)
	} else if !ok {
		d.logger.Debug("Notification suppressed by idempotency key",
			zap.String("lead_id", lead.LeadID),
			zap.String("event", ev.Kind),
			zap.String("channel", ch.name),
		)
		result.Skipped = true
		return result
	}

	sendErr := ch.send(ctx)
	result.Success = sendErr == nil
	if sendErr != nil {
		result.Error = sendErr.Error()
		d.logger.Error("Channel send failed",
			zap.String("lead_id", lead.LeadID),
			zap.String("event", ev.Kind),
			zap.String("channel", ch.name),
			zap.Error(sendErr),
		)
	}

	// 通知日志尽力而为：写入失败只记日志，不影响派发结果
	logEntry := &domain.NotificationLogEntry{
		LeadID:    lead.LeadID,
		Event:     ev.Kind,
		Channel:   ch.name,
		Recipient: ch.recipient,
		Success:   result.Success,
		Error:     result.Error,
	}
	if err := d.logRepo.AppendLog(ctx, logEntry); err != nil {
		d.logger.Warn("Failed to append notification log", zap.Error(err))
	}

	return result
}

// planChannels 按事件类型和线索可达性计算派发渠道
func (d *Dispatcher) planChannels(lead *domain.Lead, ev Event) []plannedChannel {
	subject, adminBody, clientBody := BuildMessages(lead, ev)

	adminWhatsApp := plannedChannel{
		name:      ChannelAdminWhatsApp,
		recipient: d.cfg.AdminPhone,
		send: func(ctx context.Context) error {
			return d.gateway.SendWhatsApp(ctx, d.cfg.AdminPhone, adminBody)
		},
	}
	adminEmail := plannedChannel{
		name:      ChannelAdminEmail,
		recipient: d.cfg.AdminEmail,
		send: func(ctx context.Context) error {
			return d.gateway.SendEmail(ctx, d.cfg.AdminEmail, subject, adminBody)
		},
	}
	clientWhatsApp := plannedChannel{
		name:      ChannelClientWhatsApp,
		recipient: lead.Phone,
		send: func(ctx context.Context) error {
			return d.gateway.SendWhatsApp(ctx, lead.Phone, clientBody)
		},
	}
	clientSMS := plannedChannel{
		name:      ChannelClientSMS,
		recipient: lead.Phone,
		send: func(ctx context.Context) error {
			return d.gateway.SendSMS(ctx, lead.Phone, clientBody)
		},
	}
	clientEmail := plannedChannel{
		name:      ChannelClientEmail,
		recipient: lead.Email,
		send: func(ctx context.Context) error {
			return d.gateway.SendEmail(ctx, lead.Email, subject, clientBody)
		},
	}

	plan := []plannedChannel{}
	switch ev.Kind {
	case EventLeadCreated:
		plan = append(plan, adminWhatsApp, adminEmail)
		if lead.HasPhone() {
			plan = append(plan, clientWhatsApp)
		}
		if lead.HasEmail() {
			plan = append(plan, clientEmail)
		}
	case EventAppointmentCreated:
		// call 类型只通知内部；visit/meeting 同时通知客户
		plan = append(plan, adminWhatsApp, adminEmail)
		if ev.Meta != domain.AppointmentTypeCall {
			if lead.HasPhone() {
				plan = append(plan, clientWhatsApp)
			}
			if lead.HasEmail() {
				plan = append(plan, clientEmail)
			}
		}
	case EventStatusChanged:
		plan = append(plan, adminWhatsApp, adminEmail)
	case EventReEngagement:
		if lead.HasPhone() {
			plan = append(plan, clientWhatsApp, clientSMS)
		}
		if lead.HasEmail() {
			plan = append(plan, clientEmail)
		}
		plan = append(plan, adminEmail)
	default:
		d.logger.Warn("Unknown notification event kind", zap.String("kind", ev.Kind))
	}
	return plan
}

func idemKey(leadID string, ev Event, channel string) string {
	if ev.Ref != "" {
		return fmt.Sprintf("notify:idem:%s:%s:%s:%s", leadID, ev.Kind, ev.Ref, channel)
	}
	return fmt.Sprintf("notify:idem:%s:%s:%s", leadID, ev.Kind, channel)
}
