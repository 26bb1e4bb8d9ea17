package domain

import "time"

// NotificationLogEntry 通知发送日志（对应 notification_log 表，append-only）
// 每次渠道调用（无论成败）记录一条，供统计与排障使用
type NotificationLogEntry struct {
	LogID     string    `json:"log_id" db:"log_id"`         // UUID
	LeadID    string    `json:"lead_id" db:"lead_id"`       // UUID
	Event     string    `json:"event" db:"event"`           // VARCHAR(50), lead_created/appointment_created/...
	Channel   string    `json:"channel" db:"channel"`       // VARCHAR(50), admin_whatsapp/client_email/...
	Recipient string    `json:"recipient" db:"recipient"`   // VARCHAR(200), 脱敏前的接收方标识
	Success   bool      `json:"success" db:"success"`       // BOOLEAN
	Error     string    `json:"error,omitempty" db:"error"` // TEXT, 失败原因（成功时为空）
	CreatedAt time.Time `json:"created_at" db:"created_at"` // TIMESTAMPTZ
}
