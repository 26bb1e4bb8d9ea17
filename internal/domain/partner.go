package domain

import "time"

// Partner 合作方领域模型（对应 partners 表）
// 开发商/渠道/服务商统一建模，线索分享记录通过 partner_id 引用
type Partner struct {
	PartnerID         string    `json:"partner_id" db:"partner_id"`                 // UUID, PRIMARY KEY
	Name              string    `json:"name" db:"name"`                             // VARCHAR(200), NOT NULL
	Type              string    `json:"type" db:"type"`                             // VARCHAR(30), developer/broker/service
	DefaultCommission float64   `json:"default_commission" db:"default_commission"` // NUMERIC, 默认佣金比例（0-1）
	Capacity          int       `json:"capacity" db:"capacity"`                     // INT, 可承接线索数
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`

	// 收入明细（查询时联表加载）
	RevenueEntries []RevenueEntry `json:"revenue_entries,omitempty" db:"-"`
}

// 合作方类型
const (
	PartnerTypeDeveloper = "developer"
	PartnerTypeBroker    = "broker"
	PartnerTypeService   = "service"
)

// ValidPartnerType 校验合作方类型
func ValidPartnerType(t string) bool {
	switch t {
	case PartnerTypeDeveloper, PartnerTypeBroker, PartnerTypeService:
		return true
	}
	return false
}

// RevenueEntry 合作方收入明细
type RevenueEntry struct {
	Amount    float64   `json:"amount" db:"amount"`         // NUMERIC
	Currency  string    `json:"currency" db:"currency"`     // VARCHAR(10), 默认 AED
	Note      string    `json:"note,omitempty" db:"note"`   // TEXT, nullable
	CreatedAt time.Time `json:"created_at" db:"created_at"` // TIMESTAMPTZ
}

// ShareConsent 分享授权：逐字段控制转发给合作方的内容
type ShareConsent struct {
	ShareContact      bool `json:"share_contact" db:"share_contact"`           // 允许转发邮箱/电话
	ShareBudget       bool `json:"share_budget" db:"share_budget"`             // 允许转发预算
	ShareRequirements bool `json:"share_requirements" db:"share_requirements"` // 允许转发需求描述
}

// SharingRecord 线索分享记录（挂在 Lead 下，永不出现在 ClientSafeView 中）
type SharingRecord struct {
	ShareID         string       `json:"share_id" db:"share_id"`                 // UUID
	LeadID          string       `json:"lead_id" db:"lead_id"`                   // UUID
	PartnerID       string       `json:"partner_id" db:"partner_id"`             // UUID
	Kind            string       `json:"kind" db:"kind"`                         // VARCHAR(20), partner/developer
	Consent         ShareConsent `json:"consent" db:"-"`                         // 三个布尔列
	Status          string       `json:"status" db:"status"`                     // VARCHAR(20), pending/sent/accepted/rejected
	PendingApproval bool         `json:"pending_approval" db:"pending_approval"` // 转派审批门（未解除时阻塞 Reassign）
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// 分享记录类别
const (
	ShareKindPartner   = "partner"
	ShareKindDeveloper = "developer"
)

// 分享记录状态
const (
	ShareStatusPending  = "pending"
	ShareStatusSent     = "sent"
	ShareStatusAccepted = "accepted"
	ShareStatusRejected = "rejected"
)
