package domain

import (
	"encoding/json"
	"time"
)

// Lead 线索领域模型（对应 leads 表）
// 一条线索代表一个潜在客户的全部交互记录。线索创建后不可删除，
// 重复线索不合并，仅通过 DuplicateOf 指向最早的匹配记录。
type Lead struct {
	// 主键
	LeadID string `json:"lead_id" db:"lead_id"` // UUID, PRIMARY KEY

	// 客户信息
	Name        string `json:"name" db:"name"`               // VARCHAR(200), NOT NULL
	Email       string `json:"email" db:"email"`             // VARCHAR(200), nullable
	Phone       string `json:"phone" db:"phone"`             // VARCHAR(50), nullable
	Budget      string `json:"budget" db:"budget"`           // TEXT, 自由文本（如 "2M-3M AED"）
	Preferences string `json:"preferences" db:"preferences"` // TEXT, 自由文本需求描述

	// 分类
	Temperature string `json:"temperature" db:"temperature"` // VARCHAR(10), hot/warm/cold
	Status      string `json:"status" db:"status"`           // VARCHAR(50), 处置状态码（见 status.go）

	// 重复标记
	IsDuplicate bool   `json:"is_duplicate" db:"is_duplicate"`           // BOOLEAN, NOT NULL, DEFAULT FALSE
	DuplicateOf string `json:"duplicate_of,omitempty" db:"duplicate_of"` // UUID, nullable（指向最早匹配的线索）

	// 洽谈纪要（整体覆盖保存，不做版本化）
	DiscussionSummary string `json:"discussion_summary,omitempty" db:"discussion_summary"` // TEXT, nullable

	// 扩展信息
	Metadata json.RawMessage `json:"metadata,omitempty" db:"metadata"` // JSONB, nullable

	// 时间
	CreatedAt time.Time `json:"created_at" db:"created_at"` // TIMESTAMPTZ, NOT NULL
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // TIMESTAMPTZ, NOT NULL

	// 子集合（查询时联表加载）
	SelectedProperties []SelectedProperty   `json:"selected_properties" db:"-"`
	Conversations      []ConversationEntry  `json:"conversations" db:"-"`
	StatusHistory      []StatusHistoryEntry `json:"status_history" db:"-"`
	SharingRecords     []SharingRecord      `json:"sharing_records" db:"-"`
	Appointments       []Appointment        `json:"appointments" db:"-"`
}

// SelectedProperty 线索关注的楼盘（有序列表，按 Position 排序）
type SelectedProperty struct {
	PropertyID   string `json:"property_id" db:"property_id"`   // VARCHAR(100), 楼盘外部ID
	Name         string `json:"name" db:"name"`                 // VARCHAR(200)
	Location     string `json:"location" db:"location"`         // VARCHAR(200)
	Price        string `json:"price" db:"price"`               // VARCHAR(100), 展示价格（自由文本）
	ROI          string `json:"roi" db:"roi"`                   // VARCHAR(50)
	Appreciation string `json:"appreciation" db:"appreciation"` // VARCHAR(50)
	Position     int    `json:"position" db:"position"`         // 顺序号
}

// ConversationEntry 沟通记录（append-only）
type ConversationEntry struct {
	Timestamp time.Time `json:"timestamp" db:"created_at"` // TIMESTAMPTZ
	Channel   string    `json:"channel" db:"channel"`      // VARCHAR(30), whatsapp/email/sms/call/note
	Content   string    `json:"content" db:"content"`      // TEXT
}

// StatusHistoryEntry 状态流转记录（append-only，每次状态变更追加一条）
type StatusHistoryEntry struct {
	Status    string    `json:"status" db:"status"`         // VARCHAR(50)
	Timestamp time.Time `json:"timestamp" db:"created_at"`  // TIMESTAMPTZ
	Note      string    `json:"note,omitempty" db:"note"`   // TEXT, nullable
	ChangedBy string    `json:"changed_by" db:"changed_by"` // VARCHAR(100), nullable
}

// Appointment 预约（看房/电话/会面）
type Appointment struct {
	AppointmentID   string    `json:"appointment_id" db:"appointment_id"`     // UUID
	LeadID          string    `json:"lead_id" db:"lead_id"`                   // UUID
	Type            string    `json:"type" db:"type"`                         // VARCHAR(20), call/visit/meeting
	StartTime       time.Time `json:"start_time" db:"start_time"`             // TIMESTAMPTZ
	EndTime         time.Time `json:"end_time" db:"end_time"`                 // TIMESTAMPTZ
	Location        string    `json:"location,omitempty" db:"location"`       // VARCHAR(200), nullable
	ReminderOffsets []int     `json:"reminder_offsets" db:"reminder_offsets"` // 提醒提前量（分钟），JSONB
	Status          string    `json:"status" db:"status"`                     // VARCHAR(20), scheduled/done/canceled
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// 预约类型
const (
	AppointmentTypeCall    = "call"
	AppointmentTypeVisit   = "visit"
	AppointmentTypeMeeting = "meeting"
)

// 预约状态
const (
	AppointmentScheduled = "scheduled"
	AppointmentDone      = "done"
	AppointmentCanceled  = "canceled"
)

// ValidAppointmentType 校验预约类型
func ValidAppointmentType(t string) bool {
	switch t {
	case AppointmentTypeCall, AppointmentTypeVisit, AppointmentTypeMeeting:
		return true
	}
	return false
}

// HasEmail 线索是否有可用邮箱
func (l *Lead) HasEmail() bool { return l.Email != "" }

// HasPhone 线索是否有可用电话
func (l *Lead) HasPhone() bool { return l.Phone != "" }

// ClientSafeLead 面向客户端展示的安全视图
// 剥离分享记录、重复指针等内部字段（模块内唯一有意设计的隐私边界）
type ClientSafeLead struct {
	LeadID             string             `json:"lead_id"`
	Name               string             `json:"name"`
	Email              string             `json:"email,omitempty"`
	Phone              string             `json:"phone,omitempty"`
	Budget             string             `json:"budget,omitempty"`
	Preferences        string             `json:"preferences,omitempty"`
	Status             string             `json:"status"`
	SelectedProperties []SelectedProperty `json:"selected_properties,omitempty"`
	Appointments       []Appointment      `json:"appointments,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// ClientSafeView 构建安全视图
// 注意：不包含 temperature / is_duplicate / duplicate_of / sharing_records /
// status_history / discussion_summary —— 这些仅供内部使用
func (l *Lead) ClientSafeView() ClientSafeLead {
	return ClientSafeLead{
		LeadID:             l.LeadID,
		Name:               l.Name,
		Email:              l.Email,
		Phone:              l.Phone,
		Budget:             l.Budget,
		Preferences:        l.Preferences,
		Status:             l.Status,
		SelectedProperties: l.SelectedProperties,
		Appointments:       l.Appointments,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}
