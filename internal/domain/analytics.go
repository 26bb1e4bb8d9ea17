package domain

import (
	"encoding/json"
	"time"
)

// AnalyticsEvent 分析事件（对应 analytics_events 表，append-only）
type AnalyticsEvent struct {
	EventID   string          `json:"event_id" db:"event_id"`     // UUID, PRIMARY KEY
	Type      string          `json:"type" db:"type"`             // VARCHAR(50), 事件类型标签
	Payload   json.RawMessage `json:"payload" db:"payload"`       // JSONB, 任意负载
	CreatedAt time.Time       `json:"created_at" db:"created_at"` // TIMESTAMPTZ
}

// 事件类型标签
const (
	EventLeadCreated         = "lead_created"
	EventLeadDuplicate       = "lead_duplicate"
	EventTemperatureChanged  = "temperature_changed"
	EventStatusChanged       = "status_changed"
	EventNoteAdded           = "note_added"
	EventPropertyAdded       = "property_added"
	EventPropertyRemoved     = "property_removed"
	EventAppointmentCreated  = "appointment_created"
	EventNotificationSent    = "notification_sent"
	EventNotificationFailed  = "notification_failed"
	EventLeadShared          = "lead_shared"
	EventLeadReassigned      = "lead_reassigned"
	EventReEngagement        = "re_engagement"
)
