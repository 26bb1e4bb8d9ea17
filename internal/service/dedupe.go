package service

import (
	"strings"

	"estate-leads/internal/domain"
)

// DuplicateCheck 去重检测结果
type DuplicateCheck struct {
	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateOf string `json:"duplicate_of,omitempty"` // 最早匹配的线索ID
	Reason      string `json:"reason,omitempty"`       // "email" / "phone"
}

// DetectDuplicate 去重检测（纯函数）
// 规则：
// - 邮箱：大小写不敏感全等（空邮箱不参与匹配）
// - 电话：字符串全等，不做归一化（"+971501234567" 与 "0501234567" 视为不同）
// - 多个匹配时指向创建最早的线索
// - 邮箱匹配优先于电话匹配（同一最早记录两者都命中时 reason 为 email）
func DetectDuplicate(email, phone string, existing []*domain.Lead) DuplicateCheck {
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)

	var match *domain.Lead
	var reason string

	for _, lead := range existing {
		var hit string
		if email != "" && strings.ToLower(strings.TrimSpace(lead.Email)) == email {
			hit = "email"
		} else if phone != "" && strings.TrimSpace(lead.Phone) == phone {
			hit = "phone"
		}
		if hit == "" {
			continue
		}
		if match == nil || lead.CreatedAt.Before(match.CreatedAt) {
			match = lead
			reason = hit
		}
	}

	if match == nil {
		return DuplicateCheck{}
	}
	return DuplicateCheck{
		IsDuplicate: true,
		DuplicateOf: match.LeadID,
		Reason:      reason,
	}
}
