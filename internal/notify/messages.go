package notify

import (
	"fmt"
	"strings"

	"estate-leads/internal/domain"
)

// BuildMessages 按事件构建消息文案
// 返回 (邮件主题, 管理员正文, 客户正文)
// 管理员正文包含线索全量摘要；客户正文只含面向客户的内容
func BuildMessages(lead *domain.Lead, ev Event) (subject, adminBody, clientBody string) {
	switch ev.Kind {
	case EventLeadCreated:
		subject = fmt.Sprintf("New lead: %s", lead.Name)
		adminBody = adminSummary(lead, "New lead captured")
		clientBody = fmt.Sprintf(
			"Hi %s, thank you for your interest. Our property consultant will reach out to you shortly.",
			lead.Name,
		)
	case EventAppointmentCreated:
		subject = fmt.Sprintf("Appointment (%s) for lead %s", ev.Meta, lead.Name)
		adminBody = adminSummary(lead, fmt.Sprintf("Appointment of type %q scheduled", ev.Meta))
		clientBody = fmt.Sprintf(
			"Hi %s, your %s appointment has been scheduled. We look forward to seeing you.",
			lead.Name, ev.Meta,
		)
	case EventStatusChanged:
		subject = fmt.Sprintf("Lead %s moved to %s", lead.Name, ev.Meta)
		adminBody = adminSummary(lead, fmt.Sprintf("Status changed to %q", ev.Meta))
		clientBody = "" // status changes are internal only
	case EventReEngagement:
		subject = fmt.Sprintf("Following up with %s", lead.Name)
		adminBody = adminSummary(lead, "Re-engagement triggered (no recent contact)")
		clientBody = fmt.Sprintf(
			"Hi %s, just checking in - we have new property options matching your preferences. Reply anytime to continue.",
			lead.Name,
		)
	default:
		subject = fmt.Sprintf("Lead update: %s", lead.Name)
		adminBody = adminSummary(lead, "Lead updated")
		clientBody = ""
	}
	return subject, adminBody, clientBody
}

// adminSummary 管理员消息：标题行 + 线索要点
func adminSummary(lead *domain.Lead, headline string) string {
	var b strings.Builder
	b.WriteString(headline)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Name: %s\n", lead.Name)
	if lead.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", lead.Email)
	}
	if lead.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", lead.Phone)
	}
	if lead.Budget != "" {
		fmt.Fprintf(&b, "Budget: %s\n", lead.Budget)
	}
	fmt.Fprintf(&b, "Temperature: %s\n", lead.Temperature)
	fmt.Fprintf(&b, "Status: %s\n", lead.Status)
	if lead.IsDuplicate {
		fmt.Fprintf(&b, "Duplicate of: %s\n", lead.DuplicateOf)
	}
	if len(lead.SelectedProperties) > 0 {
		names := make([]string, 0, len(lead.SelectedProperties))
		for _, p := range lead.SelectedProperties {
			names = append(names, p.Name)
		}
		fmt.Fprintf(&b, "Properties: %s\n", strings.Join(names, "; "))
	}
	return b.String()
}
