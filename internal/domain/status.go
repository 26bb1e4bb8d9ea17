package domain

import "fmt"

// 线索温度
const (
	TemperatureHot  = "hot"
	TemperatureWarm = "warm"
	TemperatureCold = "cold"
)

// ValidTemperature 校验温度取值
func ValidTemperature(t string) bool {
	switch t {
	case TemperatureHot, TemperatureWarm, TemperatureCold:
		return true
	}
	return false
}

// 处置状态码（完整词汇表，共17个）
const (
	StatusNew               = "new"
	StatusAttemptedContact  = "attempted_contact"
	StatusContacted         = "contacted"
	StatusCallbackScheduled = "callback_scheduled"
	StatusVisitScheduled    = "visit_scheduled"
	StatusVisited           = "visited"
	StatusProposalSent      = "proposal_sent"
	StatusNegotiation       = "negotiation"
	StatusFollowupScheduled = "followup_scheduled"
	StatusNotInterested     = "not_interested"
	StatusNoResponse        = "no_response"
	StatusOnHold            = "on_hold"
	StatusLost              = "lost"
	StatusWon               = "won"
	StatusKYCPending        = "kyc_pending"
	StatusPaymentPending    = "payment_pending"
	StatusCompleted         = "completed"
)

// AllStatuses 全量处置词汇表（SetStatus 只校验成员资格，不限制方向）
var AllStatuses = []string{
	StatusNew,
	StatusAttemptedContact,
	StatusContacted,
	StatusCallbackScheduled,
	StatusVisitScheduled,
	StatusVisited,
	StatusProposalSent,
	StatusNegotiation,
	StatusFollowupScheduled,
	StatusNotInterested,
	StatusNoResponse,
	StatusOnHold,
	StatusLost,
	StatusWon,
	StatusKYCPending,
	StatusPaymentPending,
	StatusCompleted,
}

// PipelineOrder 售前推进顺序
// won 是售前管道的出口，同时是售后链的入口
var PipelineOrder = []string{
	StatusNew,
	StatusAttemptedContact,
	StatusContacted,
	StatusCallbackScheduled,
	StatusVisitScheduled,
	StatusVisited,
	StatusProposalSent,
	StatusNegotiation,
	StatusFollowupScheduled,
	StatusWon,
}

// PostSaleOrder 售后推进顺序（won 之后进入 KYC/付款/完成）
var PostSaleOrder = []string{
	StatusWon,
	StatusKYCPending,
	StatusPaymentPending,
	StatusCompleted,
}

// 终态：不可再推进
var terminalStatuses = map[string]bool{
	StatusCompleted:     true,
	StatusLost:          true,
	StatusNotInterested: true,
}

// 搁置态：只能通过 SetStatus 显式改回管道状态，不参与 Progress 推进
var parkedStatuses = map[string]bool{
	StatusNoResponse: true,
	StatusOnHold:     true,
}

var statusSet = func() map[string]bool {
	m := make(map[string]bool, len(AllStatuses))
	for _, s := range AllStatuses {
		m[s] = true
	}
	return m
}()

// ValidStatus 校验状态码是否在处置词汇表内
func ValidStatus(s string) bool {
	return statusSet[s]
}

// TerminalStatus 是否为终态
func TerminalStatus(s string) bool {
	return terminalStatuses[s]
}

// ParkedStatus 是否为搁置态
func ParkedStatus(s string) bool {
	return parkedStatuses[s]
}

// NextStatus 计算推进一步后的状态
// 规则（售前/售后为两条衔接的状态链）：
// - 售前链内：按 PipelineOrder 顺序推进，won 之后进入售后链
// - 售后链内：won -> kyc_pending -> payment_pending -> completed
// - 终态（completed/lost/not_interested）：返回错误，不可推进
// - 搁置态（no_response/on_hold）：返回错误，需先显式 SetStatus 回管道
func NextStatus(current string) (string, error) {
	if !ValidStatus(current) {
		return "", fmt.Errorf("unknown status: %s", current)
	}
	if TerminalStatus(current) {
		return "", fmt.Errorf("status %s is terminal, cannot progress", current)
	}
	if ParkedStatus(current) {
		return "", fmt.Errorf("status %s is parked, set an explicit status instead", current)
	}

	// 售后链优先（won 归属售后链的入口）
	for i, s := range PostSaleOrder {
		if s == current {
			return PostSaleOrder[i+1], nil
		}
	}

	for i, s := range PipelineOrder {
		if s == current {
			return PipelineOrder[i+1], nil
		}
	}

	return "", fmt.Errorf("status %s has no successor", current)
}

// PipelineIndex 状态在售前管道中的位置（用于转化漏斗聚合）
// 不在管道内（搁置/流失/售后）返回 -1
func PipelineIndex(s string) int {
	for i, p := range PipelineOrder {
		if p == s {
			return i
		}
	}
	return -1
}
