package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"estate-leads/internal/domain"

	"github.com/google/uuid"
)

// MemoryLeadsRepo 内存线索仓储
// 用于 DB 未就绪时的联测与单元测试（与 PostgresLeadsRepo 行为对齐）
// - leads keyed by lead_id
// - 读取返回副本，避免调用方修改内部状态
type MemoryLeadsRepo struct {
	mu    sync.RWMutex
	leads map[string]*domain.Lead
	order []string // 插入顺序（ListLeads 按创建时间稳定排序）
}

func NewMemoryLeadsRepo() *MemoryLeadsRepo {
	return &MemoryLeadsRepo{
		leads: map[string]*domain.Lead{},
	}
}

// 确保实现了接口
var _ LeadsRepo = (*MemoryLeadsRepo)(nil)

func (r *MemoryLeadsRepo) CreateLead(_ context.Context, lead *domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lead.LeadID == "" {
		lead.LeadID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = lead.CreatedAt

	cp := copyLead(lead)
	r.leads[lead.LeadID] = cp
	r.order = append(r.order, lead.LeadID)
	return nil
}

func (r *MemoryLeadsRepo) GetLead(_ context.Context, leadID string) (*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[leadID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyLead(lead), nil
}

func (r *MemoryLeadsRepo) ListLeads(_ context.Context, filters LeadFilters, page, size int) ([]*domain.Lead, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.Lead, 0, len(r.order))
	for _, id := range r.order {
		lead := r.leads[id]
		if filters.Temperature != "" && lead.Temperature != filters.Temperature {
			continue
		}
		if filters.Status != "" && lead.Status != filters.Status {
			continue
		}
		if filters.OnlyDuplicates && !lead.IsDuplicate {
			continue
		}
		if q := strings.ToLower(strings.TrimSpace(filters.Query)); q != "" {
			if !strings.Contains(strings.ToLower(lead.Name), q) &&
				!strings.Contains(strings.ToLower(lead.Email), q) &&
				!strings.Contains(lead.Phone, q) {
				continue
			}
		}
		matched = append(matched, lead)
	}

	// 按创建时间倒序（新线索在前）
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return []*domain.Lead{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}

	out := make([]*domain.Lead, 0, end-start)
	for _, lead := range matched[start:end] {
		out = append(out, copyLead(lead))
	}
	return out, total, nil
}

func (r *MemoryLeadsRepo) ListAllLeads(_ context.Context) ([]*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Lead, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyLead(r.leads[id]))
	}
	return out, nil
}

func (r *MemoryLeadsRepo) UpdateTemperature(_ context.Context, leadID, temperature string) error {
	return r.mutate(leadID, func(lead *domain.Lead) {
		lead.Temperature = temperature
	})
}

func (r *MemoryLeadsRepo) UpdateSummary(_ context.Context, leadID, summary string) error {
	return r.mutate(leadID, func(lead *domain.Lead) {
		lead.DiscussionSummary = summary
	})
}

func (r *MemoryLeadsRepo) SetStatus(_ context.Context, leadID, status string) error {
	return r.mutate(leadID, func(lead *domain.Lead) {
		lead.Status = status
	})
}

func (r *MemoryLeadsRepo) AppendStatusHistory(_ context.Context, leadID string, entry domain.StatusHistoryEntry) error {
	return r.mutate(leadID, func(lead *domain.Lead) {
		lead.StatusHistory = append(lead.StatusHistory, entry)
	})
}

func (r *MemoryLeadsRepo) AppendConversation(_ context.Context, leadID string, entry domain.ConversationEntry) error {
	return r.mutate(leadID, func(lead *domain.Lead) {
		lead.Conversations = append(lead.Conversations, entry)
	})
}

func (r *MemoryLeadsRepo) AddProperty(_ context.Context, leadID string, prop domain.SelectedProperty) error {
	return r.mutate(leadID, func(lead *domain.Lead) {
		// 幂等：同一 property_id 已存在则不追加
		for _, p := range lead.SelectedProperties {
			if p.PropertyID == prop.PropertyID {
				return
			}
		}
		prop.Position = len(lead.SelectedProperties)
		lead.SelectedProperties = append(lead.SelectedProperties, prop)
	})
}

func (r *MemoryLeadsRepo) RemoveProperty(_ context.Context, leadID, propertyID string) error {
	return r.mutate(leadID, func(lead *domain.Lead) {
		kept := lead.SelectedProperties[:0]
		for _, p := range lead.SelectedProperties {
			if p.PropertyID != propertyID {
				p.Position = len(kept)
				kept = append(kept, p)
			}
		}
		lead.SelectedProperties = kept
	})
}

func (r *MemoryLeadsRepo) AddAppointment(_ context.Context, appt *domain.Appointment) error {
	if appt.AppointmentID == "" {
		appt.AppointmentID = uuid.NewString()
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now().UTC()
	}
	if appt.Status == "" {
		appt.Status = domain.AppointmentScheduled
	}
	cp := *appt
	return r.mutate(appt.LeadID, func(lead *domain.Lead) {
		lead.Appointments = append(lead.Appointments, cp)
	})
}

func (r *MemoryLeadsRepo) UpdateAppointmentStatus(_ context.Context, leadID, appointmentID, status string) error {
	found := false
	err := r.mutate(leadID, func(lead *domain.Lead) {
		for i := range lead.Appointments {
			if lead.Appointments[i].AppointmentID == appointmentID {
				lead.Appointments[i].Status = status
				found = true
				return
			}
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (r *MemoryLeadsRepo) AddSharingRecord(_ context.Context, leadID string, rec domain.SharingRecord) error {
	if rec.ShareID == "" {
		rec.ShareID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt
	rec.LeadID = leadID
	return r.mutate(leadID, func(lead *domain.Lead) {
		lead.SharingRecords = append(lead.SharingRecords, rec)
	})
}

func (r *MemoryLeadsRepo) UpdateSharingRecord(_ context.Context, leadID, shareID, status string, pendingApproval bool) error {
	found := false
	err := r.mutate(leadID, func(lead *domain.Lead) {
		for i := range lead.SharingRecords {
			if lead.SharingRecords[i].ShareID == shareID {
				if status != "" {
					lead.SharingRecords[i].Status = status
				}
				lead.SharingRecords[i].PendingApproval = pendingApproval
				lead.SharingRecords[i].UpdatedAt = time.Now().UTC()
				found = true
				return
			}
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (r *MemoryLeadsRepo) ListDueFollowups(_ context.Context, before time.Time) ([]*domain.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Lead{}
	for _, id := range r.order {
		lead := r.leads[id]
		switch lead.Status {
		case domain.StatusCallbackScheduled, domain.StatusFollowupScheduled, domain.StatusAttemptedContact:
			if lead.UpdatedAt.Before(before) {
				out = append(out, copyLead(lead))
			}
		}
	}
	return out, nil
}

func (r *MemoryLeadsRepo) ListUpcomingAppointments(_ context.Context, from, to time.Time) ([]*domain.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Appointment{}
	for _, id := range r.order {
		for _, a := range r.leads[id].Appointments {
			if a.Status != domain.AppointmentScheduled {
				continue
			}
			if !a.StartTime.Before(from) && a.StartTime.Before(to) {
				cp := a
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

// mutate 行级变更：定位记录、应用变更、刷新 updated_at
func (r *MemoryLeadsRepo) mutate(leadID string, fn func(*domain.Lead)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[leadID]
	if !ok {
		return ErrNotFound
	}
	fn(lead)
	lead.UpdatedAt = time.Now().UTC()
	return nil
}

// copyLead 深拷贝（子集合逐一复制）
func copyLead(src *domain.Lead) *domain.Lead {
	cp := *src
	cp.SelectedProperties = append([]domain.SelectedProperty(nil), src.SelectedProperties...)
	cp.Conversations = append([]domain.ConversationEntry(nil), src.Conversations...)
	cp.StatusHistory = append([]domain.StatusHistoryEntry(nil), src.StatusHistory...)
	cp.SharingRecords = append([]domain.SharingRecord(nil), src.SharingRecords...)
	cp.Appointments = append([]domain.Appointment(nil), src.Appointments...)
	return &cp
}
