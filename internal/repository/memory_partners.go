package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"estate-leads/internal/domain"

	"github.com/google/uuid"
)

// MemoryPartnersRepo 内存合作方仓储（DB 未就绪时的联测与单元测试用）
type MemoryPartnersRepo struct {
	mu       sync.RWMutex
	partners map[string]*domain.Partner
}

func NewMemoryPartnersRepo() *MemoryPartnersRepo {
	return &MemoryPartnersRepo{partners: map[string]*domain.Partner{}}
}

// 确保实现了接口
var _ PartnersRepo = (*MemoryPartnersRepo)(nil)

func (r *MemoryPartnersRepo) CreatePartner(_ context.Context, p *domain.Partner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.PartnerID == "" {
		p.PartnerID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt

	cp := *p
	cp.RevenueEntries = append([]domain.RevenueEntry(nil), p.RevenueEntries...)
	r.partners[p.PartnerID] = &cp
	return nil
}

func (r *MemoryPartnersRepo) GetPartner(_ context.Context, partnerID string) (*domain.Partner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.partners[partnerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.RevenueEntries = append([]domain.RevenueEntry(nil), p.RevenueEntries...)
	return &cp, nil
}

func (r *MemoryPartnersRepo) ListPartners(_ context.Context) ([]*domain.Partner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Partner, 0, len(r.partners))
	for _, p := range r.partners {
		cp := *p
		cp.RevenueEntries = append([]domain.RevenueEntry(nil), p.RevenueEntries...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryPartnersRepo) AddRevenue(_ context.Context, partnerID string, entry domain.RevenueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.partners[partnerID]
	if !ok {
		return ErrNotFound
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Currency == "" {
		entry.Currency = "AED"
	}
	p.RevenueEntries = append(p.RevenueEntries, entry)
	p.UpdatedAt = time.Now().UTC()
	return nil
}
