package repository

import (
	"context"
	"testing"
	"time"

	"estate-leads/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemoryLead(t *testing.T, r *MemoryLeadsRepo, name, email, temperature string, dup bool) *domain.Lead {
	t.Helper()
	lead := &domain.Lead{
		Name:        name,
		Email:       email,
		Temperature: temperature,
		Status:      domain.StatusNew,
		IsDuplicate: dup,
	}
	require.NoError(t, r.CreateLead(context.Background(), lead))
	return lead
}

func TestMemoryLeadsRepo_ListLeadsFilters(t *testing.T) {
	r := NewMemoryLeadsRepo()
	ctx := context.Background()

	seedMemoryLead(t, r, "Jane Smith", "jane@x.com", domain.TemperatureHot, false)
	seedMemoryLead(t, r, "Omar Hassan", "omar@x.com", domain.TemperatureCold, true)
	seedMemoryLead(t, r, "Jane Doe", "doe@x.com", domain.TemperatureHot, false)

	leads, total, err := r.ListLeads(ctx, LeadFilters{Temperature: domain.TemperatureHot}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, leads, 2)

	leads, total, err = r.ListLeads(ctx, LeadFilters{OnlyDuplicates: true}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Omar Hassan", leads[0].Name)

	// 模糊匹配 name/email，大小写不敏感
	_, total, err = r.ListLeads(ctx, LeadFilters{Query: "JANE"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = r.ListLeads(ctx, LeadFilters{Query: "omar@x.com"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMemoryLeadsRepo_Pagination(t *testing.T) {
	r := NewMemoryLeadsRepo()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedMemoryLead(t, r, "Lead", "", domain.TemperatureWarm, false)
	}

	page1, total, err := r.ListLeads(ctx, LeadFilters{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page1, 2)

	page3, total, err := r.ListLeads(ctx, LeadFilters{}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page3, 1)

	beyond, total, err := r.ListLeads(ctx, LeadFilters{}, 9, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, beyond)
}

func TestMemoryLeadsRepo_ReadsReturnCopies(t *testing.T) {
	r := NewMemoryLeadsRepo()
	ctx := context.Background()

	lead := seedMemoryLead(t, r, "Jane", "jane@x.com", domain.TemperatureHot, false)
	require.NoError(t, r.AddProperty(ctx, lead.LeadID, domain.SelectedProperty{PropertyID: "p1", Name: "A"}))

	got, err := r.GetLead(ctx, lead.LeadID)
	require.NoError(t, err)

	// 修改返回值不得污染仓储内部状态
	got.Name = "Hacked"
	got.SelectedProperties[0].Name = "Hacked"

	fresh, err := r.GetLead(ctx, lead.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", fresh.Name)
	assert.Equal(t, "A", fresh.SelectedProperties[0].Name)
}

func TestMemoryLeadsRepo_MutationsTouchUpdatedAt(t *testing.T) {
	r := NewMemoryLeadsRepo()
	ctx := context.Background()

	lead := seedMemoryLead(t, r, "Jane", "", domain.TemperatureWarm, false)
	before, err := r.GetLead(ctx, lead.LeadID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, r.UpdateTemperature(ctx, lead.LeadID, domain.TemperatureHot))

	after, err := r.GetLead(ctx, lead.LeadID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestMemoryLeadsRepo_NotFound(t *testing.T) {
	r := NewMemoryLeadsRepo()
	ctx := context.Background()

	_, err := r.GetLead(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = r.SetStatus(ctx, "missing", domain.StatusContacted)
	assert.ErrorIs(t, err, ErrNotFound)

	err = r.UpdateAppointmentStatus(ctx, "missing", "a1", domain.AppointmentDone)
	assert.ErrorIs(t, err, ErrNotFound)
}
