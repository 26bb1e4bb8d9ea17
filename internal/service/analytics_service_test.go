package service

import (
	"context"
	"testing"
	"time"

	"estate-leads/internal/domain"
	"estate-leads/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAnalyticsService() (*AnalyticsService, *repository.MemoryLeadsRepo, *repository.MemoryAnalyticsRepo, *repository.MemoryNotificationLogRepo) {
	leadsRepo := repository.NewMemoryLeadsRepo()
	eventsRepo := repository.NewMemoryAnalyticsRepo()
	notifyLog := repository.NewMemoryNotificationLogRepo()
	svc := NewAnalyticsService(leadsRepo, eventsRepo, notifyLog, nil, zap.NewNop())
	return svc, leadsRepo, eventsRepo, notifyLog
}

func seedLeadWithTemp(t *testing.T, repo *repository.MemoryLeadsRepo, temperature string, dup bool) *domain.Lead {
	t.Helper()
	lead := &domain.Lead{
		Name:        "Lead",
		Temperature: temperature,
		Status:      domain.StatusNew,
		IsDuplicate: dup,
	}
	require.NoError(t, repo.CreateLead(context.Background(), lead))
	return lead
}

func TestStatistics(t *testing.T) {
	svc, leadsRepo, _, _ := newTestAnalyticsService()

	seedLeadWithTemp(t, leadsRepo, domain.TemperatureHot, false)
	seedLeadWithTemp(t, leadsRepo, domain.TemperatureHot, false)
	seedLeadWithTemp(t, leadsRepo, domain.TemperatureWarm, false)
	seedLeadWithTemp(t, leadsRepo, domain.TemperatureWarm, true)
	seedLeadWithTemp(t, leadsRepo, domain.TemperatureCold, false)

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Hot)
	assert.Equal(t, 2, stats.Warm)
	assert.Equal(t, 1, stats.Cold)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestRecord_AppendsEvent(t *testing.T) {
	svc, _, eventsRepo, _ := newTestAnalyticsService()
	ctx := context.Background()

	err := svc.Record(ctx, domain.EventLeadCreated, map[string]any{"lead_id": "L1"})
	require.NoError(t, err)

	events, err := eventsRepo.ListEvents(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventLeadCreated, events[0].Type)
	assert.Contains(t, string(events[0].Payload), "L1")
	assert.NotEmpty(t, events[0].EventID)
}

func TestComputeAggregates_Funnel(t *testing.T) {
	svc, leadsRepo, _, _ := newTestAnalyticsService()
	ctx := context.Background()

	// 线索1：推进到 contacted（漏斗覆盖 new/attempted/contacted）
	l1 := seedLeadWithTemp(t, leadsRepo, domain.TemperatureHot, false)
	require.NoError(t, leadsRepo.SetStatus(ctx, l1.LeadID, domain.StatusContacted))
	require.NoError(t, leadsRepo.AppendStatusHistory(ctx, l1.LeadID, domain.StatusHistoryEntry{Status: domain.StatusContacted}))

	// 线索2：停在 new
	seedLeadWithTemp(t, leadsRepo, domain.TemperatureWarm, false)

	// 线索3：赢单后搁置在售后，漏斗按历史最远阶段（won）计
	l3 := seedLeadWithTemp(t, leadsRepo, domain.TemperatureHot, false)
	require.NoError(t, leadsRepo.AppendStatusHistory(ctx, l3.LeadID, domain.StatusHistoryEntry{Status: domain.StatusWon}))
	require.NoError(t, leadsRepo.SetStatus(ctx, l3.LeadID, domain.StatusKYCPending))

	agg, err := svc.ComputeAggregates(ctx)
	require.NoError(t, err)

	require.Len(t, agg.ConversionFunnel, len(domain.PipelineOrder))
	assert.Equal(t, domain.StatusNew, agg.ConversionFunnel[0].Status)
	assert.Equal(t, 3, agg.ConversionFunnel[0].Count)
	// contacted 及之前：线索1与线索3到达过
	assert.Equal(t, 2, agg.ConversionFunnel[domain.PipelineIndex(domain.StatusContacted)].Count)
	// won 只有线索3到达过
	assert.Equal(t, 1, agg.ConversionFunnel[domain.PipelineIndex(domain.StatusWon)].Count)
}

func TestComputeAggregates_TopPropertiesAndCounts(t *testing.T) {
	svc, leadsRepo, _, notifyLog := newTestAnalyticsService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		lead := seedLeadWithTemp(t, leadsRepo, domain.TemperatureWarm, false)
		require.NoError(t, leadsRepo.AddProperty(ctx, lead.LeadID, domain.SelectedProperty{PropertyID: "p1", Name: "Marina Tower"}))
		if i == 0 {
			require.NoError(t, leadsRepo.AddProperty(ctx, lead.LeadID, domain.SelectedProperty{PropertyID: "p2", Name: "Palm Residence"}))
		}
	}

	// 渠道计数只统计成功发送
	require.NoError(t, notifyLog.AppendLog(ctx, &domain.NotificationLogEntry{Channel: "admin_email", Success: true}))
	require.NoError(t, notifyLog.AppendLog(ctx, &domain.NotificationLogEntry{Channel: "admin_email", Success: true}))
	require.NoError(t, notifyLog.AppendLog(ctx, &domain.NotificationLogEntry{Channel: "client_sms", Success: false}))

	agg, err := svc.ComputeAggregates(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, agg.TopProperties)
	assert.Equal(t, "p1", agg.TopProperties[0].PropertyID)
	assert.Equal(t, 3, agg.TopProperties[0].Count)

	assert.Equal(t, 2, agg.NotificationCounts["admin_email"])
	_, hasSMS := agg.NotificationCounts["client_sms"]
	assert.False(t, hasSMS)

	assert.Equal(t, 3, agg.Temperature[domain.TemperatureWarm])
	today := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, 3, agg.LeadsPerDay[today])
}

func TestRecentEvents(t *testing.T) {
	svc, _, _, _ := newTestAnalyticsService()
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, domain.EventNoteAdded, map[string]any{"lead_id": "L1"}))

	events, err := svc.RecentEvents(ctx, time.Hour)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
