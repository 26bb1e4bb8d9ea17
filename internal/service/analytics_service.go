package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"estate-leads/internal/domain"
	"estate-leads/internal/redisx"
	"estate-leads/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EventStream 分析事件发布到的 Redis Stream
const EventStream = "estate:events"

// AnalyticsService 分析服务
// 职责：
// 1. 事件记录（Postgres append-only 日志 + Redis Stream 尽力而为发布）
// 2. 线索统计（温度分布/重复计数）
// 3. 聚合指标（按日计数、热门楼盘、渠道发送量、转化漏斗）
type AnalyticsService struct {
	leadsRepo  repository.LeadsRepo
	eventsRepo repository.AnalyticsRepo
	notifyLog  repository.NotificationLogRepo
	redis      *redis.Client // 可为 nil（Redis 未启用时只落库）
	logger     *zap.Logger
}

// NewAnalyticsService 创建分析服务
func NewAnalyticsService(
	leadsRepo repository.LeadsRepo,
	eventsRepo repository.AnalyticsRepo,
	notifyLog repository.NotificationLogRepo,
	redisClient *redis.Client,
	logger *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		leadsRepo:  leadsRepo,
		eventsRepo: eventsRepo,
		notifyLog:  notifyLog,
		redis:      redisClient,
		logger:     logger,
	}
}

// Record 记录分析事件
// 事件日志是非关键路径：落库失败返回错误由调用方决定是否忽略，
// Stream 发布失败只记日志
func (s *AnalyticsService) Record(ctx context.Context, eventType string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	ev := &domain.AnalyticsEvent{
		Type:    eventType,
		Payload: raw,
	}
	if err := s.eventsRepo.AppendEvent(ctx, ev); err != nil {
		s.logger.Error("Failed to append analytics event",
			zap.String("type", eventType),
			zap.Error(err),
		)
		return fmt.Errorf("failed to record event: %w", err)
	}

	if s.redis != nil {
		if _, err := redisx.PublishJSONToStream(ctx, s.redis, EventStream, ev); err != nil {
			s.logger.Warn("Failed to publish event to stream",
				zap.String("type", eventType),
				zap.Error(err),
			)
		}
	}
	return nil
}

// RecordAsync 尽力而为记录（调用方不关心结果的路径使用）
func (s *AnalyticsService) RecordAsync(ctx context.Context, eventType string, payload map[string]any) {
	if err := s.Record(ctx, eventType, payload); err != nil {
		s.logger.Warn("Analytics record dropped", zap.String("type", eventType), zap.Error(err))
	}
}

// LeadStatistics 线索统计
type LeadStatistics struct {
	Total      int `json:"total"`
	Hot        int `json:"hot"`
	Warm       int `json:"warm"`
	Cold       int `json:"cold"`
	Duplicates int `json:"duplicates"`
}

// Statistics 统计全量线索的温度分布与重复数
func (s *AnalyticsService) Statistics(ctx context.Context) (*LeadStatistics, error) {
	leads, err := s.leadsRepo.ListAllLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads for statistics: %w", err)
	}

	stats := &LeadStatistics{Total: len(leads)}
	for _, lead := range leads {
		switch lead.Temperature {
		case domain.TemperatureHot:
			stats.Hot++
		case domain.TemperatureWarm:
			stats.Warm++
		case domain.TemperatureCold:
			stats.Cold++
		}
		if lead.IsDuplicate {
			stats.Duplicates++
		}
	}
	return stats, nil
}

// PropertyCount 楼盘关注计数
type PropertyCount struct {
	PropertyID string `json:"property_id"`
	Name       string `json:"name"`
	Count      int    `json:"count"`
}

// FunnelStage 转化漏斗的一级
type FunnelStage struct {
	Status string `json:"status"`
	Count  int    `json:"count"` // 到达或越过该阶段的线索数
}

// Aggregates 聚合指标
type Aggregates struct {
	LeadsPerDay        map[string]int `json:"leads_per_day"` // YYYY-MM-DD -> 新建线索数
	Temperature        map[string]int `json:"temperature"`
	TopProperties      []PropertyCount `json:"top_properties"`
	NotificationCounts map[string]int `json:"notification_counts"` // 渠道 -> 成功发送数
	ConversionFunnel   []FunnelStage  `json:"conversion_funnel"`
	EventCounts        map[string]int `json:"event_counts"`
}

// ComputeAggregates 全量扫描计算聚合指标
// 数据量小（单机构CRM），每次全量扫描可接受；无服务端预聚合
func (s *AnalyticsService) ComputeAggregates(ctx context.Context) (*Aggregates, error) {
	leads, err := s.leadsRepo.ListAllLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads for aggregates: %w", err)
	}

	agg := &Aggregates{
		LeadsPerDay: map[string]int{},
		Temperature: map[string]int{},
	}

	propCounts := map[string]*PropertyCount{}
	funnelCounts := make([]int, len(domain.PipelineOrder))

	for _, lead := range leads {
		agg.LeadsPerDay[lead.CreatedAt.UTC().Format("2006-01-02")]++
		agg.Temperature[lead.Temperature]++

		for _, p := range lead.SelectedProperties {
			pc, ok := propCounts[p.PropertyID]
			if !ok {
				pc = &PropertyCount{PropertyID: p.PropertyID, Name: p.Name}
				propCounts[p.PropertyID] = pc
			}
			pc.Count++
		}

		// 漏斗：取线索在售前管道中到达过的最远阶段
		maxIdx := domain.PipelineIndex(lead.Status)
		for _, h := range lead.StatusHistory {
			if idx := domain.PipelineIndex(h.Status); idx > maxIdx {
				maxIdx = idx
			}
		}
		for i := 0; i <= maxIdx && i < len(funnelCounts); i++ {
			funnelCounts[i]++
		}
	}

	for _, pc := range propCounts {
		agg.TopProperties = append(agg.TopProperties, *pc)
	}
	sort.Slice(agg.TopProperties, func(i, j int) bool {
		if agg.TopProperties[i].Count != agg.TopProperties[j].Count {
			return agg.TopProperties[i].Count > agg.TopProperties[j].Count
		}
		return agg.TopProperties[i].Name < agg.TopProperties[j].Name
	})
	if len(agg.TopProperties) > 5 {
		agg.TopProperties = agg.TopProperties[:5]
	}

	agg.ConversionFunnel = make([]FunnelStage, len(domain.PipelineOrder))
	for i, status := range domain.PipelineOrder {
		agg.ConversionFunnel[i] = FunnelStage{Status: status, Count: funnelCounts[i]}
	}

	if s.notifyLog != nil {
		counts, err := s.notifyLog.CountByChannel(ctx)
		if err != nil {
			s.logger.Warn("Failed to count notifications", zap.Error(err))
		} else {
			agg.NotificationCounts = counts
		}
	}

	if s.eventsRepo != nil {
		counts, err := s.eventsRepo.CountEventsByType(ctx)
		if err != nil {
			s.logger.Warn("Failed to count events", zap.Error(err))
		} else {
			agg.EventCounts = counts
		}
	}

	return agg, nil
}

// RecentEvents 查询最近窗口内的事件（仪表盘时间线用）
func (s *AnalyticsService) RecentEvents(ctx context.Context, window time.Duration) ([]*domain.AnalyticsEvent, error) {
	since := time.Now().UTC().Add(-window)
	events, err := s.eventsRepo.ListEvents(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}
	return events, nil
}
