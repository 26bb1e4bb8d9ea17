package httpapi

import (
	"net/http"
	"time"

	"estate-leads/internal/service"

	"go.uber.org/zap"
)

// AnalyticsHandler 分析与统计查询 Handler
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	logger    *zap.Logger
}

// NewAnalyticsHandler 创建分析查询 Handler
func NewAnalyticsHandler(analytics *service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    logger,
	}
}

const analyticsPrefix = "/crm/api/v1/analytics"

// ServeHTTP 实现 http.Handler 接口
func (h *AnalyticsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case analyticsPrefix + "/statistics":
		h.Statistics(w, r)
	case analyticsPrefix + "/aggregates":
		h.Aggregates(w, r)
	case analyticsPrefix + "/events":
		h.RecentEvents(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Statistics GET /crm/api/v1/analytics/statistics
// 线索温度分布与重复计数
func (h *AnalyticsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.Statistics(r.Context())
	if err != nil {
		h.logger.Error("Statistics failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOk(w, stats)
}

// Aggregates GET /crm/api/v1/analytics/aggregates
// 仪表盘聚合指标（按日计数/热门楼盘/渠道发送量/转化漏斗）
func (h *AnalyticsHandler) Aggregates(w http.ResponseWriter, r *http.Request) {
	agg, err := h.analytics.ComputeAggregates(r.Context())
	if err != nil {
		h.logger.Error("ComputeAggregates failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOk(w, agg)
}

// RecentEvents GET /crm/api/v1/analytics/events?window=24h
func (h *AnalyticsHandler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeFail(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = d
	}
	events, err := h.analytics.RecentEvents(r.Context(), window)
	if err != nil {
		h.logger.Error("RecentEvents failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOk(w, map[string]any{"items": events, "total": len(events)})
}
