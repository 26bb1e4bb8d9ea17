package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"estate-leads/internal/domain"
	"estate-leads/internal/repository"
	"estate-leads/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestRouter 构建无外部依赖的测试路由（内存仓储、无通知网关）
func newTestRouter(t *testing.T) (*Router, *repository.MemoryLeadsRepo, *repository.MemoryPartnersRepo) {
	t.Helper()
	logger := zap.NewNop()
	leadsRepo := repository.NewMemoryLeadsRepo()
	partnersRepo := repository.NewMemoryPartnersRepo()
	eventsRepo := repository.NewMemoryAnalyticsRepo()
	notifyLog := repository.NewMemoryNotificationLogRepo()

	analytics := service.NewAnalyticsService(leadsRepo, eventsRepo, notifyLog, nil, logger)
	leadService := service.NewLeadService(leadsRepo, nil, analytics, logger)
	sharingService := service.NewSharingService(leadsRepo, partnersRepo, nil, analytics, logger)

	router := NewRouter(logger)
	router.RegisterLeadRoutes(NewLeadHandler(leadService, sharingService, logger))
	router.RegisterPartnerRoutes(NewPartnerHandler(partnersRepo, logger))
	router.RegisterAnalyticsRoutes(NewAnalyticsHandler(analytics, logger))
	router.RegisterHealthRoute()
	return router, leadsRepo, partnersRepo
}

func doJSON(t *testing.T, router *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Code    int            `json:"code"`
		Type    string         `json:"type"`
		Message string         `json:"message"`
		Result  map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, ResultSuccess, envelope.Code, rec.Body.String())
	return envelope.Result
}

func TestLeadRoutes_SaveAndGet(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/crm/api/v1/leads", map[string]any{
		"name":        "Jane Smith",
		"email":       "jane@x.com",
		"phone":       "+971501234567",
		"temperature": "hot",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeResult(t, rec)
	leadID, _ := created["lead_id"].(string)
	require.NotEmpty(t, leadID)
	assert.Equal(t, "new", created["status"])

	rec = doJSON(t, router, http.MethodGet, "/crm/api/v1/leads/"+leadID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeResult(t, rec)
	assert.Equal(t, "Jane Smith", got["name"])
}

func TestLeadRoutes_SaveInvalid(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/crm/api/v1/leads", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadRoutes_GetMissingIs404(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/crm/api/v1/leads/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeadRoutes_SafeViewStripsInternals(t *testing.T) {
	router, leadsRepo, _ := newTestRouter(t)

	lead := &domain.Lead{
		Name:              "Jane",
		Temperature:       domain.TemperatureHot,
		Status:            domain.StatusContacted,
		IsDuplicate:       true,
		DiscussionSummary: "internal summary",
	}
	require.NoError(t, leadsRepo.CreateLead(context.Background(), lead))

	rec := doJSON(t, router, http.MethodGet, "/crm/api/v1/leads/"+lead.LeadID+"/safe-view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "temperature")
	assert.NotContains(t, body, "is_duplicate")
	assert.NotContains(t, body, "internal summary")
}

func TestLeadRoutes_StatusFlow(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/crm/api/v1/leads", map[string]any{"name": "Jane"})
	leadID := decodeResult(t, rec)["lead_id"].(string)

	// 显式设置
	rec = doJSON(t, router, http.MethodPost, "/crm/api/v1/leads/"+leadID+"/status", map[string]any{
		"status":     "contacted",
		"note":       "spoke on phone",
		"changed_by": "agent-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "contacted", decodeResult(t, rec)["status"])

	// 非法状态拒绝
	rec = doJSON(t, router, http.MethodPost, "/crm/api/v1/leads/"+leadID+"/status", map[string]any{"status": "closed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 推进一步
	rec = doJSON(t, router, http.MethodPost, "/crm/api/v1/leads/"+leadID+"/status/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "callback_scheduled", decodeResult(t, rec)["status"])
}

func TestLeadRoutes_Properties(t *testing.T) {
	router, leadsRepo, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/crm/api/v1/leads", map[string]any{"name": "Jane"})
	leadID := decodeResult(t, rec)["lead_id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/crm/api/v1/leads/"+leadID+"/properties", map[string]any{
		"property_id": "p1",
		"name":        "Marina Tower",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/crm/api/v1/leads/"+leadID+"/properties/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := leadsRepo.GetLead(context.Background(), leadID)
	require.NoError(t, err)
	assert.Empty(t, saved.SelectedProperties)
}

func TestLeadRoutes_ExportCSV(t *testing.T) {
	router, _, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/crm/api/v1/leads", map[string]any{"name": "Jane"})
	doJSON(t, router, http.MethodPost, "/crm/api/v1/leads", map[string]any{"name": "Omar"})

	rec := doJSON(t, router, http.MethodGet, "/crm/api/v1/leads/export/csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(rec.Body.String(), "\n")
	assert.Len(t, lines, 3)
}

func TestPartnerRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/crm/api/v1/partners", map[string]any{
		"name": "Acme Realty",
		"type": "broker",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	partnerID := decodeResult(t, rec)["partner_id"].(string)
	require.NotEmpty(t, partnerID)

	// 非法类型拒绝
	rec = doJSON(t, router, http.MethodPost, "/crm/api/v1/partners", map[string]any{
		"name": "Bad",
		"type": "alien",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/crm/api/v1/partners/"+partnerID+"/revenue", map[string]any{
		"amount":   50000.0,
		"currency": "AED",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/crm/api/v1/partners/"+partnerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeResult(t, rec)
	assert.Equal(t, "Acme Realty", got["name"])
	entries, _ := got["revenue_entries"].([]any)
	assert.Len(t, entries, 1)
}

func TestShareAndReassignRoutes(t *testing.T) {
	router, _, partnersRepo := newTestRouter(t)
	ctx := context.Background()

	partner := &domain.Partner{Name: "Acme", Type: domain.PartnerTypeBroker}
	require.NoError(t, partnersRepo.CreatePartner(ctx, partner))

	rec := doJSON(t, router, http.MethodPost, "/crm/api/v1/leads", map[string]any{"name": "Jane"})
	leadID := decodeResult(t, rec)["lead_id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/crm/api/v1/leads/"+leadID+"/share", map[string]any{
		"partner_id": partner.PartnerID,
		"kind":       "partner",
		"consent":    map[string]bool{"share_contact": true},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// 转派：新记录带审批门
	rec = doJSON(t, router, http.MethodPost, "/crm/api/v1/leads/"+leadID+"/reassign", map[string]any{
		"partner_id": partner.PartnerID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	reassigned := decodeResult(t, rec)
	shareID := reassigned["share_id"].(string)
	assert.Equal(t, true, reassigned["pending_approval"])

	// 审批门未解除时再次转派被拒
	rec = doJSON(t, router, http.MethodPost, "/crm/api/v1/leads/"+leadID+"/reassign", map[string]any{
		"partner_id": partner.PartnerID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 解除审批
	rec = doJSON(t, router, http.MethodPost, "/crm/api/v1/leads/"+leadID+"/approvals/"+shareID, map[string]any{
		"approve": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyticsRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/crm/api/v1/leads", map[string]any{"name": "Jane", "temperature": "hot"})
	doJSON(t, router, http.MethodPost, "/crm/api/v1/leads", map[string]any{"name": "Omar", "temperature": "cold"})

	rec := doJSON(t, router, http.MethodGet, "/crm/api/v1/analytics/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeResult(t, rec)
	assert.Equal(t, float64(2), stats["total"])
	assert.Equal(t, float64(1), stats["hot"])

	rec = doJSON(t, router, http.MethodGet, "/crm/api/v1/analytics/aggregates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agg := decodeResult(t, rec)
	funnel, _ := agg["conversion_funnel"].([]any)
	require.NotEmpty(t, funnel)

	rec = doJSON(t, router, http.MethodGet, "/crm/api/v1/analytics/events?window=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthRoute(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
