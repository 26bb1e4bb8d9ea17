package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterLeadRoutes 注册线索相关路由
func (r *Router) RegisterLeadRoutes(h *LeadHandler) {
	r.HandleHandler("/crm/api/v1/leads", h)
	r.HandleHandler("/crm/api/v1/leads/", h)
}

// RegisterPartnerRoutes 注册合作方相关路由
func (r *Router) RegisterPartnerRoutes(h *PartnerHandler) {
	r.HandleHandler("/crm/api/v1/partners", h)
	r.HandleHandler("/crm/api/v1/partners/", h)
}

// RegisterAnalyticsRoutes 注册分析相关路由
func (r *Router) RegisterAnalyticsRoutes(h *AnalyticsHandler) {
	r.HandleHandler("/crm/api/v1/analytics/", h)
}

// RegisterHealthRoute 健康检查
func (r *Router) RegisterHealthRoute() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeOk(w, map[string]string{"status": "ok"})
	})
}
