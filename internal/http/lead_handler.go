package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"estate-leads/internal/domain"
	"estate-leads/internal/repository"
	"estate-leads/internal/service"

	"go.uber.org/zap"
)

// LeadHandler 线索管理 Handler
type LeadHandler struct {
	leadService    *service.LeadService
	sharingService *service.SharingService
	logger         *zap.Logger
}

// NewLeadHandler 创建线索管理 Handler
func NewLeadHandler(leadService *service.LeadService, sharingService *service.SharingService, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{
		leadService:    leadService,
		sharingService: sharingService,
		logger:         logger,
	}
}

const leadsPrefix = "/crm/api/v1/leads"

// ServeHTTP 实现 http.Handler 接口
func (h *LeadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	// ListLeads
	case path == leadsPrefix && r.Method == http.MethodGet:
		h.ListLeads(w, r)
	// SaveLead
	case path == leadsPrefix && r.Method == http.MethodPost:
		h.SaveLead(w, r)
	// 导出（必须在 GetLead 之前，路径更具体）
	case path == leadsPrefix+"/export/csv" && r.Method == http.MethodGet:
		h.ExportCSV(w, r)
	case path == leadsPrefix+"/export/excel" && r.Method == http.MethodGet:
		h.ExportExcel(w, r)
	default:
		h.serveLeadSubpath(w, r)
	}
}

// serveLeadSubpath 处理 /crm/api/v1/leads/{id}[/...] 子路径
func (h *LeadHandler) serveLeadSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, leadsPrefix+"/")
	if rest == "" || rest == r.URL.Path {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	leadID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.GetLead(w, r, leadID)
	case len(parts) == 2 && parts[1] == "safe-view" && r.Method == http.MethodGet:
		h.GetSafeView(w, r, leadID)
	case len(parts) == 2 && parts[1] == "temperature" && r.Method == http.MethodPut:
		h.UpdateTemperature(w, r, leadID)
	case len(parts) == 2 && parts[1] == "summary" && r.Method == http.MethodPut:
		h.UpdateSummary(w, r, leadID)
	case len(parts) == 2 && parts[1] == "conversations" && r.Method == http.MethodPost:
		h.AddNote(w, r, leadID)
	case len(parts) == 2 && parts[1] == "properties" && r.Method == http.MethodPost:
		h.AddProperty(w, r, leadID)
	case len(parts) == 3 && parts[1] == "properties" && r.Method == http.MethodDelete:
		h.RemoveProperty(w, r, leadID, parts[2])
	case len(parts) == 2 && parts[1] == "appointments" && r.Method == http.MethodPost:
		h.CreateAppointment(w, r, leadID)
	case len(parts) == 3 && parts[1] == "appointments" && r.Method == http.MethodPut:
		h.UpdateAppointmentStatus(w, r, leadID, parts[2])
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPost:
		h.SetStatus(w, r, leadID)
	case len(parts) == 3 && parts[1] == "status" && parts[2] == "progress" && r.Method == http.MethodPost:
		h.ProgressStatus(w, r, leadID)
	case len(parts) == 2 && parts[1] == "share" && r.Method == http.MethodPost:
		h.Share(w, r, leadID)
	case len(parts) == 2 && parts[1] == "reassign" && r.Method == http.MethodPost:
		h.Reassign(w, r, leadID)
	case len(parts) == 3 && parts[1] == "approvals" && r.Method == http.MethodPost:
		h.ResolveApproval(w, r, leadID, parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// SaveLead POST /crm/api/v1/leads
func (h *LeadHandler) SaveLead(w http.ResponseWriter, r *http.Request) {
	var req service.SaveLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lead, err := h.leadService.SaveLead(r.Context(), req)
	if err != nil {
		h.logger.Error("SaveLead failed", zap.Error(err))
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeOk(w, lead)
}

// ListLeads GET /crm/api/v1/leads?temperature=&status=&duplicates=&q=&page=&size=
func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := repository.LeadFilters{
		Temperature:    q.Get("temperature"),
		Status:         q.Get("status"),
		OnlyDuplicates: q.Get("duplicates") == "true",
		Query:          q.Get("q"),
	}
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))

	leads, total, err := h.leadService.ListLeads(r.Context(), filters, page, size)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOk(w, map[string]any{
		"items": leads,
		"total": total,
	})
}

// GetLead GET /crm/api/v1/leads/{id}
func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request, leadID string) {
	lead, err := h.leadService.GetLead(r.Context(), leadID)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, lead)
}

// GetSafeView GET /crm/api/v1/leads/{id}/safe-view
// 客户端展示视图：剥离分享记录/重复指针/内部字段
func (h *LeadHandler) GetSafeView(w http.ResponseWriter, r *http.Request, leadID string) {
	lead, err := h.leadService.GetLead(r.Context(), leadID)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, lead.ClientSafeView())
}

// UpdateTemperature PUT /crm/api/v1/leads/{id}/temperature
func (h *LeadHandler) UpdateTemperature(w http.ResponseWriter, r *http.Request, leadID string) {
	var body struct {
		Temperature string `json:"temperature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.leadService.UpdateTemperature(r.Context(), leadID, body.Temperature); err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, map[string]string{"lead_id": leadID, "temperature": body.Temperature})
}

// UpdateSummary PUT /crm/api/v1/leads/{id}/summary
func (h *LeadHandler) UpdateSummary(w http.ResponseWriter, r *http.Request, leadID string) {
	var body struct {
		Summary string `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.leadService.UpdateSummary(r.Context(), leadID, body.Summary); err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, map[string]string{"lead_id": leadID})
}

// AddNote POST /crm/api/v1/leads/{id}/conversations
func (h *LeadHandler) AddNote(w http.ResponseWriter, r *http.Request, leadID string) {
	var body struct {
		Channel string `json:"channel"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.leadService.AddNote(r.Context(), leadID, body.Channel, body.Content); err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, map[string]string{"lead_id": leadID})
}

// AddProperty POST /crm/api/v1/leads/{id}/properties
func (h *LeadHandler) AddProperty(w http.ResponseWriter, r *http.Request, leadID string) {
	var prop domain.SelectedProperty
	if err := json.NewDecoder(r.Body).Decode(&prop); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.leadService.AddProperty(r.Context(), leadID, prop); err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, map[string]string{"lead_id": leadID, "property_id": prop.PropertyID})
}

// RemoveProperty DELETE /crm/api/v1/leads/{id}/properties/{propertyID}
func (h *LeadHandler) RemoveProperty(w http.ResponseWriter, r *http.Request, leadID, propertyID string) {
	if err := h.leadService.RemoveProperty(r.Context(), leadID, propertyID); err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, map[string]string{"lead_id": leadID})
}

// CreateAppointment POST /crm/api/v1/leads/{id}/appointments
func (h *LeadHandler) CreateAppointment(w http.ResponseWriter, r *http.Request, leadID string) {
	var req service.CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	appt, err := h.leadService.CreateAppointment(r.Context(), leadID, req)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, appt)
}

// UpdateAppointmentStatus PUT /crm/api/v1/leads/{id}/appointments/{appointmentID}
func (h *LeadHandler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request, leadID, appointmentID string) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.leadService.UpdateAppointmentStatus(r.Context(), leadID, appointmentID, body.Status); err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, map[string]string{"appointment_id": appointmentID, "status": body.Status})
}

// SetStatus POST /crm/api/v1/leads/{id}/status
func (h *LeadHandler) SetStatus(w http.ResponseWriter, r *http.Request, leadID string) {
	var body struct {
		Status    string `json:"status"`
		Note      string `json:"note"`
		ChangedBy string `json:"changed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lead, err := h.leadService.SetStatus(r.Context(), leadID, body.Status, body.Note, body.ChangedBy)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, lead)
}

// ProgressStatus POST /crm/api/v1/leads/{id}/status/progress
func (h *LeadHandler) ProgressStatus(w http.ResponseWriter, r *http.Request, leadID string) {
	var body struct {
		ChangedBy string `json:"changed_by"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body) // body 可为空
	lead, err := h.leadService.ProgressStatus(r.Context(), leadID, body.ChangedBy)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, lead)
}

// Share POST /crm/api/v1/leads/{id}/share
func (h *LeadHandler) Share(w http.ResponseWriter, r *http.Request, leadID string) {
	var body struct {
		PartnerID string              `json:"partner_id"`
		Kind      string              `json:"kind"` // partner / developer
		Consent   domain.ShareConsent `json:"consent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var rec *domain.SharingRecord
	var err error
	if body.Kind == domain.ShareKindDeveloper {
		rec, err = h.sharingService.ShareWithDeveloper(r.Context(), leadID, body.PartnerID, body.Consent)
	} else {
		rec, err = h.sharingService.ShareWithPartner(r.Context(), leadID, body.PartnerID, body.Consent)
	}
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, rec)
}

// Reassign POST /crm/api/v1/leads/{id}/reassign
func (h *LeadHandler) Reassign(w http.ResponseWriter, r *http.Request, leadID string) {
	var body struct {
		PartnerID string              `json:"partner_id"`
		Consent   domain.ShareConsent `json:"consent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := h.sharingService.Reassign(r.Context(), leadID, body.PartnerID, body.Consent)
	if err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, rec)
}

// ResolveApproval POST /crm/api/v1/leads/{id}/approvals/{shareID}
func (h *LeadHandler) ResolveApproval(w http.ResponseWriter, r *http.Request, leadID, shareID string) {
	var body struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.sharingService.ResolveApproval(r.Context(), leadID, shareID, body.Approve); err != nil {
		writeLeadError(w, err)
		return
	}
	writeOk(w, map[string]any{"share_id": shareID, "approved": body.Approve})
}

// ExportCSV GET /crm/api/v1/leads/export/csv
func (h *LeadHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	leads, err := h.leadService.AllLeads(r.Context())
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	data := service.ExportLeadsCSV(leads)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ExportExcel GET /crm/api/v1/leads/export/excel
func (h *LeadHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	leads, err := h.leadService.AllLeads(r.Context())
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	data, err := service.ExportLeadsExcel(leads)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// writeLeadError NotFound 与业务错误分流
func writeLeadError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeFail(w, http.StatusNotFound, "lead not found")
		return
	}
	writeFail(w, http.StatusBadRequest, err.Error())
}
