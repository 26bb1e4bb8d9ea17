package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"estate-leads/internal/domain"
	"estate-leads/internal/repository"

	"go.uber.org/zap"
)

// PartnerHandler 合作方管理 Handler
type PartnerHandler struct {
	partnersRepo repository.PartnersRepo
	logger       *zap.Logger
}

// NewPartnerHandler 创建合作方管理 Handler
func NewPartnerHandler(partnersRepo repository.PartnersRepo, logger *zap.Logger) *PartnerHandler {
	return &PartnerHandler{
		partnersRepo: partnersRepo,
		logger:       logger,
	}
}

const partnersPrefix = "/crm/api/v1/partners"

// ServeHTTP 实现 http.Handler 接口
func (h *PartnerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == partnersPrefix && r.Method == http.MethodGet:
		h.ListPartners(w, r)
	case path == partnersPrefix && r.Method == http.MethodPost:
		h.CreatePartner(w, r)
	default:
		rest := strings.TrimPrefix(path, partnersPrefix+"/")
		if rest == "" || rest == path {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			h.GetPartner(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "revenue" && r.Method == http.MethodPost:
			h.AddRevenue(w, r, parts[0])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

// CreatePartner POST /crm/api/v1/partners
func (h *PartnerHandler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name              string  `json:"name"`
		Type              string  `json:"type"`
		DefaultCommission float64 `json:"default_commission"`
		Capacity          int     `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeFail(w, http.StatusBadRequest, "name is required")
		return
	}
	if body.Type == "" {
		body.Type = domain.PartnerTypeBroker
	}
	if !domain.ValidPartnerType(body.Type) {
		writeFail(w, http.StatusBadRequest, "invalid partner type")
		return
	}

	partner := &domain.Partner{
		Name:              strings.TrimSpace(body.Name),
		Type:              body.Type,
		DefaultCommission: body.DefaultCommission,
		Capacity:          body.Capacity,
	}
	if err := h.partnersRepo.CreatePartner(r.Context(), partner); err != nil {
		h.logger.Error("CreatePartner failed", zap.Error(err))
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOk(w, partner)
}

// ListPartners GET /crm/api/v1/partners
func (h *PartnerHandler) ListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.partnersRepo.ListPartners(r.Context())
	if err != nil {
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOk(w, map[string]any{"items": partners, "total": len(partners)})
}

// GetPartner GET /crm/api/v1/partners/{id}
func (h *PartnerHandler) GetPartner(w http.ResponseWriter, r *http.Request, partnerID string) {
	partner, err := h.partnersRepo.GetPartner(r.Context(), partnerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeFail(w, http.StatusNotFound, "partner not found")
			return
		}
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOk(w, partner)
}

// AddRevenue POST /crm/api/v1/partners/{id}/revenue
func (h *PartnerHandler) AddRevenue(w http.ResponseWriter, r *http.Request, partnerID string) {
	var entry domain.RevenueEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.partnersRepo.AddRevenue(r.Context(), partnerID, entry); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeFail(w, http.StatusNotFound, "partner not found")
			return
		}
		writeFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOk(w, map[string]string{"partner_id": partnerID})
}
