package catalog

import (
	"errors"
	"net/http"

	"github.com/noah-isme/toko-checkout/internal/common"
)

// Handler exposes catalog listing endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Prices handles GET /checkout/prices.
func (h *Handler) Prices(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Prices(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, rows)
}

// Offers handles GET /checkout/offers.
func (h *Handler) Offers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Offers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, rows)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotConfigured) {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.WriteError(w, common.NewAppError("CATALOG_UNAVAILABLE", "catalog is unavailable", http.StatusServiceUnavailable, err))
}
