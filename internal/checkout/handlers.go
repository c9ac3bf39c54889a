package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// MaxLines caps the number of lines accepted in one checkout request.
const MaxLines = 1000

type Handler struct {
	Svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	common.Message(w, http.StatusOK, "API is running")
}

// CheckHealth handles GET /checkout/checkhealth.
func (h *Handler) CheckHealth(w http.ResponseWriter, _ *http.Request) {
	common.Message(w, http.StatusOK, "Checkout Route is working")
}

// Checkout handles POST /checkout/ with a JSON array of lines.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var lines []pricing.Line
	if err := decodeLines(r.Body, &lines); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validator().Var(lines, fmt.Sprintf("max=%d", MaxLines)); err != nil {
		common.WriteError(w, common.BadRequest("lines", fmt.Sprintf("at most %d lines are accepted", MaxLines), err))
		return
	}
	out, err := h.Svc.Checkout(r.Context(), lines)
	if err != nil {
		common.WriteError(w, toAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, out)
}

func (h *Handler) validator() *validator.Validate {
	if h.validate == nil {
		h.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return h.validate
}

func toAppError(err error) error {
	var cerr *Error
	if !errors.As(err, &cerr) {
		return err
	}
	details := map[string]any{"line": cerr.Index, "code": cerr.Code}
	switch cerr.Kind {
	case KindInvalidInput:
		var inputErr *pricing.InputError
		message := "invalid checkout line"
		if errors.As(err, &inputErr) {
			details["field"] = inputErr.Field
			message = inputErr.Reason
		}
		appErr := common.NewAppError("INVALID_INPUT", message, http.StatusBadRequest, err)
		appErr.Details = details
		return appErr
	default:
		appErr := common.NewAppError("CATALOG_UNAVAILABLE", "catalog is unavailable", http.StatusServiceUnavailable, err)
		appErr.Details = details
		return appErr
	}
}

// decodeLines reads exactly one JSON value; anything after it is rejected.
func decodeLines(body io.Reader, lines *[]pricing.Line) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(lines); err != nil {
		return err
	}
	var extra json.RawMessage
	switch err := dec.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	default:
		return errTrailingData
	}
}

var errTrailingData = errors.New("checkout: unexpected data after request body")
