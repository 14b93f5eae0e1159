package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"lenspool/internal/custody/service"
	httputil "lenspool/pkg/http"
	"lenspool/pkg/logger"
	"lenspool/pkg/model"
)

type CustodyHandler struct {
	service service.CustodyService
	log     *logger.Logger
}

func NewCustodyHandler(service service.CustodyService, log *logger.Logger) *CustodyHandler {
	return &CustodyHandler{
		service: service,
		log:     log,
	}
}

func (h *CustodyHandler) ConfirmPickup(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var report model.ConditionReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "ConfirmPickup", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.ConfirmPickup(r.Context(), id, httputil.AgentID(r), report); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ConfirmPickup", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *CustodyHandler) ConfirmReturn(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var report model.ConditionReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "ConfirmReturn", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.ConfirmReturn(r.Context(), id, httputil.AgentID(r), report); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ConfirmReturn", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *CustodyHandler) ListOverdue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	overdue, err := h.service.ListOverdue(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListOverdue", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, overdue); err != nil {
		h.log.Error("failed to write success response", "handler", "ListOverdue", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CustodyHandler) ListInCustody(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	inCustody, err := h.service.ListInCustody(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListInCustody", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, inCustody); err != nil {
		h.log.Error("failed to write success response", "handler", "ListInCustody", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CustodyHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/custody/bookings/:id/pickup", h.ConfirmPickup)
	router.POST("/api/v1/custody/bookings/:id/return", h.ConfirmReturn)
	router.GET("/api/v1/custody/overdue", h.ListOverdue)
	router.GET("/api/v1/custody/active", h.ListInCustody)
}
