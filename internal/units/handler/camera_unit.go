package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"lenspool/internal/units/service"
	httputil "lenspool/pkg/http"
	"lenspool/pkg/logger"
)

type UnitHandler struct {
	service service.UnitService
	log     *logger.Logger
}

func NewUnitHandler(service service.UnitService, log *logger.Logger) *UnitHandler {
	return &UnitHandler{
		service: service,
		log:     log,
	}
}

type maintenanceRequest struct {
	Notes string `json:"notes,omitempty"`
}

func (h *UnitHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	units, err := h.service.GetAll(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, units); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAll", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UnitHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	unit, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, unit); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UnitHandler) SetMaintenance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req maintenanceRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
				Error: "Invalid request body",
			}); writeErr != nil {
				h.log.Error("failed to write JSON response", "handler", "SetMaintenance", "operation", "WriteJSON", "error", writeErr)
			}
			return
		}
	}

	if err := h.service.SetMaintenance(r.Context(), id, req.Notes); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "SetMaintenance", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *UnitHandler) ClearMaintenance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := h.service.ClearMaintenance(r.Context(), id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ClearMaintenance", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *UnitHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/units", h.GetAll)
	router.GET("/api/v1/units/id/:id", h.GetByID)
	router.POST("/api/v1/units/id/:id/maintenance", h.SetMaintenance)
	router.DELETE("/api/v1/units/id/:id/maintenance", h.ClearMaintenance)
}
