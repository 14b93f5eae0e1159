package handler

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"lenspool/internal/reports/service"
	apperrors "lenspool/pkg/errors"
	httputil "lenspool/pkg/http"
	"lenspool/pkg/logger"
	"lenspool/pkg/model"
)

type ReportHandler struct {
	service service.ReportService
	log     *logger.Logger
}

func NewReportHandler(service service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		log:     log,
	}
}

func (h *ReportHandler) LateCancellations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	summaries, err := h.service.LateCancellationSummary(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "LateCancellations", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, summaries); err != nil {
		h.log.Error("failed to write success response", "handler", "LateCancellations", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReportHandler) ByStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := r.URL.Query().Get("status")
	if status == "" {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("'status' query parameter is required")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ByStatus", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ByStatus", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	bookings, err := h.service.BookingsByStatus(r.Context(), model.BookingStatus(status), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ByStatus", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", "ByStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReportHandler) WeekSchedule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	from := time.Now().UTC()
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			if writeErr := httputil.WriteError(w, apperrors.InvalidInput("invalid 'from' date, must be YYYY-MM-DD")); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "WeekSchedule", "operation", "WriteError", "error", writeErr)
			}
			return
		}
		from = parsed
	}

	week, err := h.service.WeekSchedule(r.Context(), from)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "WeekSchedule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, week); err != nil {
		h.log.Error("failed to write success response", "handler", "WeekSchedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReportHandler) UnitOccupancy(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	unitID := ps.ByName("id")

	day := time.Now().UTC()
	if dayStr := r.URL.Query().Get("date"); dayStr != "" {
		parsed, err := time.Parse("2006-01-02", dayStr)
		if err != nil {
			if writeErr := httputil.WriteError(w, apperrors.InvalidInput("invalid 'date', must be YYYY-MM-DD")); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "UnitOccupancy", "operation", "WriteError", "error", writeErr)
			}
			return
		}
		day = parsed
	}

	occupied, err := h.service.UnitOccupancy(r.Context(), unitID, day)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "UnitOccupancy", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, occupied); err != nil {
		h.log.Error("failed to write success response", "handler", "UnitOccupancy", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReportHandler) UnitStates(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	units, err := h.service.UnitStates(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "UnitStates", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, units); err != nil {
		h.log.Error("failed to write success response", "handler", "UnitStates", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReportHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/reports/late-cancellations", h.LateCancellations)
	router.GET("/api/v1/reports/bookings", h.ByStatus)
	router.GET("/api/v1/reports/schedule", h.WeekSchedule)
	router.GET("/api/v1/reports/units", h.UnitStates)
	router.GET("/api/v1/reports/units/id/:id/occupancy", h.UnitOccupancy)
}
