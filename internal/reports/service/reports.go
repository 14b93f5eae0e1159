package service

import (
	"context"
	"sort"
	"time"

	bookingsrepo "lenspool/internal/bookings/repository"
	unitsrepo "lenspool/internal/units/repository"
	"lenspool/pkg/config"
	apperrors "lenspool/pkg/errors"
	"lenspool/pkg/model"
)

// Agents with this many late cancellations show up flagged in the
// accountability summary.
const lateCancellationFlagThreshold = 3

type AgentLateSummary struct {
	AgentID string `json:"agent_id"`
	Count   int64  `json:"count"`
	Flagged bool   `json:"flagged"`
}

type DaySchedule struct {
	Date     time.Time        `json:"date"`
	Bookings []*model.Booking `json:"bookings"`
}

type WeekSchedule struct {
	From time.Time     `json:"from"`
	To   time.Time     `json:"to"`
	Days []DaySchedule `json:"days"`
}

type ReportService interface {
	LateCancellationSummary(ctx context.Context) ([]AgentLateSummary, error)
	BookingsByStatus(ctx context.Context, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, error)
	WeekSchedule(ctx context.Context, from time.Time) (*WeekSchedule, error)
	UnitOccupancy(ctx context.Context, unitID string, day time.Time) ([]*model.Booking, error)
	UnitStates(ctx context.Context) ([]*model.CameraUnit, error)
}

type reportService struct {
	bookingRepo bookingsrepo.BookingRepository
	unitRepo    unitsrepo.UnitRepository
	cfg         *config.Config
}

func NewReportService(
	bookingRepo bookingsrepo.BookingRepository,
	unitRepo unitsrepo.UnitRepository,
	cfg *config.Config,
) ReportService {
	return &reportService{
		bookingRepo: bookingRepo,
		unitRepo:    unitRepo,
		cfg:         cfg,
	}
}

func (s *reportService) LateCancellationSummary(ctx context.Context) ([]AgentLateSummary, error) {
	counts, err := s.bookingRepo.LateCancellationCounts(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to aggregate late cancellations", "error", err)
		return nil, apperrors.Internal("Failed to build late cancellation summary", err)
	}

	summaries := make([]AgentLateSummary, 0, len(counts))
	for agentID, count := range counts {
		summaries = append(summaries, AgentLateSummary{
			AgentID: agentID,
			Count:   count,
			Flagged: count >= lateCancellationFlagThreshold,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Count != summaries[j].Count {
			return summaries[i].Count > summaries[j].Count
		}
		return summaries[i].AgentID < summaries[j].AgentID
	})
	return summaries, nil
}

func (s *reportService) BookingsByStatus(ctx context.Context, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, error) {
	switch status {
	case model.StatusPending, model.StatusApproved, model.StatusRejected,
		model.StatusCompleted, model.StatusCancelled, model.StatusWaitlisted:
	default:
		return nil, apperrors.InvalidInput("Unknown booking status: " + string(status))
	}

	bookings, err := s.bookingRepo.FindByStatus(ctx, status, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings by status", "status", status, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

// WeekSchedule lays out seven days from the given date. A booking
// appears on every day its date range touches, so multi-day holds show
// up as runs.
func (s *reportService) WeekSchedule(ctx context.Context, from time.Time) (*WeekSchedule, error) {
	start := dateOnly(from)
	end := start.AddDate(0, 0, 6)

	bookings, err := s.bookingRepo.FindInRange(ctx, start, end)
	if err != nil {
		s.cfg.Log.Error("Failed to build week schedule", "error", err)
		return nil, apperrors.Internal("Failed to build week schedule", err)
	}

	week := &WeekSchedule{
		From: start,
		To:   end,
		Days: make([]DaySchedule, 0, 7),
	}
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		entry := DaySchedule{Date: day, Bookings: []*model.Booking{}}
		for _, b := range bookings {
			if !b.Status.Blocking() {
				continue
			}
			if touchesDay(b, day) {
				entry.Bookings = append(entry.Bookings, b)
			}
		}
		week.Days = append(week.Days, entry)
	}
	return week, nil
}

func (s *reportService) UnitOccupancy(ctx context.Context, unitID string, day time.Time) ([]*model.Booking, error) {
	if !s.cfg.KnownUnit(unitID) {
		return nil, apperrors.InvalidInput("Unknown camera unit: " + unitID)
	}

	start := dateOnly(day)
	occupied, err := s.bookingRepo.FindBlockingByUnit(ctx, unitID, start, start)
	if err != nil {
		s.cfg.Log.Error("Failed to build unit occupancy", "unit_id", unitID, "error", err)
		return nil, apperrors.Internal("Failed to build unit occupancy", err)
	}
	return occupied, nil
}

func (s *reportService) UnitStates(ctx context.Context) ([]*model.CameraUnit, error) {
	units, err := s.unitRepo.FindAll(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list camera units", "error", err)
		return nil, apperrors.Internal("Failed to retrieve camera units", err)
	}
	return units, nil
}

func touchesDay(b *model.Booking, day time.Time) bool {
	return !dateOnly(b.StartDate).After(day) && !dateOnly(b.EndDate).Before(day)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
