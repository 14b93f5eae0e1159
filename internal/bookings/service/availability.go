package service

import (
	"context"
	"time"

	"lenspool/internal/bookings/repository"
	apperrors "lenspool/pkg/errors"
	"lenspool/pkg/model"
)

// AvailabilityEngine answers whether a window on a unit is free. It is
// always consulted inside the unit lock so the answer stays true until
// the surrounding transaction commits.
type AvailabilityEngine interface {
	ConflictingBookings(ctx context.Context, unitID string, w model.Window, excludeBookingID string) ([]*model.Booking, error)
	HasConflict(ctx context.Context, unitID string, w model.Window, excludeBookingID string) (bool, error)
}

type availabilityEngine struct {
	repo repository.BookingRepository
}

func NewAvailabilityEngine(repo repository.BookingRepository) AvailabilityEngine {
	return &availabilityEngine{repo: repo}
}

// ConflictingBookings returns the bookings whose window collides with
// the requested one, ordered by start. The store query narrows by
// inclusive date intersection; the time-of-day rule is applied here.
func (e *availabilityEngine) ConflictingBookings(ctx context.Context, unitID string, w model.Window, excludeBookingID string) ([]*model.Booking, error) {
	candidates, err := e.repo.FindBlockingByUnit(ctx, unitID, w.StartDate, w.EndDate)
	if err != nil {
		return nil, apperrors.Internal("Failed to check unit availability", err)
	}

	var conflicts []*model.Booking
	for _, b := range candidates {
		if b.ID == excludeBookingID {
			continue
		}
		if windowsConflict(w, b.Window()) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

// HasConflict is the yes/no form, for callers that do not need the
// holder's details.
func (e *availabilityEngine) HasConflict(ctx context.Context, unitID string, w model.Window, excludeBookingID string) (bool, error) {
	conflicts, err := e.ConflictingBookings(ctx, unitID, w, excludeBookingID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// windowsConflict decides whether two booking windows collide.
//
// Date ranges intersect inclusively: sharing a single calendar day is
// already a candidate collision. When both windows collapse to that
// same single day, the HH:MM bounds narrow the decision and touching
// boundaries (one ends 11:00, the next starts 11:00) do not collide.
// If either window spans multiple days the whole shared day is
// occupied, whatever the times say.
func windowsConflict(a, b model.Window) bool {
	if dateOnly(a.StartDate).After(dateOnly(b.EndDate)) || dateOnly(b.StartDate).After(dateOnly(a.EndDate)) {
		return false
	}

	if a.SingleDay() && b.SingleDay() {
		// Dates already intersect, so both sit on the same day.
		// HH:MM strings compare correctly as text.
		return a.StartTime < b.EndTime && b.StartTime < a.EndTime
	}

	return true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
