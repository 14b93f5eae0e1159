package service

import (
	"context"
	"errors"

	bookingserrors "lenspool/internal/bookings/errors"
	apperrors "lenspool/pkg/errors"
	"lenspool/pkg/model"
)

// ListOverdue derives overdue status at read time. Nothing is stored:
// a booking is overdue the instant its committed end passes while the
// unit is still out, and stops being listed the moment the return is
// confirmed.
func (s *custodyService) ListOverdue(ctx context.Context) ([]*model.Booking, error) {
	inCustody, err := s.bookingRepo.FindInCustody(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list in-custody bookings", "error", err)
		return nil, apperrors.Internal("Failed to list overdue bookings", err)
	}

	now := s.now()
	var overdue []*model.Booking
	for _, b := range inCustody {
		if b.Overdue(now) {
			overdue = append(overdue, b)
		}
	}
	return overdue, nil
}

func (s *custodyService) ListInCustody(ctx context.Context) ([]*model.Booking, error) {
	inCustody, err := s.bookingRepo.FindInCustody(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list in-custody bookings", "error", err)
		return nil, apperrors.Internal("Failed to list in-custody bookings", err)
	}
	return inCustody, nil
}

func translateLookupError(id string, err error) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	return apperrors.Internal("Failed to retrieve booking", err)
}
