package service

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"lenspool/internal/notify"
	apperrors "lenspool/pkg/errors"
	"lenspool/pkg/model"
)

// CreateWaitlisted admits a booking onto the waitlist for a contested
// window. The whole decision runs under the unit lock: the conflict
// must still exist (otherwise the caller should book normally), and
// the per-slot cap is counted and enforced before the insert, so two
// racing waitlist requests cannot both squeeze in.
func (s *bookingService) CreateWaitlisted(ctx context.Context, booking *model.Booking) error {
	s.applyDefaults(booking)
	s.sanitize(booking)
	if err := s.validate(booking); err != nil {
		return err
	}

	if err := s.checkUnitBookable(ctx, booking.UnitID); err != nil {
		return err
	}

	if err := s.acquireUnitLock(ctx, booking.UnitID); err != nil {
		return err
	}
	defer s.releaseUnitLock(ctx, booking.UnitID)

	var holder *model.Booking

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		conflicts, err := s.availability.ConflictingBookings(sessCtx, booking.UnitID, booking.Window(), "")
		if err != nil {
			return err
		}

		holder = firstNonWaitlisted(conflicts)
		if holder == nil {
			return apperrors.Conflict("Window is no longer contested; request the booking directly")
		}

		queued, err := s.repo.CountWaitlistedFor(sessCtx, holder.ID)
		if err != nil {
			return apperrors.Internal("Failed to count waitlisted bookings", err)
		}
		if queued >= int64(s.cfg.WaitlistCapPerSlot) {
			return apperrors.Conflict("Waitlist for this window is full").WithDetails(map[string]any{
				"conflicting_booking_id": holder.ID,
				"waitlist_cap":           s.cfg.WaitlistCapPerSlot,
			})
		}

		booking.Status = model.StatusWaitlisted
		booking.WaitlistForBookingID = holder.ID

		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create waitlisted booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to waitlist booking",
			"unit_id", booking.UnitID,
			"agent_id", booking.AgentID,
			"error", err,
		)
		return err
	}

	s.cfg.Log.Info("Booking waitlisted",
		"id", booking.ID,
		"unit_id", booking.UnitID,
		"agent_id", booking.AgentID,
		"waitlist_for_booking_id", booking.WaitlistForBookingID,
	)

	event := notify.NewEvent(notify.EventWaitlistRequested, booking).
		WithExtra("holder_booking_id", holder.ID).
		WithExtra("holder_agent_id", holder.AgentID)
	s.dispatcher.Dispatch(ctx, event)
	return nil
}

// firstNonWaitlisted picks the booking actually holding the window.
// Waitlisted entries are queued, not holding, so they never anchor a
// new waitlist.
func firstNonWaitlisted(conflicts []*model.Booking) *model.Booking {
	for _, c := range conflicts {
		if c.Status != model.StatusWaitlisted {
			return c
		}
	}
	return nil
}
