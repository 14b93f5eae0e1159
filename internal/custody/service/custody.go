package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingsrepo "lenspool/internal/bookings/repository"
	"lenspool/internal/calendar"
	"lenspool/internal/notify"
	unitsrepo "lenspool/internal/units/repository"
	"lenspool/pkg/config"
	apperrors "lenspool/pkg/errors"
	"lenspool/pkg/model"
	"lenspool/pkg/sanitizer"
)

// CustodyService tracks the physical possession of a camera unit. A
// custody change is gated on the full condition checklist and applied
// all-or-nothing: booking and unit move together in one transaction,
// or not at all.
type CustodyService interface {
	ConfirmPickup(ctx context.Context, bookingID string, agentID string, report model.ConditionReport) error
	ConfirmReturn(ctx context.Context, bookingID string, agentID string, report model.ConditionReport) error
	ListOverdue(ctx context.Context) ([]*model.Booking, error)
	ListInCustody(ctx context.Context) ([]*model.Booking, error)
}

type custodyService struct {
	bookingRepo bookingsrepo.BookingRepository
	lockRepo    bookingsrepo.UnitLockRepository
	unitRepo    unitsrepo.UnitRepository
	dispatcher  notify.Dispatcher
	calendar    calendar.Sync
	cfg         *config.Config
	now         func() time.Time
}

func NewCustodyService(
	bookingRepo bookingsrepo.BookingRepository,
	lockRepo bookingsrepo.UnitLockRepository,
	unitRepo unitsrepo.UnitRepository,
	dispatcher notify.Dispatcher,
	calendarSync calendar.Sync,
	cfg *config.Config,
) CustodyService {
	return &custodyService{
		bookingRepo: bookingRepo,
		lockRepo:    lockRepo,
		unitRepo:    unitRepo,
		dispatcher:  dispatcher,
		calendar:    calendarSync,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *custodyService) ConfirmPickup(ctx context.Context, bookingID string, agentID string, report model.ConditionReport) error {
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := pickupReady(booking); err != nil {
		return err
	}
	if err := checklistComplete(report.Checklist); err != nil {
		return err
	}

	if err := s.acquireUnitLock(ctx, booking.UnitID); err != nil {
		return err
	}
	defer s.releaseUnitLock(ctx, booking.UnitID)

	report.Note = sanitizer.SanitizeFreeText(report.Note)
	report.EarlyReturn = false

	err = s.bookingRepo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.findBooking(sessCtx, bookingID)
		if err != nil {
			return err
		}
		if err := pickupReady(current); err != nil {
			return err
		}

		now := s.now()
		current.PickupConfirmedAt = &now
		current.PickupCondition = &report

		if _, err := s.bookingRepo.Update(sessCtx, bookingID, current); err != nil {
			return apperrors.Internal("Failed to confirm pickup", err)
		}
		if err := s.unitRepo.SetOccupied(sessCtx, current.UnitID, bookingID); err != nil {
			return apperrors.Internal("Failed to mark camera unit occupied", err)
		}
		booking = current
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to confirm pickup", "id", bookingID, "error", err)
		return err
	}

	s.cfg.Log.Info("Pickup confirmed",
		"id", bookingID,
		"unit_id", booking.UnitID,
		"agent_id", agentID,
	)

	s.dispatcher.Dispatch(ctx, notify.NewEvent(notify.EventPickupConfirmed, booking))
	return nil
}

func (s *custodyService) ConfirmReturn(ctx context.Context, bookingID string, agentID string, report model.ConditionReport) error {
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	if err := returnReady(booking); err != nil {
		return err
	}
	if err := checklistComplete(report.Checklist); err != nil {
		return err
	}

	if err := s.acquireUnitLock(ctx, booking.UnitID); err != nil {
		return err
	}
	defer s.releaseUnitLock(ctx, booking.UnitID)

	report.Note = sanitizer.SanitizeFreeText(report.Note)

	var early bool
	err = s.bookingRepo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.findBooking(sessCtx, bookingID)
		if err != nil {
			return err
		}
		if err := returnReady(current); err != nil {
			return err
		}

		now := s.now()
		early = now.Before(current.CommittedEnd())
		report.EarlyReturn = early

		current.ReturnConfirmedAt = &now
		current.ReturnCondition = &report
		current.Status = model.StatusCompleted

		if _, err := s.bookingRepo.Update(sessCtx, bookingID, current); err != nil {
			return apperrors.Internal("Failed to confirm return", err)
		}
		if err := s.unitRepo.Release(sessCtx, current.UnitID); err != nil {
			return apperrors.Internal("Failed to release camera unit", err)
		}
		booking = current
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to confirm return", "id", bookingID, "error", err)
		return err
	}

	if calErr := s.calendar.CompleteCustodyEvents(ctx, booking, agentID, booking.ApproverID); calErr != nil {
		s.cfg.Log.Warn("Calendar completion failed after return", "id", bookingID, "error", calErr)
	}

	s.cfg.Log.Info("Return confirmed",
		"id", bookingID,
		"unit_id", booking.UnitID,
		"agent_id", agentID,
		"early_return", early,
	)

	s.dispatcher.Dispatch(ctx, notify.NewEvent(notify.EventReturnConfirmed, booking))
	if early {
		s.dispatcher.Dispatch(ctx, notify.NewEvent(notify.EventEarlyReturn, booking))
	}
	return nil
}

func (s *custodyService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, translateLookupError(id, err)
	}
	return booking, nil
}

func (s *custodyService) acquireUnitLock(ctx context.Context, unitID string) error {
	_, err := s.lockRepo.Acquire(ctx, unitID, s.cfg.UnitLockTTL)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("This unit is currently being booked by another request. Please try again.")
		}
		return apperrors.Internal("Failed to acquire unit lock", err)
	}
	return nil
}

func (s *custodyService) releaseUnitLock(ctx context.Context, unitID string) {
	if err := s.lockRepo.Release(ctx, unitID); err != nil {
		s.cfg.Log.Warn("Failed to release unit lock", "unit_id", unitID, "error", err)
	}
}

func pickupReady(b *model.Booking) error {
	if b.Status != model.StatusApproved {
		return apperrors.StateConflict("Only approved bookings can be picked up", string(b.Status))
	}
	if b.PickupConfirmedAt != nil {
		return apperrors.StateConflict("Pickup has already been confirmed for this booking", string(b.Status))
	}
	return nil
}

func returnReady(b *model.Booking) error {
	if b.Status != model.StatusApproved {
		return apperrors.StateConflict("Only approved bookings can be returned", string(b.Status))
	}
	if !b.InCustody() {
		return apperrors.StateConflict("Unit is not in custody for this booking", string(b.Status))
	}
	return nil
}

// checklistComplete refuses a partial inspection. The missing items go
// into the error details so the agent sees exactly what to recheck.
func checklistComplete(checklist model.ConditionChecklist) error {
	if checklist.Complete() {
		return nil
	}
	return apperrors.Validation("Condition checklist is incomplete", map[string]any{
		"missing_items": checklist.MissingItems(),
	})
}
