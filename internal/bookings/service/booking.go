package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"lenspool/internal/bookings/repository"
	"lenspool/internal/bookings/validator"
	"lenspool/internal/calendar"
	"lenspool/internal/notify"
	unitsrepo "lenspool/internal/units/repository"
	"lenspool/pkg/config"
	apperrors "lenspool/pkg/errors"
	"lenspool/pkg/model"
	"lenspool/pkg/sanitizer"

	bookingserrors "lenspool/internal/bookings/errors"
)

type BookingService interface {
	Create(ctx context.Context, booking *model.Booking) error
	CreateWaitlisted(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
	GetByAgent(ctx context.Context, agentID string, limit int, offset int64) ([]*model.Booking, error)
	CheckAvailability(ctx context.Context, unitID string, w model.Window) (bool, error)
	Approve(ctx context.Context, id string, approverID string, note string) error
	Reject(ctx context.Context, id string, approverID string, reason string) error
	Reschedule(ctx context.Context, id string, agentID string, newWindow model.Window) error
	Cancel(ctx context.Context, id string, agentID string) error
	ForceComplete(ctx context.Context, id string, adminID string, note string) error
	SetHandoff(ctx context.Context, id string, agentID string, handoffAgentID string, location string) error
}

type bookingService struct {
	repo         repository.BookingRepository
	lockRepo     repository.UnitLockRepository
	unitRepo     unitsrepo.UnitRepository
	availability AvailabilityEngine
	validator    *validator.BookingValidator
	dispatcher   notify.Dispatcher
	calendar     calendar.Sync
	cfg          *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.UnitLockRepository,
	unitRepo unitsrepo.UnitRepository,
	availability AvailabilityEngine,
	validator *validator.BookingValidator,
	dispatcher notify.Dispatcher,
	calendarSync calendar.Sync,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:         repo,
		lockRepo:     lockRepo,
		unitRepo:     unitRepo,
		availability: availability,
		validator:    validator,
		dispatcher:   dispatcher,
		calendar:     calendarSync,
		cfg:          cfg,
	}
}

// Create admits a new booking request. Admission is atomic: the unit
// lock is held while the conflict check and the insert run in one
// transaction, so two agents racing for the same window cannot both
// win. A conflicting window is refused with the holder's details so
// the caller can offer the waitlist.
func (s *bookingService) Create(ctx context.Context, booking *model.Booking) error {
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

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		conflicts, err := s.availability.ConflictingBookings(sessCtx, booking.UnitID, booking.Window(), "")
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return s.conflictError(conflicts[0])
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking",
			"unit_id", booking.UnitID,
			"agent_id", booking.AgentID,
			"error", err,
		)
		return err
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"unit_id", booking.UnitID,
		"agent_id", booking.AgentID,
		"is_urgent", booking.IsUrgent,
	)

	s.dispatcher.Dispatch(ctx, notify.NewEvent(notify.EventBookingRequested, booking))
	if booking.IsUrgent {
		s.dispatcher.Dispatch(ctx, notify.NewEvent(notify.EventUrgentRequest, booking))
	}
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) GetByAgent(ctx context.Context, agentID string, limit int, offset int64) ([]*model.Booking, error) {
	if agentID == "" {
		return nil, apperrors.InvalidInput("Agent ID cannot be empty")
	}

	bookings, err := s.repo.FindByAgent(ctx, agentID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list agent bookings", "agent_id", agentID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

// CheckAvailability answers whether a window on a unit is currently
// free. Purely advisory: the answer can go stale the moment it is
// returned, and Create re-checks under the unit lock regardless.
func (s *bookingService) CheckAvailability(ctx context.Context, unitID string, w model.Window) (bool, error) {
	if err := s.validator.ValidateWindow(w); err != nil {
		return false, apperrors.Validation("Invalid booking window", map[string]any{"error": err.Error()})
	}

	if err := s.checkUnitBookable(ctx, unitID); err != nil {
		return false, err
	}

	hasConflict, err := s.availability.HasConflict(ctx, unitID, w, "")
	if err != nil {
		return false, err
	}
	return !hasConflict, nil
}

// Approve moves a pending or waitlisted booking to approved. The
// window is re-validated under the unit lock: the world may have
// changed since the request was admitted. Waitlisted bookings queued
// behind other requests never block an approval.
func (s *bookingService) Approve(ctx context.Context, id string, approverID string, note string) error {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if booking.Status != model.StatusPending && booking.Status != model.StatusWaitlisted {
		return apperrors.StateConflict("Only pending or waitlisted bookings can be approved", string(booking.Status))
	}

	if err := s.checkUnitBookable(ctx, booking.UnitID); err != nil {
		return err
	}

	if err := s.acquireUnitLock(ctx, booking.UnitID); err != nil {
		return err
	}
	defer s.releaseUnitLock(ctx, booking.UnitID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.GetByID(sessCtx, id)
		if err != nil {
			return err
		}
		if current.Status != model.StatusPending && current.Status != model.StatusWaitlisted {
			return apperrors.StateConflict("Only pending or waitlisted bookings can be approved", string(current.Status))
		}

		conflicts, err := s.availability.ConflictingBookings(sessCtx, current.UnitID, current.Window(), current.ID)
		if err != nil {
			return err
		}
		for _, c := range conflicts {
			if c.Status == model.StatusWaitlisted {
				continue
			}
			return s.conflictError(c)
		}

		current.Status = model.StatusApproved
		current.ApproverID = approverID
		current.WaitlistForBookingID = ""
		if note != "" {
			current.AdminNotes = sanitizer.SanitizeFreeText(note)
		}

		if _, err := s.repo.Update(sessCtx, id, current); err != nil {
			return apperrors.Internal("Failed to approve booking", err)
		}
		booking = current
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to approve booking", "id", id, "error", err)
		return err
	}

	s.syncCalendarCreate(ctx, booking, approverID)

	s.cfg.Log.Info("Booking approved", "id", id, "approver_id", approverID)
	s.dispatcher.Dispatch(ctx, notify.NewEvent(notify.EventBookingApproved, booking).WithAdminNote(note))
	return nil
}

// Reject refuses a pending or waitlisted booking. A reason is
// mandatory: agents must never see a bare rejection.
func (s *bookingService) Reject(ctx context.Context, id string, approverID string, reason string) error {
	if reason == "" {
		return apperrors.InvalidInput("Rejection reason cannot be empty")
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if booking.Status != model.StatusPending && booking.Status != model.StatusWaitlisted {
		return apperrors.StateConflict("Only pending or waitlisted bookings can be rejected", string(booking.Status))
	}

	if err := s.acquireUnitLock(ctx, booking.UnitID); err != nil {
		return err
	}
	defer s.releaseUnitLock(ctx, booking.UnitID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.GetByID(sessCtx, id)
		if err != nil {
			return err
		}
		if current.Status != model.StatusPending && current.Status != model.StatusWaitlisted {
			return apperrors.StateConflict("Only pending or waitlisted bookings can be rejected", string(current.Status))
		}

		current.Status = model.StatusRejected
		current.ApproverID = approverID
		current.AdminNotes = sanitizer.SanitizeFreeText(reason)
		current.WaitlistForBookingID = ""

		if _, err := s.repo.Update(sessCtx, id, current); err != nil {
			return apperrors.Internal("Failed to reject booking", err)
		}
		booking = current
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reject booking", "id", id, "error", err)
		return err
	}

	s.syncCalendarDelete(ctx, booking, approverID)

	s.cfg.Log.Info("Booking rejected", "id", id, "approver_id", approverID)
	s.dispatcher.Dispatch(ctx, notify.NewEvent(notify.EventBookingRejected, booking).WithAdminNote(reason))
	return nil
}

// Reschedule moves a booking to a new window before pickup. The new
// window goes through the same admission gate as a fresh request,
// excluding the booking itself from the conflict scan.
func (s *bookingService) Reschedule(ctx context.Context, id string, agentID string, newWindow model.Window) error {
	if err := s.validator.ValidateWindow(newWindow); err != nil {
		s.cfg.Log.Warn("Reschedule window validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid booking window", map[string]any{"error": err.Error()})
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.reschedulable(booking); err != nil {
		return err
	}

	if err := s.acquireUnitLock(ctx, booking.UnitID); err != nil {
		return err
	}
	defer s.releaseUnitLock(ctx, booking.UnitID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.GetByID(sessCtx, id)
		if err != nil {
			return err
		}
		if err := s.reschedulable(current); err != nil {
			return err
		}

		conflicts, err := s.availability.ConflictingBookings(sessCtx, current.UnitID, newWindow, current.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return s.conflictError(conflicts[0])
		}

		current.SetWindow(newWindow)
		if _, err := s.repo.Update(sessCtx, id, current); err != nil {
			return apperrors.Internal("Failed to reschedule booking", err)
		}
		booking = current
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reschedule booking", "id", id, "error", err)
		return err
	}

	if len(booking.CalendarEventRefs) > 0 {
		if calErr := s.calendar.UpdateCustodyEvents(ctx, booking, agentID, booking.ApproverID, newWindow, ""); calErr != nil {
			s.cfg.Log.Warn("Calendar update failed after reschedule", "id", id, "error", calErr)
		}
	}

	s.cfg.Log.Info("Booking rescheduled", "id", id, "agent_id", agentID)
	s.dispatcher.Dispatch(ctx, notify.NewEvent(notify.EventBookingRescheduled, booking))
	return nil
}

// Cancel withdraws a pending or approved booking before pickup. An
// approved booking cancelled inside the grace window before its
// committed end of use is stamped as a late cancellation for the
// accountability report. Waitlisted entries leave the queue through
// approval or rejection, never through cancellation.
func (s *bookingService) Cancel(ctx context.Context, id string, agentID string) error {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.cancellable(booking); err != nil {
		return err
	}

	if err := s.acquireUnitLock(ctx, booking.UnitID); err != nil {
		return err
	}
	defer s.releaseUnitLock(ctx, booking.UnitID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.GetByID(sessCtx, id)
		if err != nil {
			return err
		}
		if err := s.cancellable(current); err != nil {
			return err
		}

		now := time.Now().UTC()
		wasApproved := current.Status == model.StatusApproved

		current.Status = model.StatusCancelled
		current.CancelledAt = &now
		current.IsLateCancellation = wasApproved && current.LateCancellation(now, s.cfg.LateCancelWindow)

		if _, err := s.repo.Update(sessCtx, id, current); err != nil {
			return apperrors.Internal("Failed to cancel booking", err)
		}
		booking = current
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel booking", "id", id, "error", err)
		return err
	}

	s.syncCalendarDelete(ctx, booking, agentID)

	s.cfg.Log.Info("Booking cancelled",
		"id", id,
		"agent_id", agentID,
		"is_late_cancellation", booking.IsLateCancellation,
	)

	event := notify.NewEvent(notify.EventBookingCancelled, booking)
	if booking.IsLateCancellation {
		event = event.WithExtra("late_cancellation", true)
	}
	s.dispatcher.Dispatch(ctx, event)

	s.notifyWaitlisted(ctx, booking)
	return nil
}

// ForceComplete lets an admin close an approved booking whose return
// was never confirmed through the normal custody flow.
func (s *bookingService) ForceComplete(ctx context.Context, id string, adminID string, note string) error {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if booking.Status != model.StatusApproved {
		return apperrors.StateConflict("Only approved bookings can be force-completed", string(booking.Status))
	}

	if err := s.acquireUnitLock(ctx, booking.UnitID); err != nil {
		return err
	}
	defer s.releaseUnitLock(ctx, booking.UnitID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.GetByID(sessCtx, id)
		if err != nil {
			return err
		}
		if current.Status != model.StatusApproved {
			return apperrors.StateConflict("Only approved bookings can be force-completed", string(current.Status))
		}

		wasInCustody := current.InCustody()
		current.Status = model.StatusCompleted
		if note != "" {
			current.AdminNotes = sanitizer.SanitizeFreeText(note)
		}
		if _, err := s.repo.Update(sessCtx, id, current); err != nil {
			return apperrors.Internal("Failed to force-complete booking", err)
		}

		if wasInCustody {
			if err := s.unitRepo.Release(sessCtx, current.UnitID); err != nil {
				return apperrors.Internal("Failed to release camera unit", err)
			}
		}
		booking = current
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to force-complete booking", "id", id, "error", err)
		return err
	}

	if calErr := s.calendar.CompleteCustodyEvents(ctx, booking, booking.AgentID, adminID); calErr != nil {
		s.cfg.Log.Warn("Calendar completion failed after force-complete", "id", id, "error", calErr)
	}

	s.cfg.Log.Info("Booking force-completed", "id", id, "admin_id", adminID)
	return nil
}

// SetHandoff records a mid-custody transfer target. Coordination only:
// custody stays with the original booking until the return.
func (s *bookingService) SetHandoff(ctx context.Context, id string, agentID string, handoffAgentID string, location string) error {
	if handoffAgentID == "" {
		return apperrors.InvalidInput("Handoff agent ID cannot be empty")
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !booking.InCustody() {
		return apperrors.StateConflict("Handoff can only be recorded while the unit is in custody", string(booking.Status))
	}

	if err := s.acquireUnitLock(ctx, booking.UnitID); err != nil {
		return err
	}
	defer s.releaseUnitLock(ctx, booking.UnitID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.GetByID(sessCtx, id)
		if err != nil {
			return err
		}
		if !current.InCustody() {
			return apperrors.StateConflict("Handoff can only be recorded while the unit is in custody", string(current.Status))
		}

		current.HandoffAgentID = handoffAgentID
		current.HandoffLocation = sanitizer.SanitizeFreeText(location)

		if _, err := s.repo.Update(sessCtx, id, current); err != nil {
			return apperrors.Internal("Failed to record handoff", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to record handoff", "id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Handoff recorded",
		"id", id,
		"agent_id", agentID,
		"handoff_agent_id", handoffAgentID,
	)
	return nil
}

// --- Helpers ---

func (s *bookingService) applyDefaults(b *model.Booking) {
	if b.Status == "" {
		b.Status = model.StatusPending
	}
}

func (s *bookingService) sanitize(b *model.Booking) {
	b.PropertyAddress = sanitizer.SanitizeFreeText(b.PropertyAddress)
	b.AgentName = sanitizer.SanitizeFreeText(b.AgentName)
	b.AdminNotes = sanitizer.SanitizeFreeText(b.AdminNotes)
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *bookingService) checkUnitBookable(ctx context.Context, unitID string) error {
	if !s.cfg.KnownUnit(unitID) {
		return apperrors.InvalidInput(fmt.Sprintf("Unknown camera unit: %s", unitID))
	}

	unit, err := s.unitRepo.FindByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, unitsrepo.ErrNotFound) {
			return apperrors.NotFoundWithID("Camera unit", unitID)
		}
		return apperrors.Internal("Failed to check camera unit", err)
	}

	if !unit.Bookable() {
		return apperrors.Conflict(fmt.Sprintf("Camera unit %s is under maintenance", unitID)).WithDetails(map[string]any{
			"unit_id":           unitID,
			"maintenance_notes": unit.MaintenanceNotes,
		})
	}
	return nil
}

func (s *bookingService) cancellable(b *model.Booking) error {
	if b.Status != model.StatusPending && b.Status != model.StatusApproved {
		return apperrors.StateConflict("Only pending or approved bookings can be cancelled", string(b.Status))
	}
	if b.InCustody() {
		return apperrors.StateConflict("Booking cannot be cancelled while the unit is in custody; confirm the return instead", string(b.Status))
	}
	return nil
}

func (s *bookingService) reschedulable(b *model.Booking) error {
	if b.Status != model.StatusPending && b.Status != model.StatusApproved {
		return apperrors.StateConflict("Only pending or approved bookings can be rescheduled", string(b.Status))
	}
	if b.InCustody() {
		return apperrors.StateConflict("Booking cannot be rescheduled while the unit is in custody", string(b.Status))
	}
	return nil
}

func (s *bookingService) conflictError(holder *model.Booking) error {
	return apperrors.Conflict("Requested window conflicts with an existing booking").WithDetails(map[string]any{
		"conflicting_booking_id": holder.ID,
		"start_date":             holder.StartDate,
		"end_date":               holder.EndDate,
		"start_time":             holder.StartTime,
		"end_time":               holder.EndTime,
	})
}

// acquireUnitLock takes the advisory lock covering all windows on one
// unit. Coarse on purpose: with a pool of two cameras, lock contention
// is cheaper than per-slot lock bookkeeping.
func (s *bookingService) acquireUnitLock(ctx context.Context, unitID string) error {
	_, err := s.lockRepo.Acquire(ctx, unitID, s.cfg.UnitLockTTL)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Conflict("This unit is currently being booked by another request. Please try again.")
		}
		return apperrors.Internal("Failed to acquire unit lock", err)
	}
	return nil
}

func (s *bookingService) releaseUnitLock(ctx context.Context, unitID string) {
	if err := s.lockRepo.Release(ctx, unitID); err != nil {
		s.cfg.Log.Warn("Failed to release unit lock", "unit_id", unitID, "error", err)
	}
}

func (s *bookingService) syncCalendarCreate(ctx context.Context, booking *model.Booking, adminID string) {
	refs, err := s.calendar.CreateCustodyEvents(ctx, booking, booking.AgentID, adminID, booking.AdminNotes)
	if err != nil {
		s.cfg.Log.Warn("Calendar sync failed after approval", "id", booking.ID, "error", err)
		return
	}
	if len(refs) == 0 {
		return
	}

	booking.CalendarEventRefs = refs
	if _, err := s.repo.Update(ctx, booking.ID, booking); err != nil {
		s.cfg.Log.Warn("Failed to store calendar event refs", "id", booking.ID, "error", err)
	}
}

func (s *bookingService) syncCalendarDelete(ctx context.Context, booking *model.Booking, actorID string) {
	if len(booking.CalendarEventRefs) == 0 {
		return
	}
	if err := s.calendar.DeleteCustodyEvents(ctx, booking, actorID, booking.ApproverID); err != nil {
		s.cfg.Log.Warn("Calendar teardown failed", "id", booking.ID, "error", err)
	}
}

// notifyWaitlisted tells agents queued behind a cancelled booking that
// the slot opened up. Promotion stays a manual admin decision.
func (s *bookingService) notifyWaitlisted(ctx context.Context, cancelled *model.Booking) {
	waiting, err := s.repo.FindWaitlistedFor(ctx, cancelled.ID)
	if err != nil {
		s.cfg.Log.Warn("Failed to look up waitlisted bookings", "id", cancelled.ID, "error", err)
		return
	}

	for _, w := range waiting {
		event := notify.NewEvent(notify.EventWaitlistRequested, w).
			WithExtra("slot_released", true).
			WithExtra("released_booking_id", cancelled.ID)
		s.dispatcher.Dispatch(ctx, event)
	}
}
