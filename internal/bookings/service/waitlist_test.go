package service

import (
	"context"
	"testing"
	"time"

	apperrors "lenspool/pkg/errors"
	"lenspool/pkg/model"
)

func TestCreateWaitlisted_Succeeds(t *testing.T) {
	holder := validBooking()
	holder.ID = "507f1f77bcf86cd799439011"
	holder.Status = model.StatusApproved

	deps := &testServiceDeps{
		repo: &mockBookingRepository{
			findBlockingFunc: func(ctx context.Context, unitID string, from, to time.Time) ([]*model.Booking, error) {
				return []*model.Booking{holder}, nil
			},
			countWaitlistedFunc: func(ctx context.Context, bookingID string) (int64, error) {
				return 0, nil
			},
		},
	}
	svc := newTestService(deps)

	booking := validBooking()
	booking.AgentID = "agent-2"
	booking.StartTime = "10:00"
	booking.EndTime = "12:00"

	if err := svc.CreateWaitlisted(context.Background(), booking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if booking.Status != model.StatusWaitlisted {
		t.Errorf("expected status waitlisted, got %s", booking.Status)
	}
	if booking.WaitlistForBookingID != holder.ID {
		t.Errorf("expected waitlist anchor %s, got %s", holder.ID, booking.WaitlistForBookingID)
	}
	if !deps.dispatcher.has("waitlist_requested") {
		t.Error("expected waitlist_requested notification")
	}
}

func TestCreateWaitlisted_CapReached(t *testing.T) {
	holder := validBooking()
	holder.ID = "507f1f77bcf86cd799439011"
	holder.Status = model.StatusApproved

	deps := &testServiceDeps{
		repo: &mockBookingRepository{
			findBlockingFunc: func(ctx context.Context, unitID string, from, to time.Time) ([]*model.Booking, error) {
				return []*model.Booking{holder}, nil
			},
			countWaitlistedFunc: func(ctx context.Context, bookingID string) (int64, error) {
				return 1, nil
			},
		},
	}
	svc := newTestService(deps)

	err := svc.CreateWaitlisted(context.Background(), validBooking())
	if err == nil {
		t.Fatal("expected cap refusal, got nil")
	}

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict code, got %s", appErr.Code)
	}
	if appErr.Details["waitlist_cap"] != 1 {
		t.Errorf("expected cap in details, got %v", appErr.Details)
	}
}

func TestCreateWaitlisted_NoConflictRefused(t *testing.T) {
	svc := newTestService(&testServiceDeps{})

	err := svc.CreateWaitlisted(context.Background(), validBooking())
	if err == nil {
		t.Fatal("expected refusal for an uncontested window, got nil")
	}
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Errorf("expected conflict code, got %v", err)
	}
}

func TestCreateWaitlisted_AnchorsOnHolderNotQueue(t *testing.T) {
	holder := validBooking()
	holder.ID = "507f1f77bcf86cd799439011"
	holder.Status = model.StatusApproved

	queued := validBooking()
	queued.ID = "507f1f77bcf86cd799439022"
	queued.Status = model.StatusWaitlisted
	queued.WaitlistForBookingID = holder.ID

	var countedFor string
	deps := &testServiceDeps{
		repo: &mockBookingRepository{
			findBlockingFunc: func(ctx context.Context, unitID string, from, to time.Time) ([]*model.Booking, error) {
				// Queue entries sort first here on purpose.
				return []*model.Booking{queued, holder}, nil
			},
			countWaitlistedFunc: func(ctx context.Context, bookingID string) (int64, error) {
				countedFor = bookingID
				return 1, nil
			},
		},
	}
	svc := newTestService(deps)

	err := svc.CreateWaitlisted(context.Background(), validBooking())
	if err == nil {
		t.Fatal("expected cap refusal, got nil")
	}
	if countedFor != holder.ID {
		t.Errorf("cap must be counted against the holder %s, got %s", holder.ID, countedFor)
	}
}
