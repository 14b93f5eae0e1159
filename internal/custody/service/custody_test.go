package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"lenspool/internal/notify"
	"lenspool/pkg/config"
	mongotx "lenspool/pkg/db/mongo"
	apperrors "lenspool/pkg/errors"
	"lenspool/pkg/logger"
	"lenspool/pkg/model"
)

type mockBookingRepository struct {
	findByIDFunc      func(ctx context.Context, id string) (*model.Booking, error)
	updateFunc        func(ctx context.Context, id string, booking *model.Booking) (*mongo.UpdateResult, error)
	findInCustodyFunc func(ctx context.Context) ([]*model.Booking, error)
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockBookingRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) Update(ctx context.Context, id string, booking *model.Booking) (*mongo.UpdateResult, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, booking)
	}
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

func (m *mockBookingRepository) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) FindBlockingByUnit(ctx context.Context, unitID string, from, to time.Time) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) CountWaitlistedFor(ctx context.Context, bookingID string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) FindWaitlistedFor(ctx context.Context, bookingID string) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) FindByStatus(ctx context.Context, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) FindByAgent(ctx context.Context, agentID string, limit int, offset int64) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) FindInRange(ctx context.Context, from, to time.Time) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) FindInCustody(ctx context.Context) ([]*model.Booking, error) {
	if m.findInCustodyFunc != nil {
		return m.findInCustodyFunc(ctx)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) LateCancellationCounts(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockUnitLockRepository struct {
	acquireFunc func(ctx context.Context, unitID string, ttl time.Duration) (*model.UnitLock, error)
	releaseFunc func(ctx context.Context, unitID string) error
}

func (m *mockUnitLockRepository) Acquire(ctx context.Context, unitID string, ttl time.Duration) (*model.UnitLock, error) {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, unitID, ttl)
	}
	return &model.UnitLock{}, nil
}

func (m *mockUnitLockRepository) Release(ctx context.Context, unitID string) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, unitID)
	}
	return nil
}

type mockUnitRepository struct {
	setOccupiedFunc func(ctx context.Context, id string, bookingID string) error
	releaseFunc     func(ctx context.Context, id string) error
}

func (m *mockUnitRepository) FindByID(ctx context.Context, id string) (*model.CameraUnit, error) {
	return &model.CameraUnit{ID: id, Status: model.UnitAvailable}, nil
}

func (m *mockUnitRepository) FindAll(ctx context.Context) ([]*model.CameraUnit, error) {
	return []*model.CameraUnit{}, nil
}

func (m *mockUnitRepository) SetStatus(ctx context.Context, id string, status model.UnitStatus, notes string) error {
	return nil
}

func (m *mockUnitRepository) SetOccupied(ctx context.Context, id string, bookingID string) error {
	if m.setOccupiedFunc != nil {
		return m.setOccupiedFunc(ctx, id, bookingID)
	}
	return nil
}

func (m *mockUnitRepository) Release(ctx context.Context, id string) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, id)
	}
	return nil
}

type recordingDispatcher struct {
	events []notify.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event notify.Event) {
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) has(eventType notify.EventType) bool {
	for _, e := range d.events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

type recordingCalendar struct {
	completed int
}

func (c *recordingCalendar) CreateCustodyEvents(context.Context, *model.Booking, string, string, string) ([]string, error) {
	return nil, nil
}

func (c *recordingCalendar) UpdateCustodyEvents(context.Context, *model.Booking, string, string, model.Window, string) error {
	return nil
}

func (c *recordingCalendar) DeleteCustodyEvents(context.Context, *model.Booking, string, string) error {
	return nil
}

func (c *recordingCalendar) CompleteCustodyEvents(context.Context, *model.Booking, string, string) error {
	c.completed++
	return nil
}

func testConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return &config.Config{
		Log:          log,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		UnitLockTTL:  10 * time.Second,
	}
}

func fullChecklist() model.ConditionChecklist {
	return model.ConditionChecklist{
		BatteryCharged:       true,
		NoPhysicalDamage:     true,
		AccessoriesPresent:   true,
		StorageMediumPresent: true,
	}
}

func approvedBooking() *model.Booking {
	return &model.Booking{
		ID:              "507f1f77bcf86cd799439011",
		UnitID:          "cam-1",
		AgentID:         "agent-1",
		Status:          model.StatusApproved,
		StartDate:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:       "09:00",
		EndTime:         "18:00",
		PropertyAddress: "12 Harbor St",
	}
}

func newTestCustody(repo *mockBookingRepository, units *mockUnitRepository, dispatcher *recordingDispatcher, cal *recordingCalendar, now time.Time) *custodyService {
	return &custodyService{
		bookingRepo: repo,
		lockRepo:    &mockUnitLockRepository{},
		unitRepo:    units,
		dispatcher:  dispatcher,
		calendar:    cal,
		cfg:         testConfig(),
		now:         func() time.Time { return now },
	}
}

func TestConfirmPickup_Succeeds(t *testing.T) {
	booking := approvedBooking()
	now := time.Date(2026, 3, 10, 8, 45, 0, 0, time.UTC)

	var updated *model.Booking
	var occupiedUnit, occupiedBy string
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		updateFunc: func(ctx context.Context, id string, b *model.Booking) (*mongo.UpdateResult, error) {
			updated = b
			return &mongo.UpdateResult{MatchedCount: 1}, nil
		},
	}
	units := &mockUnitRepository{
		setOccupiedFunc: func(ctx context.Context, id string, bookingID string) error {
			occupiedUnit, occupiedBy = id, bookingID
			return nil
		},
	}
	dispatcher := &recordingDispatcher{}
	svc := newTestCustody(repo, units, dispatcher, &recordingCalendar{}, now)

	report := model.ConditionReport{Checklist: fullChecklist(), Note: "all good"}
	if err := svc.ConfirmPickup(context.Background(), booking.ID, "agent-1", report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated == nil || updated.PickupConfirmedAt == nil {
		t.Fatal("expected pickup timestamp to be set")
	}
	if !updated.PickupConfirmedAt.Equal(now) {
		t.Errorf("expected pickup at %v, got %v", now, updated.PickupConfirmedAt)
	}
	if updated.PickupCondition == nil || !updated.PickupCondition.Checklist.Complete() {
		t.Error("expected pickup condition report to be stored")
	}
	if occupiedUnit != "cam-1" || occupiedBy != booking.ID {
		t.Errorf("expected cam-1 occupied by %s, got %s/%s", booking.ID, occupiedUnit, occupiedBy)
	}
	if !dispatcher.has(notify.EventPickupConfirmed) {
		t.Error("expected pickup_confirmed notification")
	}
}

func TestConfirmPickup_PartialChecklistRefused(t *testing.T) {
	booking := approvedBooking()

	updateCalled := false
	occupyCalled := false
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		updateFunc: func(ctx context.Context, id string, b *model.Booking) (*mongo.UpdateResult, error) {
			updateCalled = true
			return &mongo.UpdateResult{MatchedCount: 1}, nil
		},
	}
	units := &mockUnitRepository{
		setOccupiedFunc: func(ctx context.Context, id string, bookingID string) error {
			occupyCalled = true
			return nil
		},
	}
	dispatcher := &recordingDispatcher{}
	svc := newTestCustody(repo, units, dispatcher, &recordingCalendar{}, time.Now().UTC())

	checklist := fullChecklist()
	checklist.StorageMediumPresent = false

	err := svc.ConfirmPickup(context.Background(), booking.ID, "agent-1", model.ConditionReport{Checklist: checklist})
	if err == nil {
		t.Fatal("expected checklist refusal, got nil")
	}

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected validation code, got %s", appErr.Code)
	}
	missing, _ := appErr.Details["missing_items"].([]string)
	if len(missing) != 1 || missing[0] != "storage_medium_present" {
		t.Errorf("expected missing storage_medium_present, got %v", appErr.Details)
	}

	if updateCalled || occupyCalled {
		t.Error("a refused checklist must not mutate booking or unit")
	}
	if len(dispatcher.events) != 0 {
		t.Error("a refused checklist must not notify")
	}
}

func TestConfirmPickup_WrongState(t *testing.T) {
	booking := approvedBooking()
	booking.Status = model.StatusPending

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
	}
	svc := newTestCustody(repo, &mockUnitRepository{}, &recordingDispatcher{}, &recordingCalendar{}, time.Now().UTC())

	err := svc.ConfirmPickup(context.Background(), booking.ID, "agent-1", model.ConditionReport{Checklist: fullChecklist()})
	if err == nil {
		t.Fatal("expected state conflict, got nil")
	}
	if !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Errorf("expected state conflict code, got %v", err)
	}
}

func TestConfirmPickup_AlreadyPickedUp(t *testing.T) {
	booking := approvedBooking()
	pickedUp := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	booking.PickupConfirmedAt = &pickedUp

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
	}
	svc := newTestCustody(repo, &mockUnitRepository{}, &recordingDispatcher{}, &recordingCalendar{}, time.Now().UTC())

	err := svc.ConfirmPickup(context.Background(), booking.ID, "agent-1", model.ConditionReport{Checklist: fullChecklist()})
	if err == nil {
		t.Fatal("expected refusal of double pickup, got nil")
	}
	if !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Errorf("expected state conflict code, got %v", err)
	}
}

// A pickup and a cancel can race on the same booking. The pickup
// re-reads inside its transaction, so a cancel that landed after the
// first read must abort the pickup instead of overwriting it.
func TestConfirmPickup_AbortsWhenCancelLandsFirst(t *testing.T) {
	clean := approvedBooking()

	cancelled := *clean
	cancelledAt := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	cancelled.Status = model.StatusCancelled
	cancelled.CancelledAt = &cancelledAt

	reads := 0
	updateCalled := false
	occupyCalled := false
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			reads++
			if reads == 1 {
				return clean, nil
			}
			return &cancelled, nil
		},
		updateFunc: func(ctx context.Context, id string, b *model.Booking) (*mongo.UpdateResult, error) {
			updateCalled = true
			return &mongo.UpdateResult{MatchedCount: 1}, nil
		},
	}
	units := &mockUnitRepository{
		setOccupiedFunc: func(ctx context.Context, id string, bookingID string) error {
			occupyCalled = true
			return nil
		},
	}
	svc := newTestCustody(repo, units, &recordingDispatcher{}, &recordingCalendar{}, time.Date(2026, 3, 10, 8, 45, 0, 0, time.UTC))

	err := svc.ConfirmPickup(context.Background(), clean.ID, "agent-1", model.ConditionReport{Checklist: fullChecklist()})
	if err == nil {
		t.Fatal("expected the pickup to abort after the cancel, got nil")
	}
	if !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Errorf("expected state conflict code, got %v", err)
	}
	if reads < 2 {
		t.Error("expected a re-read inside the transaction")
	}
	if updateCalled || occupyCalled {
		t.Error("an aborted pickup must not touch booking or unit")
	}
	if cancelled.Status != model.StatusCancelled || cancelled.PickupConfirmedAt != nil {
		t.Error("the cancelled document must survive the aborted pickup untouched")
	}
}

func TestConfirmReturn_CompletesAndReleases(t *testing.T) {
	booking := approvedBooking()
	pickedUp := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	booking.PickupConfirmedAt = &pickedUp

	// After the committed end (18:00): on time accounting says not early.
	now := time.Date(2026, 3, 10, 19, 30, 0, 0, time.UTC)

	var updated *model.Booking
	released := ""
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		updateFunc: func(ctx context.Context, id string, b *model.Booking) (*mongo.UpdateResult, error) {
			updated = b
			return &mongo.UpdateResult{MatchedCount: 1}, nil
		},
	}
	units := &mockUnitRepository{
		releaseFunc: func(ctx context.Context, id string) error {
			released = id
			return nil
		},
	}
	dispatcher := &recordingDispatcher{}
	cal := &recordingCalendar{}
	svc := newTestCustody(repo, units, dispatcher, cal, now)

	if err := svc.ConfirmReturn(context.Background(), booking.ID, "agent-1", model.ConditionReport{Checklist: fullChecklist()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != model.StatusCompleted {
		t.Errorf("expected status completed, got %s", updated.Status)
	}
	if updated.ReturnConfirmedAt == nil {
		t.Error("expected return timestamp to be set")
	}
	if updated.ReturnCondition == nil || updated.ReturnCondition.EarlyReturn {
		t.Error("return after the committed end must not be flagged early")
	}
	if released != "cam-1" {
		t.Errorf("expected cam-1 released, got %q", released)
	}
	if cal.completed != 1 {
		t.Errorf("expected one calendar completion, got %d", cal.completed)
	}
	if !dispatcher.has(notify.EventReturnConfirmed) {
		t.Error("expected return_confirmed notification")
	}
	if dispatcher.has(notify.EventEarlyReturn) {
		t.Error("did not expect early_return notification")
	}
}

func TestConfirmReturn_EarlyReturn(t *testing.T) {
	booking := approvedBooking()
	pickedUp := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	booking.PickupConfirmedAt = &pickedUp

	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	var updated *model.Booking
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
		updateFunc: func(ctx context.Context, id string, b *model.Booking) (*mongo.UpdateResult, error) {
			updated = b
			return &mongo.UpdateResult{MatchedCount: 1}, nil
		},
	}
	dispatcher := &recordingDispatcher{}
	svc := newTestCustody(repo, &mockUnitRepository{}, dispatcher, &recordingCalendar{}, now)

	if err := svc.ConfirmReturn(context.Background(), booking.ID, "agent-1", model.ConditionReport{Checklist: fullChecklist()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.ReturnCondition == nil || !updated.ReturnCondition.EarlyReturn {
		t.Error("return before the committed end must be flagged early")
	}
	if !dispatcher.has(notify.EventReturnConfirmed) {
		t.Error("expected return_confirmed notification")
	}
	if !dispatcher.has(notify.EventEarlyReturn) {
		t.Error("expected early_return notification")
	}
	if updated.Status != model.StatusCompleted {
		t.Errorf("early return still completes the booking, got %s", updated.Status)
	}
}

func TestConfirmReturn_RequiresCustody(t *testing.T) {
	booking := approvedBooking()

	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return booking, nil
		},
	}
	svc := newTestCustody(repo, &mockUnitRepository{}, &recordingDispatcher{}, &recordingCalendar{}, time.Now().UTC())

	err := svc.ConfirmReturn(context.Background(), booking.ID, "agent-1", model.ConditionReport{Checklist: fullChecklist()})
	if err == nil {
		t.Fatal("expected refusal before pickup, got nil")
	}
	if !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Errorf("expected state conflict code, got %v", err)
	}
}

func TestListOverdue_DerivedOnRead(t *testing.T) {
	booking := approvedBooking()
	pickedUp := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	booking.PickupConfirmedAt = &pickedUp

	repo := &mockBookingRepository{
		findInCustodyFunc: func(ctx context.Context) ([]*model.Booking, error) {
			return []*model.Booking{booking}, nil
		},
	}

	// Committed end is 18:00. At exactly 18:00 the booking is not yet
	// overdue; at 19:00 it is.
	atEnd := newTestCustody(repo, &mockUnitRepository{}, &recordingDispatcher{}, &recordingCalendar{}, time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC))
	overdue, err := atEnd.ListOverdue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overdue) != 0 {
		t.Errorf("expected no overdue bookings at the committed end, got %d", len(overdue))
	}

	afterEnd := newTestCustody(repo, &mockUnitRepository{}, &recordingDispatcher{}, &recordingCalendar{}, time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC))
	overdue, err = afterEnd.ListOverdue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overdue) != 1 {
		t.Fatalf("expected one overdue booking after the committed end, got %d", len(overdue))
	}
	if overdue[0].ID != booking.ID {
		t.Errorf("expected booking %s, got %s", booking.ID, overdue[0].ID)
	}
}

func TestListOverdue_ReturnedBookingNotListed(t *testing.T) {
	booking := approvedBooking()
	pickedUp := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	returned := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	booking.PickupConfirmedAt = &pickedUp
	booking.ReturnConfirmedAt = &returned
	booking.Status = model.StatusCompleted

	repo := &mockBookingRepository{
		findInCustodyFunc: func(ctx context.Context) ([]*model.Booking, error) {
			return []*model.Booking{booking}, nil
		},
	}
	svc := newTestCustody(repo, &mockUnitRepository{}, &recordingDispatcher{}, &recordingCalendar{}, time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC))

	overdue, err := svc.ListOverdue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overdue) != 0 {
		t.Errorf("a returned booking must never be overdue, got %d", len(overdue))
	}
}
