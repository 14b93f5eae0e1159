package service

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"lenspool/pkg/config"
	mongotx "lenspool/pkg/db/mongo"
	apperrors "lenspool/pkg/errors"
	"lenspool/pkg/logger"
	"lenspool/pkg/model"
)

type mockBookingRepository struct {
	findInRangeFunc       func(ctx context.Context, from, to time.Time) ([]*model.Booking, error)
	findBlockingFunc      func(ctx context.Context, unitID string, from, to time.Time) ([]*model.Booking, error)
	lateCancellationsFunc func(ctx context.Context) (map[string]int64, error)
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) Update(ctx context.Context, id string, booking *model.Booking) (*mongo.UpdateResult, error) {
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

func (m *mockBookingRepository) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) FindBlockingByUnit(ctx context.Context, unitID string, from, to time.Time) ([]*model.Booking, error) {
	if m.findBlockingFunc != nil {
		return m.findBlockingFunc(ctx, unitID, from, to)
	}
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
	if m.findInRangeFunc != nil {
		return m.findInRangeFunc(ctx, from, to)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) FindInCustody(ctx context.Context) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) LateCancellationCounts(ctx context.Context) (map[string]int64, error) {
	if m.lateCancellationsFunc != nil {
		return m.lateCancellationsFunc(ctx)
	}
	return map[string]int64{}, nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockUnitRepository struct {
	findAllFunc func(ctx context.Context) ([]*model.CameraUnit, error)
}

func (m *mockUnitRepository) FindByID(ctx context.Context, id string) (*model.CameraUnit, error) {
	return &model.CameraUnit{ID: id, Status: model.UnitAvailable}, nil
}

func (m *mockUnitRepository) FindAll(ctx context.Context) ([]*model.CameraUnit, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx)
	}
	return []*model.CameraUnit{}, nil
}

func (m *mockUnitRepository) SetStatus(ctx context.Context, id string, status model.UnitStatus, notes string) error {
	return nil
}

func (m *mockUnitRepository) SetOccupied(ctx context.Context, id string, bookingID string) error {
	return nil
}

func (m *mockUnitRepository) Release(ctx context.Context, id string) error {
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
		Log:         log,
		ReadTimeout: 5 * time.Second,
		UnitIDs:     []string{"cam-1", "cam-2"},
	}
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestLateCancellationSummary_FlagsRepeatOffenders(t *testing.T) {
	repo := &mockBookingRepository{
		lateCancellationsFunc: func(ctx context.Context) (map[string]int64, error) {
			return map[string]int64{
				"agent-1": 3,
				"agent-2": 1,
				"agent-3": 5,
			}, nil
		},
	}
	svc := NewReportService(repo, &mockUnitRepository{}, testConfig())

	summaries, err := svc.LateCancellationSummary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}
	if summaries[0].AgentID != "agent-3" || !summaries[0].Flagged {
		t.Errorf("expected agent-3 first and flagged, got %+v", summaries[0])
	}
	if summaries[1].AgentID != "agent-1" || !summaries[1].Flagged {
		t.Errorf("expected agent-1 flagged at exactly the threshold, got %+v", summaries[1])
	}
	if summaries[2].AgentID != "agent-2" || summaries[2].Flagged {
		t.Errorf("expected agent-2 unflagged, got %+v", summaries[2])
	}
}

func TestWeekSchedule_MultiDayBookingSpansDays(t *testing.T) {
	booking := &model.Booking{
		ID:        "507f1f77bcf86cd799439011",
		UnitID:    "cam-1",
		AgentID:   "agent-1",
		Status:    model.StatusApproved,
		StartDate: day(10),
		EndDate:   day(12),
		StartTime: "09:00",
		EndTime:   "17:00",
	}
	cancelled := &model.Booking{
		ID:        "507f1f77bcf86cd799439022",
		UnitID:    "cam-2",
		AgentID:   "agent-2",
		Status:    model.StatusCancelled,
		StartDate: day(11),
		EndDate:   day(11),
		StartTime: "09:00",
		EndTime:   "17:00",
	}

	repo := &mockBookingRepository{
		findInRangeFunc: func(ctx context.Context, from, to time.Time) ([]*model.Booking, error) {
			return []*model.Booking{booking, cancelled}, nil
		},
	}
	svc := NewReportService(repo, &mockUnitRepository{}, testConfig())

	week, err := svc.WeekSchedule(context.Background(), day(9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(week.Days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(week.Days))
	}

	counts := map[int]int{}
	for i, d := range week.Days {
		counts[i] = len(d.Bookings)
	}

	// day(9) is index 0; the booking runs day 10..12, indices 1..3.
	for i := 1; i <= 3; i++ {
		if counts[i] != 1 {
			t.Errorf("day index %d: expected 1 booking, got %d", i, counts[i])
		}
	}
	if counts[0] != 0 || counts[4] != 0 {
		t.Errorf("booking leaked outside its range: %v", counts)
	}
}

func TestUnitOccupancy_UnknownUnit(t *testing.T) {
	svc := NewReportService(&mockBookingRepository{}, &mockUnitRepository{}, testConfig())

	_, err := svc.UnitOccupancy(context.Background(), "cam-9", day(10))
	if err == nil {
		t.Fatal("expected unknown-unit error, got nil")
	}
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected invalid input code, got %v", err)
	}
}

func TestBookingsByStatus_RejectsUnknownStatus(t *testing.T) {
	svc := NewReportService(&mockBookingRepository{}, &mockUnitRepository{}, testConfig())

	_, err := svc.BookingsByStatus(context.Background(), "archived", 10, 0)
	if err == nil {
		t.Fatal("expected unknown-status error, got nil")
	}
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected invalid input code, got %v", err)
	}
}
