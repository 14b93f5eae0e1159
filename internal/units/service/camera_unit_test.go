package service

import (
	"context"
	"testing"
	"time"

	"lenspool/pkg/config"
	apperrors "lenspool/pkg/errors"
	"lenspool/pkg/logger"
	"lenspool/pkg/model"
)

type mockUnitRepository struct {
	findByIDFunc  func(ctx context.Context, id string) (*model.CameraUnit, error)
	findAllFunc   func(ctx context.Context) ([]*model.CameraUnit, error)
	setStatusFunc func(ctx context.Context, id string, status model.UnitStatus, notes string) error
}

func (m *mockUnitRepository) FindByID(ctx context.Context, id string) (*model.CameraUnit, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.CameraUnit{ID: id, Status: model.UnitAvailable}, nil
}

func (m *mockUnitRepository) FindAll(ctx context.Context) ([]*model.CameraUnit, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx)
	}
	return []*model.CameraUnit{}, nil
}

func (m *mockUnitRepository) SetStatus(ctx context.Context, id string, status model.UnitStatus, notes string) error {
	if m.setStatusFunc != nil {
		return m.setStatusFunc(ctx, id, status, notes)
	}
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
		Log:          log,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func TestSetMaintenance_Succeeds(t *testing.T) {
	var gotStatus model.UnitStatus
	var gotNotes string
	repo := &mockUnitRepository{
		setStatusFunc: func(ctx context.Context, id string, status model.UnitStatus, notes string) error {
			gotStatus, gotNotes = status, notes
			return nil
		},
	}
	svc := NewUnitService(repo, testConfig())

	if err := svc.SetMaintenance(context.Background(), "cam-1", "firmware update"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotStatus != model.UnitMaintenance {
		t.Errorf("expected maintenance status, got %s", gotStatus)
	}
	if gotNotes != "firmware update" {
		t.Errorf("expected notes to be stored, got %q", gotNotes)
	}
}

func TestSetMaintenance_RefusedWhileInUse(t *testing.T) {
	repo := &mockUnitRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.CameraUnit, error) {
			return &model.CameraUnit{ID: id, Status: model.UnitInUse, CurrentBookingID: "507f1f77bcf86cd799439011"}, nil
		},
	}
	svc := NewUnitService(repo, testConfig())

	err := svc.SetMaintenance(context.Background(), "cam-1", "inspection")
	if err == nil {
		t.Fatal("expected refusal while in custody, got nil")
	}
	if !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Errorf("expected state conflict code, got %v", err)
	}
}

func TestClearMaintenance_Succeeds(t *testing.T) {
	var gotStatus model.UnitStatus
	repo := &mockUnitRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.CameraUnit, error) {
			return &model.CameraUnit{ID: id, Status: model.UnitMaintenance, MaintenanceNotes: "lens swap"}, nil
		},
		setStatusFunc: func(ctx context.Context, id string, status model.UnitStatus, notes string) error {
			gotStatus = status
			if notes != "" {
				t.Errorf("expected maintenance notes to be cleared, got %q", notes)
			}
			return nil
		},
	}
	svc := NewUnitService(repo, testConfig())

	if err := svc.ClearMaintenance(context.Background(), "cam-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != model.UnitAvailable {
		t.Errorf("expected available status, got %s", gotStatus)
	}
}

func TestClearMaintenance_RefusedWhenNotInMaintenance(t *testing.T) {
	svc := NewUnitService(&mockUnitRepository{}, testConfig())

	err := svc.ClearMaintenance(context.Background(), "cam-1")
	if err == nil {
		t.Fatal("expected refusal, got nil")
	}
	if !apperrors.HasCode(err, apperrors.CodeStateConflict) {
		t.Errorf("expected state conflict code, got %v", err)
	}
}
