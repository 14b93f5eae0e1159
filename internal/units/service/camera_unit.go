package service

import (
	"context"
	"errors"

	"lenspool/internal/units/repository"
	"lenspool/pkg/config"
	apperrors "lenspool/pkg/errors"
	"lenspool/pkg/model"
	"lenspool/pkg/sanitizer"
)

type UnitService interface {
	GetAll(ctx context.Context) ([]*model.CameraUnit, error)
	GetByID(ctx context.Context, id string) (*model.CameraUnit, error)
	SetMaintenance(ctx context.Context, id string, notes string) error
	ClearMaintenance(ctx context.Context, id string) error
}

type unitService struct {
	repo repository.UnitRepository
	cfg  *config.Config
}

func NewUnitService(repo repository.UnitRepository, cfg *config.Config) UnitService {
	return &unitService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *unitService) GetAll(ctx context.Context) ([]*model.CameraUnit, error) {
	units, err := s.repo.FindAll(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list camera units", "error", err)
		return nil, apperrors.Internal("Failed to retrieve camera units", err)
	}
	return units, nil
}

func (s *unitService) GetByID(ctx context.Context, id string) (*model.CameraUnit, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Unit ID cannot be empty")
	}

	unit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Camera unit", id)
		}
		return nil, apperrors.Internal("Failed to retrieve camera unit", err)
	}
	return unit, nil
}

// SetMaintenance pulls a unit out of the pool. A unit physically out
// with an agent cannot go into maintenance; the return has to be
// confirmed first.
func (s *unitService) SetMaintenance(ctx context.Context, id string, notes string) error {
	unit, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if unit.Status == model.UnitInUse {
		return apperrors.StateConflict("Camera unit is in custody and cannot enter maintenance", string(unit.Status))
	}
	if unit.Status == model.UnitMaintenance {
		return apperrors.StateConflict("Camera unit is already under maintenance", string(unit.Status))
	}

	if err := s.repo.SetStatus(ctx, id, model.UnitMaintenance, sanitizer.SanitizeFreeText(notes)); err != nil {
		s.cfg.Log.Error("Failed to set maintenance", "unit_id", id, "error", err)
		return apperrors.Internal("Failed to update camera unit", err)
	}

	s.cfg.Log.Info("Camera unit entered maintenance", "unit_id", id)
	return nil
}

func (s *unitService) ClearMaintenance(ctx context.Context, id string) error {
	unit, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if unit.Status != model.UnitMaintenance {
		return apperrors.StateConflict("Camera unit is not under maintenance", string(unit.Status))
	}

	if err := s.repo.SetStatus(ctx, id, model.UnitAvailable, ""); err != nil {
		s.cfg.Log.Error("Failed to clear maintenance", "unit_id", id, "error", err)
		return apperrors.Internal("Failed to update camera unit", err)
	}

	s.cfg.Log.Info("Camera unit returned to the pool", "unit_id", id)
	return nil
}
