package model

import "time"

type UnitStatus string

const (
	UnitAvailable   UnitStatus = "available"
	UnitInUse       UnitStatus = "in_use"
	UnitMaintenance UnitStatus = "maintenance"
)

// CameraUnit is one of the two physical 360° cameras in the pool.
type CameraUnit struct {
	ID               string     `json:"id" bson:"_id" validate:"required"`
	Status           UnitStatus `json:"status" bson:"status" validate:"required,oneof=available in_use maintenance"`
	CurrentBookingID string     `json:"current_booking_id,omitempty" bson:"current_booking_id,omitempty"`
	MaintenanceNotes string     `json:"maintenance_notes,omitempty" bson:"maintenance_notes,omitempty" validate:"omitempty,max=500"`
	UpdatedAt        time.Time  `json:"updated_at" bson:"updated_at"`
}

// Bookable reports whether new bookings may target this unit.
func (u *CameraUnit) Bookable() bool {
	return u.Status != UnitMaintenance
}
