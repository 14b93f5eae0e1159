package model

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusApproved   BookingStatus = "approved"
	StatusRejected   BookingStatus = "rejected"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
	StatusWaitlisted BookingStatus = "waitlisted"
)

// Terminal statuses accept no further transition.
func (s BookingStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// Blocking statuses participate in conflict detection. Rejected and
// cancelled bookings never occupy a window.
func (s BookingStatus) Blocking() bool {
	return s != StatusRejected && s != StatusCancelled
}

// ConditionChecklist is the mandatory equipment inspection recorded at
// pickup and return. Every item must be true for custody to change
// hands; a partial checklist is refused without mutating anything.
type ConditionChecklist struct {
	BatteryCharged       bool `json:"battery_charged" bson:"battery_charged"`
	NoPhysicalDamage     bool `json:"no_physical_damage" bson:"no_physical_damage"`
	AccessoriesPresent   bool `json:"accessories_present" bson:"accessories_present"`
	StorageMediumPresent bool `json:"storage_medium_present" bson:"storage_medium_present"`
}

func (c ConditionChecklist) Complete() bool {
	return c.BatteryCharged && c.NoPhysicalDamage && c.AccessoriesPresent && c.StorageMediumPresent
}

// MissingItems names the unchecked items, for error details.
func (c ConditionChecklist) MissingItems() []string {
	var missing []string
	if !c.BatteryCharged {
		missing = append(missing, "battery_charged")
	}
	if !c.NoPhysicalDamage {
		missing = append(missing, "no_physical_damage")
	}
	if !c.AccessoriesPresent {
		missing = append(missing, "accessories_present")
	}
	if !c.StorageMediumPresent {
		missing = append(missing, "storage_medium_present")
	}
	return missing
}

// ConditionReport is the checklist snapshot stored on the booking once
// a custody confirmation succeeds.
type ConditionReport struct {
	Checklist   ConditionChecklist `json:"checklist" bson:"checklist"`
	Note        string             `json:"note,omitempty" bson:"note,omitempty"`
	EarlyReturn bool               `json:"early_return,omitempty" bson:"early_return,omitempty"`
}

type Booking struct {
	ID      string `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UnitID  string `json:"unit_id" bson:"unit_id" validate:"required"`
	AgentID string `json:"agent_id" bson:"agent_id" validate:"required,min=1,max=64"`

	// Window: inclusive date range plus time-of-day bounds applied to
	// the first and last day respectively.
	StartDate time.Time `json:"start_date" bson:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" bson:"end_date" validate:"required"`
	StartTime string    `json:"start_time" bson:"start_time" validate:"required,hhmm"`
	EndTime   string    `json:"end_time" bson:"end_time" validate:"required,hhmm"`

	Status   BookingStatus `json:"status" bson:"status" validate:"omitempty,oneof=pending approved rejected completed cancelled waitlisted"`
	IsUrgent bool          `json:"is_urgent" bson:"is_urgent"`

	// Set only while waitlisted: the approved-eligible booking this
	// request is contending with.
	WaitlistForBookingID string `json:"waitlist_for_booking_id,omitempty" bson:"waitlist_for_booking_id,omitempty" validate:"omitempty,mongodb"`

	PropertyAddress string `json:"property_address" bson:"property_address" validate:"required,min=3,max=200"`
	AgentName       string `json:"agent_name,omitempty" bson:"agent_name,omitempty" validate:"omitempty,max=100"`
	AgentPhone      string `json:"agent_phone,omitempty" bson:"agent_phone,omitempty" validate:"omitempty,e164"`

	PickupConfirmedAt *time.Time       `json:"pickup_confirmed_at,omitempty" bson:"pickup_confirmed_at,omitempty"`
	PickupCondition   *ConditionReport `json:"pickup_condition,omitempty" bson:"pickup_condition,omitempty"`
	ReturnConfirmedAt *time.Time       `json:"return_confirmed_at,omitempty" bson:"return_confirmed_at,omitempty"`
	ReturnCondition   *ConditionReport `json:"return_condition,omitempty" bson:"return_condition,omitempty"`

	ApproverID string `json:"approver_id,omitempty" bson:"approver_id,omitempty"`
	AdminNotes string `json:"admin_notes,omitempty" bson:"admin_notes,omitempty" validate:"omitempty,max=500"`

	// Optional mid-custody transfer target. Recorded for coordination,
	// not enforced by the lifecycle.
	HandoffAgentID  string `json:"handoff_agent_id,omitempty" bson:"handoff_agent_id,omitempty"`
	HandoffLocation string `json:"handoff_location,omitempty" bson:"handoff_location,omitempty"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	IsLateCancellation bool       `json:"is_late_cancellation,omitempty" bson:"is_late_cancellation,omitempty"`

	// Opaque references returned by the calendar collaborator. Never
	// interpreted, never assumed valid.
	CalendarEventRefs []string `json:"calendar_event_refs,omitempty" bson:"calendar_event_refs,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// SingleDay reports whether the booking window collapses to one day.
func (b *Booking) SingleDay() bool {
	return sameDate(b.StartDate, b.EndDate)
}

// CommittedStart is the start-of-use timestamp: start date at the
// start time-of-day.
func (b *Booking) CommittedStart() time.Time {
	return CombineDateTime(b.StartDate, b.StartTime)
}

// CommittedEnd is the end-of-use timestamp the agent committed to:
// end date at the end time-of-day. Lateness and overdue checks are
// both measured against it.
func (b *Booking) CommittedEnd() time.Time {
	return CombineDateTime(b.EndDate, b.EndTime)
}

// InCustody reports whether the unit is physically with the agent:
// pickup confirmed, return not yet confirmed.
func (b *Booking) InCustody() bool {
	return b.PickupConfirmedAt != nil && b.ReturnConfirmedAt == nil
}

// Overdue is derived on read, never stored: an approved in-custody
// booking whose committed end has strictly passed.
func (b *Booking) Overdue(now time.Time) bool {
	return b.Status == StatusApproved && b.InCustody() && now.After(b.CommittedEnd())
}

// LateCancellation reports whether cancelling at the given instant
// falls inside the grace window before the committed end of use.
// Cancelling exactly at the window boundary is not late.
func (b *Booking) LateCancellation(now time.Time, window time.Duration) bool {
	return b.CommittedEnd().Sub(now) < window
}

// Window is the date+time range a booking occupies, detached from the
// rest of the record so the availability engine and reschedule
// requests can share it.
type Window struct {
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	StartTime string    `json:"start_time" validate:"required,hhmm"`
	EndTime   string    `json:"end_time" validate:"required,hhmm"`
}

func (w Window) SingleDay() bool {
	return sameDate(w.StartDate, w.EndDate)
}

func (b *Booking) Window() Window {
	return Window{
		StartDate: b.StartDate,
		EndDate:   b.EndDate,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
	}
}

func (b *Booking) SetWindow(w Window) {
	b.StartDate = w.StartDate
	b.EndDate = w.EndDate
	b.StartTime = w.StartTime
	b.EndTime = w.EndTime
}

// CombineDateTime applies an HH:MM time-of-day to a date. The HH:MM
// string is validated upstream; a malformed value falls back to
// midnight rather than panicking on a read path.
func CombineDateTime(date time.Time, hhmm string) time.Time {
	var hour, minute int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); err != nil {
		hour, minute = 0, 0
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
