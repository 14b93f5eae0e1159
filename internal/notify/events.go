package notify

import (
	"time"

	"lenspool/pkg/model"
)

type EventType string

const (
	EventBookingRequested   EventType = "booking_requested"
	EventUrgentRequest      EventType = "urgent_request"
	EventBookingApproved    EventType = "booking_approved"
	EventBookingRejected    EventType = "booking_rejected"
	EventBookingRescheduled EventType = "booking_rescheduled"
	EventBookingCancelled   EventType = "booking_cancelled"
	EventPickupConfirmed    EventType = "pickup_confirmed"
	EventReturnConfirmed    EventType = "return_confirmed"
	EventEarlyReturn        EventType = "early_return"
	EventWaitlistRequested  EventType = "waitlist_requested"
)

// BookingSnapshot is the denormalized booking state carried on every
// notification so consumers never have to read the store.
type BookingSnapshot struct {
	BookingID       string    `json:"booking_id"`
	UnitID          string    `json:"unit_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	PropertyAddress string    `json:"property_address"`
	Status          string    `json:"status"`
	IsUrgent        bool      `json:"is_urgent"`
	AdminNotes      string    `json:"admin_notes,omitempty"`
}

type AgentContact struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type Event struct {
	Type      EventType       `json:"type"`
	Booking   BookingSnapshot `json:"booking"`
	Agent     AgentContact    `json:"agent"`
	AdminNote string          `json:"admin_note,omitempty"`
	// Extra carries structured context per event type, e.g. the agent
	// currently holding a contested slot on waitlist_requested.
	Extra map[string]any `json:"extra,omitempty"`
}

// NewEvent snapshots a booking into an event envelope.
func NewEvent(eventType EventType, b *model.Booking) Event {
	return Event{
		Type: eventType,
		Booking: BookingSnapshot{
			BookingID:       b.ID,
			UnitID:          b.UnitID,
			StartDate:       b.StartDate,
			EndDate:         b.EndDate,
			StartTime:       b.StartTime,
			EndTime:         b.EndTime,
			PropertyAddress: b.PropertyAddress,
			Status:          string(b.Status),
			IsUrgent:        b.IsUrgent,
			AdminNotes:      b.AdminNotes,
		},
		Agent: AgentContact{
			AgentID: b.AgentID,
			Name:    b.AgentName,
			Phone:   b.AgentPhone,
		},
	}
}

func (e Event) WithAdminNote(note string) Event {
	e.AdminNote = note
	return e
}

func (e Event) WithExtra(key string, value any) Event {
	if e.Extra == nil {
		e.Extra = map[string]any{}
	}
	e.Extra[key] = value
	return e
}
