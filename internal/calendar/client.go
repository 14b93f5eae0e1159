package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"lenspool/pkg/client"
	"lenspool/pkg/logger"
	"lenspool/pkg/model"
)

// Sync mirrors custody windows into the external calendar provider.
// Every operation is best-effort: the caller stores whatever reference
// ids come back but never depends on them. The core must work
// identically with a Sync that always fails.
type Sync interface {
	CreateCustodyEvents(ctx context.Context, b *model.Booking, agentID, adminID, notes string) ([]string, error)
	UpdateCustodyEvents(ctx context.Context, b *model.Booking, agentID, adminID string, newWindow model.Window, notes string) error
	DeleteCustodyEvents(ctx context.Context, b *model.Booking, agentID, adminID string) error
	CompleteCustodyEvents(ctx context.Context, b *model.Booking, agentID, adminID string) error
}

type custodyEventRequest struct {
	BookingID string    `json:"booking_id"`
	UnitID    string    `json:"unit_id"`
	AgentID   string    `json:"agent_id"`
	AdminID   string    `json:"admin_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes,omitempty"`
	EventRefs []string  `json:"event_refs,omitempty"`
}

type custodyEventResponse struct {
	EventRefs []string `json:"event_refs"`
}

type httpSync struct {
	client *client.HttpClient
	log    *logger.Logger
}

func NewHTTPSync(baseURL string, log *logger.Logger) Sync {
	return &httpSync{
		client: client.NewHttpClient(baseURL),
		log:    log,
	}
}

func (s *httpSync) CreateCustodyEvents(ctx context.Context, b *model.Booking, agentID, adminID, notes string) ([]string, error) {
	resp, err := s.client.POST(ctx, "/v1/custody-events", s.payload(b, agentID, adminID, notes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar service returned status %d", resp.StatusCode)
	}

	var out custodyEventResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, fmt.Errorf("failed to decode calendar response: %w", err)
	}
	return out.EventRefs, nil
}

func (s *httpSync) UpdateCustodyEvents(ctx context.Context, b *model.Booking, agentID, adminID string, newWindow model.Window, notes string) error {
	payload := s.payload(b, agentID, adminID, notes)
	payload.StartDate = newWindow.StartDate
	payload.EndDate = newWindow.EndDate
	payload.StartTime = newWindow.StartTime
	payload.EndTime = newWindow.EndTime

	resp, err := s.client.PATCH(ctx, "/v1/custody-events/"+b.ID, payload)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("calendar service returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *httpSync) DeleteCustodyEvents(ctx context.Context, b *model.Booking, agentID, adminID string) error {
	resp, err := s.client.DELETE(ctx, "/v1/custody-events/"+b.ID)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("calendar service returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *httpSync) CompleteCustodyEvents(ctx context.Context, b *model.Booking, agentID, adminID string) error {
	resp, err := s.client.POST(ctx, "/v1/custody-events/"+b.ID+"/complete", s.payload(b, agentID, adminID, ""))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("calendar service returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *httpSync) payload(b *model.Booking, agentID, adminID, notes string) custodyEventRequest {
	return custodyEventRequest{
		BookingID: b.ID,
		UnitID:    b.UnitID,
		AgentID:   agentID,
		AdminID:   adminID,
		StartDate: b.StartDate,
		EndDate:   b.EndDate,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Address:   b.PropertyAddress,
		Notes:     notes,
		EventRefs: b.CalendarEventRefs,
	}
}

type disabledSync struct{}

// NewDisabledSync is used when no calendar base URL is configured.
func NewDisabledSync() Sync {
	return disabledSync{}
}

func (disabledSync) CreateCustodyEvents(context.Context, *model.Booking, string, string, string) ([]string, error) {
	return nil, nil
}

func (disabledSync) UpdateCustodyEvents(context.Context, *model.Booking, string, string, model.Window, string) error {
	return nil
}

func (disabledSync) DeleteCustodyEvents(context.Context, *model.Booking, string, string) error {
	return nil
}

func (disabledSync) CompleteCustodyEvents(context.Context, *model.Booking, string, string) error {
	return nil
}
