package ports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPCalendar implements CalendarPort against a generic calendar webhook
// (the platform's calendar provider exposes a simple create/cancel REST
// endpoint rather than a client SDK, so this talks to it directly over
// net/http; no calendar-specific client library appears anywhere in the
// example pack to ground an alternative on).
type HTTPCalendar struct {
	baseURL string
	client  *http.Client
}

// freeBusyTimeout bounds how long a calendar round trip may take before the
// Orchestrator gives up and proceeds without a calendar hold.
const freeBusyTimeout = 5 * time.Second

func NewHTTPCalendar(baseURL string) *HTTPCalendar {
	return &HTTPCalendar{
		baseURL: baseURL,
		client:  &http.Client{Timeout: freeBusyTimeout},
	}
}

type createEventRequest struct {
	BookingID string    `json:"booking_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Attendees []string  `json:"attendees"`
}

type createEventResponse struct {
	EventID string `json:"event_id"`
}

func (c *HTTPCalendar) CreateEvent(ctx context.Context, bookingID uuid.UUID, start, end time.Time, attendees []string) (string, error) {
	body, err := json.Marshal(createEventRequest{
		BookingID: bookingID.String(),
		Start:     start,
		End:       end,
		Attendees: attendees,
	})
	if err != nil {
		return "", fmt.Errorf("calendar: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("calendar: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("calendar: unexpected status %d", resp.StatusCode)
	}

	var out createEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("calendar: failed to decode response: %w", err)
	}
	return out.EventID, nil
}

func (c *HTTPCalendar) CancelEvent(ctx context.Context, eventID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/events/"+eventID, nil)
	if err != nil {
		return fmt.Errorf("calendar: failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calendar: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("calendar: unexpected status %d", resp.StatusCode)
	}
	return nil
}
