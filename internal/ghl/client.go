// Package ghl is a minimal LeadConnector (GoHighLevel) REST client covering the
// contact and calendar calls the routing workflow needs.
package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"voice-routing/internal/calendar"
	"voice-routing/internal/config"
	"voice-routing/internal/contacts"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL          string
	token            string
	contactsVersion  string
	calendarsVersion string

	httpClient *http.Client
}

// New builds a client from validated config. httpClient may be nil.
func New(cfg config.GHLConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:          cfg.BaseURL,
		token:            cfg.Token,
		contactsVersion:  cfg.ContactsVersion,
		calendarsVersion: cfg.CalendarsVersion,
		httpClient:       httpClient,
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("ghl %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
	}
	return fmt.Sprintf("ghl %s %s: status %d", e.Method, e.Path, e.Status)
}

const maxErrorBody = 512

func (c *Client) do(ctx context.Context, method, path, version string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Version", version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(raw)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: msg}
	}
	return raw, nil
}

type searchFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type searchRequest struct {
	LocationID string         `json:"locationId"`
	Page       int            `json:"page"`
	PageLimit  int            `json:"pageLimit"`
	Filters    []searchFilter `json:"filters"`
}

type contactDTO struct {
	ID         string `json:"id"`
	Phone      string `json:"phone"`
	LocationID string `json:"locationId"`
}

// SearchByPhone runs a "contains" phone search over the first page of results.
func (c *Client) SearchByPhone(ctx context.Context, phone, locationID string) ([]contacts.Contact, error) {
	raw, err := c.do(ctx, http.MethodPost, "/contacts/search", c.contactsVersion, searchRequest{
		LocationID: locationID,
		Page:       1,
		PageLimit:  20,
		Filters:    []searchFilter{{Field: "phone", Operator: "contains", Value: phone}},
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Contacts []contactDTO `json:"contacts"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("ghl: decode contact search: %w", err)
	}
	res := make([]contacts.Contact, 0, len(out.Contacts))
	for _, d := range out.Contacts {
		res = append(res, contacts.Contact{ID: d.ID, Phone: d.Phone, LocationID: d.LocationID})
	}
	return res, nil
}

// Create creates a contact carrying only the phone number.
func (c *Client) Create(ctx context.Context, phone, locationID string) (contacts.Contact, error) {
	raw, err := c.do(ctx, http.MethodPost, "/contacts/", c.contactsVersion, map[string]string{
		"phone":      phone,
		"locationId": locationID,
	})
	if err != nil {
		return contacts.Contact{}, err
	}
	var out struct {
		Contact contactDTO `json:"contact"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return contacts.Contact{}, fmt.Errorf("ghl: decode contact: %w", err)
	}
	return contacts.Contact{ID: out.Contact.ID, Phone: phone, LocationID: locationID}, nil
}

// FreeSlots returns the raw slot strings for dayKey within [start, end).
// The API groups slots by date: {"2025-03-10": {"slots": [...]}}.
func (c *Client) FreeSlots(ctx context.Context, calendarID string, start, end time.Time, dayKey string) ([]string, error) {
	q := url.Values{}
	q.Set("startDate", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("endDate", strconv.FormatInt(end.UnixMilli(), 10))
	path := "/calendars/" + url.PathEscape(calendarID) + "/free-slots?" + q.Encode()

	raw, err := c.do(ctx, http.MethodGet, path, c.calendarsVersion, nil)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("ghl: decode free slots: %w", err)
	}
	day, ok := out[dayKey]
	if !ok {
		return nil, nil
	}
	var slots struct {
		Slots []string `json:"slots"`
	}
	if err := json.Unmarshal(day, &slots); err != nil {
		return nil, fmt.Errorf("ghl: decode free slots for %s: %w", dayKey, err)
	}
	return slots.Slots, nil
}

type appointmentBody struct {
	CalendarID string `json:"calendarId"`
	LocationID string `json:"locationId"`
	ContactID  string `json:"contactId"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// CreateAppointment books an event. Start and end are sent as UTC ISO-8601 with milliseconds.
func (c *Client) CreateAppointment(ctx context.Context, req calendar.AppointmentRequest) (calendar.Appointment, error) {
	raw, err := c.do(ctx, http.MethodPost, "/calendars/events/appointments", c.calendarsVersion, appointmentBody{
		CalendarID: req.CalendarID,
		LocationID: req.LocationID,
		ContactID:  req.ContactID,
		StartTime:  formatUTC(req.StartTime),
		EndTime:    formatUTC(req.EndTime),
	})
	if err != nil {
		return calendar.Appointment{}, err
	}

	var out struct {
		ID         string `json:"id"`
		CalendarID string `json:"calendarId"`
		LocationID string `json:"locationId"`
		ContactID  string `json:"contactId"`
		StartTime  string `json:"startTime"`
		EndTime    string `json:"endTime"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return calendar.Appointment{}, fmt.Errorf("ghl: decode appointment: %w", err)
	}
	return calendar.Appointment{
		ID:         out.ID,
		CalendarID: out.CalendarID,
		LocationID: out.LocationID,
		ContactID:  out.ContactID,
		StartTime:  parseTime(out.StartTime),
		EndTime:    parseTime(out.EndTime),
		Raw:        json.RawMessage(raw),
	}, nil
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func formatUTC(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// parseTime returns the zero time for anything that is not RFC 3339.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
