package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AppointmentDuration is fixed; end is always start plus this.
const AppointmentDuration = 30 * time.Minute

var ErrBookingFailed = errors.New("calendar: booking failed")

// AppointmentRequest is what gets sent to the calendar service.
// Times are always UTC.
type AppointmentRequest struct {
	CalendarID string    `json:"calendarId"`
	LocationID string    `json:"locationId"`
	ContactID  string    `json:"contactId"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
}

// Appointment is a booked calendar event.
type Appointment struct {
	ID         string    `json:"id,omitempty"`
	CalendarID string    `json:"calendarId"`
	LocationID string    `json:"locationId"`
	ContactID  string    `json:"contactId"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`

	// Raw is the calendar service's response body, passed through to webhook callers.
	Raw json.RawMessage `json:"-"`
}

// AppointmentCreator is the calendar service's booking call.
type AppointmentCreator interface {
	CreateAppointment(ctx context.Context, req AppointmentRequest) (Appointment, error)
}

// Booker commits a chosen slot. It never retries: availability was checked, not
// locked, so a retry after an ambiguous failure could double-book.
type Booker struct {
	Creator AppointmentCreator
	Timeout time.Duration

	Observer Observer
}

func NewBooker(creator AppointmentCreator, timeout time.Duration) *Booker {
	return &Booker{Creator: creator, Timeout: timeout}
}

// Book creates the appointment. Every failure, including a timeout, wraps ErrBookingFailed.
func (b *Booker) Book(ctx context.Context, calendarID, locationID string, start time.Time, contactID string) (Appointment, error) {
	if b == nil || b.Creator == nil {
		return Appointment{}, fmt.Errorf("%w: creator not configured", ErrBookingFailed)
	}
	if calendarID == "" || contactID == "" || start.IsZero() {
		return Appointment{}, fmt.Errorf("%w: calendar_id, contact_id and start required", ErrBookingFailed)
	}

	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	startUTC := start.UTC()
	req := AppointmentRequest{
		CalendarID: calendarID,
		LocationID: locationID,
		ContactID:  contactID,
		StartTime:  startUTC,
		EndTime:    startUTC.Add(AppointmentDuration),
	}

	began := time.Now()
	appt, err := b.Creator.CreateAppointment(ctx, req)
	if b.Observer != nil {
		b.Observer.ObserveUpstream("calendar", "create_appointment", err, time.Since(began))
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("%w: %v", ErrBookingFailed, err)
	}

	// Fill what the service did not echo back.
	if appt.CalendarID == "" {
		appt.CalendarID = req.CalendarID
	}
	if appt.LocationID == "" {
		appt.LocationID = req.LocationID
	}
	if appt.ContactID == "" {
		appt.ContactID = req.ContactID
	}
	if appt.StartTime.IsZero() {
		appt.StartTime = req.StartTime
	}
	if appt.EndTime.IsZero() {
		appt.EndTime = req.EndTime
	}
	return appt, nil
}
