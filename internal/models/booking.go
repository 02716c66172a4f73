package models

import (
	"fmt"
	"time"
)

type Booking struct {
	ID              int64     `json:"id"`
	ConsultantID    int64     `json:"consultant_id"`
	ConsultantName  string    `json:"consultant_name"`
	ConsultantEmail string    `json:"consultant_email"`
	Date            time.Time `json:"date"` // date-only, local midnight
	TimeLabel       string    `json:"time_label"`
	UserEmail       string    `json:"user_email"`
	CreatedAt       time.Time `json:"created_at"`
}

// BookingRequest is the inbound reservation payload before validation.
type BookingRequest struct {
	ConsultantID int64  `json:"consultant_id"`
	Date         string `json:"date"`
	TimeLabel    string `json:"time_label"`
	UserEmail    string `json:"user_email"`
	UserName     string `json:"user_name,omitempty"`
	UserMobile   string `json:"user_mobile,omitempty"`
}

// SlotStatus pairs a slot label with its availability for a given date.
type SlotStatus struct {
	TimeLabel string `json:"time_label"`
	Available bool   `json:"available"`
}

// DateFormat is the storage and wire format for booking dates.
const DateFormat = "2006-01-02"

// slotLayout parses labels like "10:00 AM" or "9:30 PM".
const slotLayout = "3:04 PM"

// ParseSlotLabel validates a slot label of the "10:00 AM" form.
func ParseSlotLabel(label string) error {
	if _, err := time.Parse(slotLayout, label); err != nil {
		return fmt.Errorf("invalid time label %q: %w", label, err)
	}
	return nil
}

// AppointmentTime combines a booking date and slot label into a wall-clock
// appointment time in loc.
func AppointmentTime(date time.Time, label string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(slotLayout, label)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time label %q: %w", label, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// SlotKey identifies the slot a booking claims. At most one booking may
// hold a given key.
func (b *Booking) SlotKey() string {
	return fmt.Sprintf("%d/%s/%s", b.ConsultantID, b.Date.Format(DateFormat), b.TimeLabel)
}
