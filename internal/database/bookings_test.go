package database

import (
	"context"
	"testing"
	"time"

	"careerbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBooking(consultantID int64, date, label, userEmail string) *models.Booking {
	d, _ := time.Parse(models.DateFormat, date)
	return &models.Booking{
		ConsultantID:    consultantID,
		ConsultantName:  "Alice Advisor",
		ConsultantEmail: "alice@x.com",
		Date:            d,
		TimeLabel:       label,
		UserEmail:       userEmail,
	}
}

func TestReserveSlot(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	booking := makeBooking(1, "2025-03-01", "10:00 AM", "first@x.com")
	err := db.ReserveSlot(ctx, booking)
	require.NoError(t, err)
	assert.NotZero(t, booking.ID)
	assert.False(t, booking.CreatedAt.IsZero())

	stored, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "first@x.com", stored.UserEmail)
	assert.Equal(t, "10:00 AM", stored.TimeLabel)
	assert.Equal(t, "2025-03-01", stored.Date.Format(models.DateFormat))
}

func TestReserveSlot_Conflict(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	// First caller wins the slot.
	err := db.ReserveSlot(ctx, makeBooking(1, "2025-03-01", "10:00 AM", "first@x.com"))
	require.NoError(t, err)

	// Second caller for the same slot loses.
	second := makeBooking(1, "2025-03-01", "10:00 AM", "second@x.com")
	err = db.ReserveSlot(ctx, second)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Zero(t, second.ID)

	// A different slot on the same date is still free.
	err = db.ReserveSlot(ctx, makeBooking(1, "2025-03-01", "11:00 AM", "third@x.com"))
	assert.NoError(t, err)

	// Same label on another date is free too.
	err = db.ReserveSlot(ctx, makeBooking(1, "2025-03-02", "10:00 AM", "second@x.com"))
	assert.NoError(t, err)

	// As is the same label with another consultant.
	err = db.ReserveSlot(ctx, makeBooking(2, "2025-03-01", "10:00 AM", "second@x.com"))
	assert.NoError(t, err)
}

func TestBookedSlots(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	date, _ := time.Parse(models.DateFormat, "2025-03-01")

	labels, err := db.BookedSlots(ctx, 1, date)
	require.NoError(t, err)
	assert.Empty(t, labels)

	require.NoError(t, db.ReserveSlot(ctx, makeBooking(1, "2025-03-01", "10:00 AM", "a@x.com")))
	require.NoError(t, db.ReserveSlot(ctx, makeBooking(1, "2025-03-01", "2:00 PM", "b@x.com")))
	require.NoError(t, db.ReserveSlot(ctx, makeBooking(2, "2025-03-01", "10:00 AM", "c@x.com")))

	labels, err = db.BookedSlots(ctx, 1, date)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"10:00 AM", "2:00 PM"}, labels)
}

func TestGetBookingsByDateRange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.ReserveSlot(ctx, makeBooking(1, "2025-03-01", "10:00 AM", "a@x.com")))
	require.NoError(t, db.ReserveSlot(ctx, makeBooking(1, "2025-03-05", "10:00 AM", "b@x.com")))
	require.NoError(t, db.ReserveSlot(ctx, makeBooking(1, "2025-03-10", "10:00 AM", "c@x.com")))

	start, _ := time.Parse(models.DateFormat, "2025-03-01")
	end, _ := time.Parse(models.DateFormat, "2025-03-05")

	bookings, err := db.GetBookingsByDateRange(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "a@x.com", bookings[0].UserEmail)
	assert.Equal(t, "b@x.com", bookings[1].UserEmail)
}

func TestGetDailyBookings(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.ReserveSlot(ctx, makeBooking(1, "2025-03-01", "10:00 AM", "a@x.com")))
	require.NoError(t, db.ReserveSlot(ctx, makeBooking(1, "2025-03-01", "11:00 AM", "b@x.com")))
	require.NoError(t, db.ReserveSlot(ctx, makeBooking(1, "2025-03-02", "10:00 AM", "c@x.com")))

	start, _ := time.Parse(models.DateFormat, "2025-03-01")
	end, _ := time.Parse(models.DateFormat, "2025-03-02")

	daily, err := db.GetDailyBookings(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Len(t, daily["2025-03-01"], 2)
	assert.Len(t, daily["2025-03-02"], 1)
}

func TestGetUserBookings(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	upcoming := time.Now().AddDate(0, 0, 7).Format(models.DateFormat)
	longGone := time.Now().AddDate(0, 0, -30).Format(models.DateFormat)

	require.NoError(t, db.ReserveSlot(ctx, makeBooking(1, upcoming, "10:00 AM", "me@x.com")))
	require.NoError(t, db.ReserveSlot(ctx, makeBooking(1, longGone, "10:00 AM", "me@x.com")))
	require.NoError(t, db.ReserveSlot(ctx, makeBooking(1, upcoming, "11:00 AM", "other@x.com")))

	bookings, err := db.GetUserBookings(ctx, "me@x.com")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, upcoming, bookings[0].Date.Format(models.DateFormat))
}
