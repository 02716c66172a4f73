package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSlotLabel(t *testing.T) {
	valid := []string{"10:00 AM", "9:30 AM", "1:00 PM", "11:45 PM"}
	for _, label := range valid {
		assert.NoError(t, ParseSlotLabel(label), label)
	}

	invalid := []string{"", "25:00 AM", "10:00", "morning", "10 AM"}
	for _, label := range invalid {
		assert.Error(t, ParseSlotLabel(label), label)
	}
}

func TestAppointmentTime(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	at, err := AppointmentTime(date, "10:00 AM", time.UTC)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), at)

	at, err = AppointmentTime(date, "2:30 PM", time.UTC)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC), at)

	_, err = AppointmentTime(date, "soon", time.UTC)
	assert.Error(t, err)
}

func TestPlanDuration(t *testing.T) {
	cases := map[string]int{
		PlanOneMonth:    30,
		PlanThreeMonths: 90,
		PlanOneYear:     365,
		PlanManual:      365,
	}
	for plan, days := range cases {
		d, ok := PlanDuration(plan)
		assert.True(t, ok, plan)
		assert.Equal(t, time.Duration(days)*24*time.Hour, d)
	}

	_, ok := PlanDuration("2weeks")
	assert.False(t, ok)
	_, ok = PlanDuration("")
	assert.False(t, ok)
}

func TestPremiumActive(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	u := &User{PremiumPlan: PlanOneYear, PremiumExpiresAt: &future}
	assert.True(t, u.PremiumActive(now))

	u.PremiumExpiresAt = &past
	assert.False(t, u.PremiumActive(now))

	// Stored flag alone never grants premium.
	u = &User{IsPremium: true}
	assert.False(t, u.PremiumActive(now))
}

func TestConsultantHasSlot(t *testing.T) {
	c := &Consultant{Availability: []string{"10:00 AM", "11:00 AM"}}
	assert.True(t, c.HasSlot("10:00 AM"))
	assert.False(t, c.HasSlot("12:00 PM"))
}

func TestSlotKey(t *testing.T) {
	b := &Booking{
		ConsultantID: 7,
		Date:         time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		TimeLabel:    "10:00 AM",
	}
	assert.Equal(t, "7/2025-03-01/10:00 AM", b.SlotKey())
}
