package notifier

import (
	"fmt"

	"careerbook/internal/models"
)

// Email is a rendered message ready for a Mailer.
type Email struct {
	To      []string
	Subject string
	Body    string
}

// BookingConfirmation goes to the user and the consultant right after a
// slot is reserved.
func BookingConfirmation(booking *models.Booking) Email {
	date := booking.Date.Format("Monday, January 2, 2006")
	body := fmt.Sprintf(
		"Your consultation is booked.\n\n"+
			"Consultant: %s\n"+
			"Date: %s\n"+
			"Time: %s\n\n"+
			"You will receive a reminder before the session.",
		booking.ConsultantName, date, booking.TimeLabel,
	)
	return Email{
		To:      []string{booking.UserEmail, booking.ConsultantEmail},
		Subject: fmt.Sprintf("Consultation confirmed: %s at %s", date, booking.TimeLabel),
		Body:    body,
	}
}

// BookingReminder goes to both parties ahead of the appointment.
func BookingReminder(payload *models.ReminderPayload) Email {
	body := fmt.Sprintf(
		"This is a reminder for your upcoming consultation.\n\n"+
			"Consultant: %s\n"+
			"Date: %s\n"+
			"Time: %s\n",
		payload.ConsultantName, payload.Date, payload.TimeLabel,
	)
	return Email{
		To:      []string{payload.UserEmail, payload.ConsultantEmail},
		Subject: fmt.Sprintf("Reminder: consultation on %s at %s", payload.Date, payload.TimeLabel),
		Body:    body,
	}
}

// ReceiptSubmitted alerts the admin inbox that a payment proof is waiting
// for review.
func ReceiptSubmitted(adminEmail string, user *models.User) Email {
	body := fmt.Sprintf(
		"A payment receipt is awaiting review.\n\n"+
			"User: %s <%s>\n"+
			"Receipt: %s\n",
		user.Name, user.Email, user.ReceiptURL,
	)
	return Email{
		To:      []string{adminEmail},
		Subject: fmt.Sprintf("Receipt pending review: %s", user.Email),
		Body:    body,
	}
}

// PremiumApproved tells the user their plan is active.
func PremiumApproved(user *models.User) Email {
	body := fmt.Sprintf("Hi %s,\n\nYour premium membership is now active.\n", user.Name)
	if user.PremiumExpiresAt != nil {
		body += fmt.Sprintf("Plan: %s\nValid until: %s\n",
			user.PremiumPlan, user.PremiumExpiresAt.Format("January 2, 2006"))
	}
	return Email{
		To:      []string{user.Email},
		Subject: "Your premium membership is active",
		Body:    body,
	}
}

// PremiumDenied tells the user their receipt was rejected.
func PremiumDenied(user *models.User) Email {
	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"We could not verify your payment receipt. Please submit a new one "+
			"or contact support if you believe this is a mistake.\n",
		user.Name,
	)
	return Email{
		To:      []string{user.Email},
		Subject: "Payment receipt could not be verified",
		Body:    body,
	}
}
