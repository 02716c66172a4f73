package models

import "time"

// User carries the account identity together with its premium entitlement
// fields. The premium flag is never trusted as stored: it is re-derived from
// plan + expiry on every status read.
type User struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Mobile           string     `json:"mobile,omitempty"`
	IsPremium        bool       `json:"is_premium"`
	PremiumPlan      string     `json:"premium_plan,omitempty"`
	PremiumStartedAt *time.Time `json:"premium_started_at,omitempty"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty"`
	ReceiptURL       string     `json:"receipt_url,omitempty"`
	ReceiptStatus    string     `json:"receipt_status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EntitlementStatus is the snapshot served to feature gates.
type EntitlementStatus struct {
	Email         string     `json:"email"`
	IsPremium     bool       `json:"is_premium"`
	Plan          string     `json:"plan,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ReceiptStatus string     `json:"receipt_status"`
}

// PremiumActive derives the entitlement from plan and expiry at the given
// instant. The stored flag is ignored on purpose.
func (u *User) PremiumActive(now time.Time) bool {
	return u.PremiumPlan != "" && u.PremiumExpiresAt != nil && now.Before(*u.PremiumExpiresAt)
}
