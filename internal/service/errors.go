package service

import "errors"

var (
	// ErrInvalidEmail rejects addresses that do not parse.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrUnknownSlot means the label is not in the consultant's availability.
	ErrUnknownSlot = errors.New("slot is not offered by this consultant")

	// ErrInvalidDate rejects dates that do not parse.
	ErrInvalidDate = errors.New("invalid booking date")

	// ErrRateLimited signals too many booking attempts from one address.
	ErrRateLimited = errors.New("too many booking attempts, try again later")

	// ErrUnknownPlan rejects plan ids outside the published set.
	ErrUnknownPlan = errors.New("unknown premium plan")

	// ErrReceiptRequired means a receipt reference is missing.
	ErrReceiptRequired = errors.New("receipt url is required")
)
