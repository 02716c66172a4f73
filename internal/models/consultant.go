package models

import "time"

// Consultant is loaded from configs/consultants.yaml and cached by the
// database layer. The availability list is the closed set of slot labels
// the consultant can be booked for on any date.
type Consultant struct {
	ID           int64     `yaml:"id" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	Email        string    `yaml:"email" json:"email"`
	Role         string    `yaml:"role" json:"role"`
	Expertise    string    `yaml:"expertise" json:"expertise,omitempty"`
	Bio          string    `yaml:"bio" json:"bio,omitempty"`
	Availability []string  `yaml:"availability" json:"availability"`
	IsActive     bool      `yaml:"is_active" json:"is_active"`
	SortOrder    int64     `yaml:"sort_order" json:"sort_order"`
	CreatedAt    time.Time `yaml:"created_at" json:"created_at"`
}

// HasSlot reports whether label is one of the consultant's published slots.
func (c *Consultant) HasSlot(label string) bool {
	for _, s := range c.Availability {
		if s == label {
			return true
		}
	}
	return false
}
