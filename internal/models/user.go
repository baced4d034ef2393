package models

import "time"

// User is a person who can own projects and be assigned tasks.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserFilters narrows a user listing.
type UserFilters struct {
	Query           string `json:"query" form:"q" validate:"max=200"`
	IncludeInactive bool   `json:"include_inactive" form:"include_inactive"`
}
