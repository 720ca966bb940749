package model

import "time"

// Client is a storefront customer, keyed by phone number.
type Client struct {
	Phone             string     `json:"phone"`
	Name              string     `json:"name"`
	ManychatID        string     `json:"manychat_id,omitempty"`
	ManychatUpdatedAt *time.Time `json:"manychat_updated_at,omitempty"`
	Email             string     `json:"email,omitempty"`
	Birthdate         string     `json:"birthdate,omitempty"`
}
