package models

import "time"

// ClientCredential is the OAuth application registered on one instance.
type ClientCredential struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// AccessToken is the single bearer token of the system together with the
// instance it was issued by.
type AccessToken struct {
	Instance  string    `json:"instance"`
	Token     string    `json:"access_token"`
	Scope     string    `json:"scope,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PublishedStatus identifies a status created on the instance.
type PublishedStatus struct {
	ID         string     `json:"id"`
	URL        string     `json:"url,omitempty"`
	Visibility Visibility `json:"visibility,omitempty"`
}
