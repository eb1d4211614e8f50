package models

// Identity is the authenticated subject of a session.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
