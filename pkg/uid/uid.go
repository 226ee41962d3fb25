package uid

import "github.com/google/uuid"

// New generates a random identifier used for session and request ids.
func New() string {
	return uuid.New().String()
}

// IsValid checks if a string is a valid UUID. Item ids from clients are
// validated with it before they reach the catalog.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
