package internal

import "github.com/google/uuid"

// GenerateID returns a new time-ordered identifier. Identifiers generated later sort after
// identifiers generated earlier.
func GenerateID() string {
	return uuid.Must(uuid.NewV7()).String()
}
