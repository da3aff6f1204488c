package utils

import "github.com/google/uuid"

// GenID returns a fresh opaque identifier, such as a generated inbox
// address.
func GenID() string {
	return uuid.NewString()
}
