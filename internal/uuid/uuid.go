// Package uuid generates and validates the v4 UUIDs used as primary keys
// across every record table and snapshot array.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a fresh random UUID v4 in canonical dashed form.
func New() string {
	return uuid.New().String()
}

// IsValid reports whether s is a canonical dashed UUID v4. Anything else
// — other versions, urn: prefixes, braces, raw hex — is rejected, since
// record ids are always written in this one form.
func IsValid(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4 && id.Variant() == uuid.RFC4122
}

// Validate returns an error describing why s is not a valid record id, or
// nil if it is.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid UUID v4 format: %q", s)
	}
	return nil
}
