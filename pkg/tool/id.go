package tool

import (
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateTraceID is used when an inbound request carries no X-Request-ID.
func GenerateTraceID() string {
	return uuid.NewString()
}

// GenerateReferralCode returns a short, case-insensitive code taken from the
// random tail of a ULID.
func GenerateReferralCode() string {
	id := ulid.Make().String()
	return strings.ToUpper(id[len(id)-10:])
}
