// Package ids mints the ULID row keys used for sessions, attempts and request ids.
package ids

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// New returns an id stamped with the current time.
func New() string {
	return ulid.Make().String()
}

// NewAt returns an id whose timestamp component is t. Stores pass the service clock
// so ids sort the same way as created_at.
func NewAt(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// CreatedAt recovers the timestamp embedded in id.
func CreatedAt(id string) (time.Time, error) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()).UTC(), nil
}
