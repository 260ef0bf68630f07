package ids

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// MaxRequestIDLength bounds client-supplied request identifiers.
const MaxRequestIDLength = 128

// New returns a lexicographically sortable identifier. ulid.Make draws from
// a process-wide monotonic entropy source that is safe for concurrent use.
func New() string {
	return ulid.Make().String()
}

// Time extracts the creation time encoded in an id produced by New.
func Time(id string) (time.Time, bool) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(u.Time()), true
}

// RequestID returns the trimmed client value when usable, otherwise a new id.
func RequestID(clientValue string) string {
	v := strings.TrimSpace(clientValue)
	if v == "" {
		return New()
	}
	if len(v) > MaxRequestIDLength {
		v = v[:MaxRequestIDLength]
	}
	return v
}
