package friendship

import (
	"time"

	"github.com/mvigil90/oc-friends/internal/models"
)

// CanonicalPair orders two user ids so the smaller comes first.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Canonicalize puts f into stored order in place. When the users are swapped a
// pending status is reversed so the request keeps pointing the same way.
func Canonicalize(f *models.Friendship) {
	if f.FriendUID2 < f.FriendUID1 {
		f.FriendUID1, f.FriendUID2 = f.FriendUID2, f.FriendUID1
		f.Status = f.Status.Reversed()
	}
}

// Clock supplies the timestamp stamped on mutated rows.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reports the current UTC time at microsecond precision, the
// resolution PostgreSQL stores.
var SystemClock Clock = ClockFunc(func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
})
