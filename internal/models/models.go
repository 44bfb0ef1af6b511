package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Status is the lifecycle state of a friendship row.
type Status int

const (
	StatusUID1RequestsUID2 Status = 1
	StatusUID2RequestsUID1 Status = 2
	StatusAccepted         Status = 3
	StatusDeleted          Status = 4
)

var statusNames = map[Status]string{
	StatusUID1RequestsUID2: "uid1_requests_uid2",
	StatusUID2RequestsUID1: "uid2_requests_uid1",
	StatusAccepted:         "accepted",
	StatusDeleted:          "deleted",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Pending reports whether the status is one of the two request states.
func (s Status) Pending() bool {
	return s == StatusUID1RequestsUID2 || s == StatusUID2RequestsUID1
}

// Reversed returns the status as seen with the two users swapped.
func (s Status) Reversed() Status {
	switch s {
	case StatusUID1RequestsUID2:
		return StatusUID2RequestsUID1
	case StatusUID2RequestsUID1:
		return StatusUID1RequestsUID2
	default:
		return s
	}
}

// Value stores the status as its integer code.
func (s Status) Value() (driver.Value, error) {
	return int64(s), nil
}

// MarshalText renders the status by name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown friendship status %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown friendship status %q", string(text))
}

// Friendship is the relationship between two distinct users. Stored rows keep
// FriendUID1 < FriendUID2.
type Friendship struct {
	FriendUID1 string    `json:"friendUid1"`
	FriendUID2 string    `json:"friendUid2"`
	Status     Status    `json:"status"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Requester returns the user who sent the pending request, or "" when the
// friendship is not pending.
func (f Friendship) Requester() string {
	switch f.Status {
	case StatusUID1RequestsUID2:
		return f.FriendUID1
	case StatusUID2RequestsUID1:
		return f.FriendUID2
	default:
		return ""
	}
}

// Recipient returns the user a pending request is addressed to.
func (f Friendship) Recipient() string {
	switch f.Status {
	case StatusUID1RequestsUID2:
		return f.FriendUID2
	case StatusUID2RequestsUID1:
		return f.FriendUID1
	default:
		return ""
	}
}

// Other returns the counterpart of userID in the pair.
func (f Friendship) Other(userID string) string {
	if f.FriendUID1 == userID {
		return f.FriendUID2
	}
	return f.FriendUID1
}
