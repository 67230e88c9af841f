package domain

import "time"

type ChangeKind string

const (
	ChangeKindCreated ChangeKind = "created"
	ChangeKindUpdated ChangeKind = "updated"
	ChangeKindDeleted ChangeKind = "deleted"
)

// Change records a successful mutation for the async audit journal.
type Change struct {
	Kind       ChangeKind
	ResourceID string
	Version    int64
	At         time.Time
}
