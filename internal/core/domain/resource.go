package domain

import "time"

type Resource struct {
	ID          string
	Title       string
	Description string
	Version     int64 // optimistic locking
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
