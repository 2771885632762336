package models

import "time"

// Reading status constants for unauthenticated reading-list entries.
const (
	StatusUnread   = "unread"
	StatusReading  = "reading"
	StatusFinished = "finished"
)

var ValidStatuses = []string{StatusUnread, StatusReading, StatusFinished}

func StatusValid(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Entry is a flat reading-list item with no ownership concept.
// Status transitions are not enforced; any status may be set via update.
type Entry struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Author     string     `json:"author,omitempty"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
