package models

import (
	"time"

	"github.com/google/uuid"
)

type EventLevel string

const (
	LevelInfo EventLevel = "info"
	LevelWarn EventLevel = "warn"
	LevelCrit EventLevel = "crit"
)

// Event records one status transition for a (host, check) pair. The event
// log is transition-only: a check that keeps failing produces a single
// event when it first fails, not one per tick.
type Event struct {
	ID      uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TS      time.Time  `gorm:"not null;index" json:"ts"`
	Level   EventLevel `gorm:"not null" json:"level"`
	HostID  *uuid.UUID `gorm:"type:uuid;index" json:"host_id,omitempty"`
	Check   string     `gorm:"not null" json:"check"`
	Status  string     `gorm:"not null" json:"status"`
	Message string     `json:"message"`
}
