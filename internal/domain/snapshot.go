package domain

import "time"

// SnapshotInfo describes a stored capture without exposing its state.
type SnapshotInfo struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description,omitempty"`
	Size        int       `json:"size"`
}
