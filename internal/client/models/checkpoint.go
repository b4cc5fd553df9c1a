package models

import "time"

// ResourceClass names an independently checkpointed sync stream.
type ResourceClass string

const (
	ResourceSubscriptions  ResourceClass = "subscriptions"
	ResourceEpisodeActions ResourceClass = "episode_actions"
)

// CheckpointKey identifies one sync stream.
type CheckpointKey struct {
	Account  string
	Device   string
	Resource ResourceClass
}

func (k CheckpointKey) String() string {
	return k.Account + "/" + k.Device + "/" + string(k.Resource)
}

// Checkpoint is the server cursor after the last successful sync of a stream.
// The cursor is opaque apart from ordering: a newer checkpoint never carries a
// smaller cursor.
type Checkpoint struct {
	Cursor    int64
	UpdatedAt time.Time
}

// CursorOf returns the cursor of cp, or 0 ("since the beginning") when cp is nil.
func CursorOf(cp *Checkpoint) int64 {
	if cp == nil {
		return 0
	}
	return cp.Cursor
}
