package models

// ConflictSide says which side asked for what in a subscription conflict.
type ConflictSide string

const (
	// server added a URL the caller removed
	ConflictRemoteAdd ConflictSide = "remote_add"
	// server removed a URL the caller added
	ConflictRemoteRemove ConflictSide = "remote_remove"
)

// SubscriptionConflict records a URL both sides changed in opposite
// directions during one cycle and which side was kept.
type SubscriptionConflict struct {
	URL       string
	Side      ConflictSide
	LocalWins bool
}

// SubscriptionSyncResult is the outcome of one subscription sync cycle.
type SubscriptionSyncResult struct {
	Checkpoint       Checkpoint
	RemoteAdded      []string
	RemoteRemoved    []string
	ConfirmedAdded   []string
	ConfirmedRemoved []string
	Conflicts        []SubscriptionConflict
	UpdateURLs       []URLRewrite
	// Subscriptions is the local set after the merge.
	Subscriptions []string
}

// EpisodeSyncResult is the outcome of one episode action sync cycle.
type EpisodeSyncResult struct {
	Checkpoint Checkpoint
	// Applied holds the remote actions appended to the local log, in log order.
	Applied []EpisodeAction
	// Confirmed holds the local actions the server accepted.
	Confirmed  []EpisodeAction
	Skipped    int
	UpdateURLs []URLRewrite
}
