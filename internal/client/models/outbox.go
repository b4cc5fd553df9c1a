package models

import "time"

// OutboxKind is the type of a queued local change.
type OutboxKind string

const (
	OutboxSubscribe   OutboxKind = "subscribe"
	OutboxUnsubscribe OutboxKind = "unsubscribe"
	OutboxAction      OutboxKind = "action"
)

// OutboxEntry is a local change waiting for the next sync. URL is set for
// subscribe/unsubscribe, Action for action entries.
type OutboxEntry struct {
	ID        string
	Device    string
	Kind      OutboxKind
	URL       string
	Action    *EpisodeAction
	CreatedAt time.Time
}

// PendingSubscriptions folds queued subscribe/unsubscribe entries into a
// single diff. The latest entry for a URL wins, so the result never holds a
// URL in both sets.
func PendingSubscriptions(entries []OutboxEntry) SubscriptionChange {
	state := make(map[string]bool)
	var order []string
	for _, e := range entries {
		var add bool
		switch e.Kind {
		case OutboxSubscribe:
			add = true
		case OutboxUnsubscribe:
		default:
			continue
		}
		if _, seen := state[e.URL]; !seen {
			order = append(order, e.URL)
		}
		state[e.URL] = add
	}
	var ch SubscriptionChange
	for _, u := range order {
		if state[u] {
			ch.Add = append(ch.Add, u)
		} else {
			ch.Remove = append(ch.Remove, u)
		}
	}
	return ch
}

// PendingActions returns the queued episode actions in queue order.
func PendingActions(entries []OutboxEntry) []EpisodeAction {
	var out []EpisodeAction
	for _, e := range entries {
		if e.Kind == OutboxAction && e.Action != nil {
			out = append(out, *e.Action)
		}
	}
	return out
}

// IDsOf returns the IDs of the entries of the given kinds.
func IDsOf(entries []OutboxEntry, kinds ...OutboxKind) []string {
	var ids []string
	for _, e := range entries {
		for _, k := range kinds {
			if e.Kind == k {
				ids = append(ids, e.ID)
				break
			}
		}
	}
	return ids
}
