// Package actions stores the local episode action log of an account.
//
// The log is append-only and kept in (timestamp, insertion) order. An action
// is identified by models.ActionKey; appending an action that is already in
// the log is a no-op, which is what makes replayed sync cycles harmless.
package actions

import (
	"context"

	"github.com/dmitrijs2005/gposync/internal/client/models"
)

type Repository interface {
	// Append adds the actions missing from the log, in the given order, and
	// returns the ones actually inserted.
	Append(ctx context.Context, account string, actions []models.EpisodeAction) ([]models.EpisodeAction, error)
	// Known returns the subset of keys already present in the log.
	Known(ctx context.Context, account string, keys []models.ActionKey) (map[models.ActionKey]bool, error)
	// Remove deletes the given keys. It undoes an Append whose sync cycle
	// failed; missing keys are ignored.
	Remove(ctx context.Context, account string, keys []models.ActionKey) error
	// List returns the log entries matching filter, oldest first.
	List(ctx context.Context, account string, filter models.ActionFilter) ([]models.EpisodeAction, error)
}

// aggregate keeps only the latest action of every episode, preserving order.
func aggregate(in []models.EpisodeAction) []models.EpisodeAction {
	type episodeKey struct{ podcast, episode string }
	last := make(map[episodeKey]int, len(in))
	for i, a := range in {
		last[episodeKey{a.Podcast, a.Episode}] = i
	}
	out := make([]models.EpisodeAction, 0, len(last))
	for i, a := range in {
		if last[episodeKey{a.Podcast, a.Episode}] == i {
			out = append(out, a)
		}
	}
	return out
}
