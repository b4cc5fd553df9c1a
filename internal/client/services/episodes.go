package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/gposync/internal/client/client"
	"github.com/dmitrijs2005/gposync/internal/client/codec"
	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/actions"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/checkpoints"
)

// EpisodeSyncRequest carries the locally recorded actions. A non-empty Filter
// downloads a slice of the log only; such cycles do not move the checkpoint
// because the actions outside the slice have not been merged.
type EpisodeSyncRequest struct {
	Device  string
	Actions []models.EpisodeAction
	Filter  models.ActionFilter
}

type EpisodeSyncer interface {
	Sync(ctx context.Context, req EpisodeSyncRequest) (*models.EpisodeSyncResult, error)
}

type episodeSyncer struct {
	api         client.Client
	checkpoints checkpoints.Repository
	store       actions.Repository
	opts        EngineOptions
}

func NewEpisodeSyncer(api client.Client, cps checkpoints.Repository, store actions.Repository, opts EngineOptions) EpisodeSyncer {
	return &episodeSyncer{api: api, checkpoints: cps, store: store, opts: opts.withDefaults()}
}

func (s *episodeSyncer) Sync(ctx context.Context, req EpisodeSyncRequest) (*models.EpisodeSyncResult, error) {
	device, err := s.opts.device(req.Device)
	if err != nil {
		return nil, err
	}
	batch := make([]models.EpisodeAction, 0, len(req.Actions))
	for _, a := range req.Actions {
		if a.Device == "" {
			a.Device = device
		}
		a = a.Normalize()
		if err := a.Validate(); err != nil {
			return nil, err
		}
		batch = append(batch, a)
	}

	account := s.api.Account()
	key := models.CheckpointKey{Account: account, Device: device, Resource: models.ResourceEpisodeActions}
	unlock, err := s.opts.Locks.Lock(ctx, key.String())
	if err != nil {
		return nil, syncError("lock", key, 0, err)
	}
	defer unlock()

	prev, err := s.checkpoints.Get(ctx, key)
	if err != nil {
		return nil, syncError("read checkpoint", key, 0, err)
	}
	since := models.CursorOf(prev)
	log := s.opts.Logger.With("resource", string(key.Resource), "device", device)
	log.Debug(ctx, "sync started", "since", since, "local", len(batch))

	res := &models.EpisodeSyncResult{}

	pending, skipped, err := s.fresh(ctx, account, batch)
	if err != nil {
		return nil, syncError("dedupe", key, since, err)
	}
	res.Skipped += skipped

	confirmed := map[models.ActionKey]bool{}
	if len(pending) > 0 {
		up, err := s.api.UploadEpisodeActions(ctx, pending)
		if err != nil {
			log.Warn(ctx, "upload failed", "since", since, "error", err)
			return nil, syncError("upload", key, since, err)
		}
		res.UpdateURLs = up.UpdateURLs
		res.Confirmed = rewriteActions(pending, up.UpdateURLs)
		for _, a := range pending {
			confirmed[a.Key()] = true
		}
		for _, a := range res.Confirmed {
			confirmed[a.Key()] = true
		}
	}

	page, err := s.api.EpisodeActions(ctx, since, req.Filter)
	if err != nil {
		log.Warn(ctx, "download failed", "since", since, "error", err)
		return nil, syncError("download", key, since, err)
	}

	remote := make([]models.EpisodeAction, 0, len(page.Actions))
	for _, a := range page.Actions {
		a = a.Normalize()
		if req.Filter.Match(a) && !confirmed[a.Key()] {
			remote = append(remote, a)
		}
	}
	sort.SliceStable(remote, func(i, j int) bool { return remote[i].Timestamp.Before(remote[j].Timestamp) })
	remote, skipped, err = s.fresh(ctx, account, remote)
	if err != nil {
		return nil, syncError("dedupe", key, since, err)
	}
	res.Skipped += skipped

	own, err := s.store.Append(ctx, account, res.Confirmed)
	if err != nil {
		return nil, syncError("append", key, since, err)
	}
	// from here on a failure removes what this cycle appended
	fail := func(op string, err error, appended ...[]models.EpisodeAction) error {
		var keys []models.ActionKey
		for _, batch := range appended {
			for _, a := range batch {
				keys = append(keys, a.Key())
			}
		}
		if len(keys) > 0 {
			if rerr := s.store.Remove(context.WithoutCancel(ctx), account, keys); rerr != nil {
				err = errors.Join(err, fmt.Errorf("failed to undo append: %w", rerr))
			}
		}
		log.Warn(ctx, "sync failed, appended actions removed", "op", op, "since", since, "error", err)
		return syncError(op, key, since, err)
	}

	applied, err := s.store.Append(ctx, account, remote)
	if err != nil {
		return nil, fail("append", err, own)
	}
	res.Applied = applied
	if res.Applied == nil {
		res.Applied = []models.EpisodeAction{}
	}

	if !req.Filter.Empty() {
		if prev != nil {
			res.Checkpoint = *prev
		}
		log.Info(ctx, "filtered sync finished", "since", since, "applied", len(res.Applied))
		return res, nil
	}

	next := nextCheckpoint(since, episodeCursor(since, page), s.opts.Now())
	if err := s.checkpoints.CompareAndSet(ctx, key, prev, next); err != nil {
		return nil, fail("store checkpoint", err, own, applied)
	}
	res.Checkpoint = next

	log.Info(ctx, "sync finished",
		"since", since, "checkpoint", next.Cursor,
		"uploaded", len(res.Confirmed), "applied", len(res.Applied), "skipped", res.Skipped)
	return res, nil
}

// fresh drops actions duplicated within in or already in the log. Order is
// preserved.
func (s *episodeSyncer) fresh(ctx context.Context, account string, in []models.EpisodeAction) ([]models.EpisodeAction, int, error) {
	if len(in) == 0 {
		return in, 0, nil
	}
	keys := make([]models.ActionKey, 0, len(in))
	for _, a := range in {
		keys = append(keys, a.Key())
	}
	known, err := s.store.Known(ctx, account, keys)
	if err != nil {
		return nil, 0, err
	}
	seen := make(map[models.ActionKey]bool, len(in))
	out := make([]models.EpisodeAction, 0, len(in))
	for _, a := range in {
		k := a.Key()
		if known[k] || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a)
	}
	return out, len(in) - len(out), nil
}

// episodeCursor prefers the server's cursor; without one the newest action
// timestamp of the page stands in.
func episodeCursor(since int64, page *codec.EpisodeActionsResponse) int64 {
	if page.Timestamp != nil {
		return *page.Timestamp
	}
	cursor := since
	for _, a := range page.Actions {
		if ts := a.Timestamp.Unix(); ts > cursor {
			cursor = ts
		}
	}
	return cursor
}

func rewriteActions(in []models.EpisodeAction, rw []models.URLRewrite) []models.EpisodeAction {
	out := make([]models.EpisodeAction, 0, len(in))
	if len(rw) == 0 {
		return append(out, in...)
	}
	m := make(map[string]string, len(rw))
	for _, r := range rw {
		m[r.Old] = r.New
	}
	for _, a := range in {
		if n, ok := m[a.Podcast]; ok && n != "" {
			a.Podcast = n
		}
		if n, ok := m[a.Episode]; ok && n != "" {
			a.Episode = n
		}
		out = append(out, a)
	}
	return out
}
