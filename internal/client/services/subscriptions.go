package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/gposync/internal/client/client"
	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/checkpoints"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/subscriptions"
)

// SubscriptionSyncRequest carries the device's pending changes. Both sets may
// be empty, which makes the cycle download-only.
type SubscriptionSyncRequest struct {
	Device  string
	Added   []string
	Removed []string
}

type SubscriptionSyncer interface {
	Sync(ctx context.Context, req SubscriptionSyncRequest) (*models.SubscriptionSyncResult, error)
}

type subscriptionSyncer struct {
	api         client.Client
	checkpoints checkpoints.Repository
	subs        subscriptions.Repository
	opts        EngineOptions
}

func NewSubscriptionSyncer(api client.Client, cps checkpoints.Repository, subs subscriptions.Repository, opts EngineOptions) SubscriptionSyncer {
	return &subscriptionSyncer{api: api, checkpoints: cps, subs: subs, opts: opts.withDefaults()}
}

// Sync runs one cycle: upload the local diff, download the server's diff
// since the checkpoint, merge, update the local set and advance the
// checkpoint. When the checkpoint cannot be advanced the local set is
// restored, so a failed cycle leaves no local trace.
func (s *subscriptionSyncer) Sync(ctx context.Context, req SubscriptionSyncRequest) (*models.SubscriptionSyncResult, error) {
	device, err := s.opts.device(req.Device)
	if err != nil {
		return nil, err
	}
	local := models.SubscriptionChange{Add: models.SortedSet(req.Added), Remove: models.SortedSet(req.Removed)}
	if err := local.Validate(); err != nil {
		return nil, err
	}

	key := models.CheckpointKey{Account: s.api.Account(), Device: device, Resource: models.ResourceSubscriptions}
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
	log.Debug(ctx, "sync started", "since", since, "add", len(local.Add), "remove", len(local.Remove))

	res := &models.SubscriptionSyncResult{ConfirmedAdded: []string{}, ConfirmedRemoved: []string{}}
	if !local.Empty() {
		up, err := s.api.UploadSubscriptionChanges(ctx, device, local)
		if err != nil {
			log.Warn(ctx, "upload failed", "since", since, "error", err)
			return nil, syncError("upload", key, since, err)
		}
		res.UpdateURLs = up.UpdateURLs
		res.ConfirmedAdded = models.SortedSet(models.ApplyRewrites(local.Add, up.UpdateURLs))
		res.ConfirmedRemoved = models.SortedSet(models.ApplyRewrites(local.Remove, up.UpdateURLs))
	}

	remote, err := s.api.SubscriptionChanges(ctx, device, since)
	if err != nil {
		log.Warn(ctx, "download failed", "since", since, "error", err)
		return nil, syncError("download", key, since, err)
	}

	m := s.merge(res, remote)
	if !m.pushback.Empty() {
		if _, err := s.api.UploadSubscriptionChanges(ctx, device, m.pushback); err != nil {
			return nil, syncError("upload", key, since, err)
		}
	}

	before, err := s.subs.Get(ctx, key.Account, device)
	if err != nil {
		return nil, syncError("read subscriptions", key, since, err)
	}
	add, remove := m.split()
	if err := s.subs.Apply(ctx, key.Account, device, add, remove); err != nil {
		return nil, syncError("apply", key, since, err)
	}
	// from here on a failure puts the local set back as it was
	fail := func(op string, err error) error {
		if rerr := s.subs.Replace(context.WithoutCancel(ctx), key.Account, device, before); rerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to restore subscriptions: %w", rerr))
		}
		log.Warn(ctx, "sync failed, local set restored", "op", op, "since", since, "error", err)
		return syncError(op, key, since, err)
	}

	if res.Subscriptions, err = s.subs.Get(ctx, key.Account, device); err != nil {
		return nil, fail("read subscriptions", err)
	}

	next := nextCheckpoint(since, remote.Timestamp, s.opts.Now())
	if err := s.checkpoints.CompareAndSet(ctx, key, prev, next); err != nil {
		return nil, fail("store checkpoint", err)
	}
	res.Checkpoint = next

	log.Info(ctx, "sync finished",
		"since", since, "checkpoint", next.Cursor,
		"remote_added", len(res.RemoteAdded), "remote_removed", len(res.RemoteRemoved),
		"conflicts", len(res.Conflicts))
	return res, nil
}

type merged struct {
	// final state per URL touched in this cycle; true means subscribed
	final    map[string]bool
	pushback models.SubscriptionChange
}

func (m merged) split() (add, remove []string) {
	for u, on := range m.final {
		if on {
			add = append(add, u)
		} else {
			remove = append(remove, u)
		}
	}
	sort.Strings(add)
	sort.Strings(remove)
	return add, remove
}

// merge folds the server's diff into the confirmed local diff. Entries that
// echo this cycle's upload are dropped; opposite changes are conflicts and
// go through the policy.
func (s *subscriptionSyncer) merge(res *models.SubscriptionSyncResult, remote *models.SubscriptionChange) merged {
	m := merged{final: make(map[string]bool)}
	localState := make(map[string]bool)
	for _, u := range res.ConfirmedAdded {
		localState[u] = true
	}
	for _, u := range res.ConfirmedRemoved {
		localState[u] = false
	}
	for u, on := range localState {
		m.final[u] = on
	}

	apply := func(u string, subscribe bool) {
		local, touched := localState[u]
		switch {
		case touched && local == subscribe:
			return
		case touched:
			side := models.ConflictRemoteRemove
			if subscribe {
				side = models.ConflictRemoteAdd
			}
			localWins := s.opts.Policy(u, side)
			res.Conflicts = append(res.Conflicts, models.SubscriptionConflict{URL: u, Side: side, LocalWins: localWins})
			if localWins {
				if local {
					m.pushback.Add = append(m.pushback.Add, u)
				} else {
					m.pushback.Remove = append(m.pushback.Remove, u)
				}
				return
			}
		}
		m.final[u] = subscribe
		if subscribe {
			res.RemoteAdded = append(res.RemoteAdded, u)
		} else {
			res.RemoteRemoved = append(res.RemoteRemoved, u)
		}
	}
	for _, u := range models.SortedSet(remote.Add) {
		apply(u, true)
	}
	for _, u := range models.SortedSet(remote.Remove) {
		apply(u, false)
	}
	if res.RemoteAdded == nil {
		res.RemoteAdded = []string{}
	}
	if res.RemoteRemoved == nil {
		res.RemoteRemoved = []string{}
	}
	return m
}
