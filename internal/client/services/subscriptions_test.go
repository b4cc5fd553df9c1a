package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	feedA = "http://a.example/feed"
	feedB = "http://b.example/feed"
	feedC = "http://c.example/feed"
)

func TestSubscriptionSync_FirstSyncPullsServerState(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	latest := e.srv.ChangeSubscriptions("alice", "phone", []string{feedC, feedA, feedB}, nil)

	res, err := e.subscriptionSyncer(nil).Sync(ctx, SubscriptionSyncRequest{})
	require.NoError(t, err)

	assert.Equal(t, []string{feedA, feedB, feedC}, res.Subscriptions)
	assert.Equal(t, []string{feedA, feedB, feedC}, res.RemoteAdded)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, latest, res.Checkpoint.Cursor)
	assert.Equal(t, fixedNow, res.Checkpoint.UpdatedAt)

	stored := e.checkpoint(t, "phone", models.ResourceSubscriptions)
	require.NotNil(t, stored)
	assert.Equal(t, latest, stored.Cursor)
}

func TestSubscriptionSync_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.subscriptionSyncer(nil)
	req := SubscriptionSyncRequest{Added: []string{feedA, feedB}, Removed: []string{feedC}}

	first, err := s.Sync(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{feedA, feedB}, first.ConfirmedAdded)
	assert.Equal(t, []string{feedC}, first.ConfirmedRemoved)
	assert.Empty(t, first.RemoteAdded, "own upload must not come back as a remote change")
	assert.Equal(t, []string{feedA, feedB}, first.Subscriptions)

	second, err := s.Sync(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Checkpoint.Cursor, second.Checkpoint.Cursor)
	assert.Empty(t, second.RemoteAdded)
	assert.Empty(t, second.RemoteRemoved)
	assert.Equal(t, first.Subscriptions, second.Subscriptions)
	assert.Equal(t, []string{feedA, feedB}, e.srv.Subscriptions("alice", "phone"))
}

func TestSubscriptionSync_PicksUpOtherWriters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.subscriptionSyncer(nil)

	_, err := s.Sync(ctx, SubscriptionSyncRequest{Added: []string{feedA, feedB}})
	require.NoError(t, err)

	// the web UI changes the device's list
	e.srv.ChangeSubscriptions("alice", "phone", []string{feedC}, []string{feedA})

	res, err := s.Sync(ctx, SubscriptionSyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{feedC}, res.RemoteAdded)
	assert.Equal(t, []string{feedA}, res.RemoteRemoved)
	assert.Equal(t, []string{feedB, feedC}, res.Subscriptions)
	assert.Equal(t, e.srv.Cursor(), res.Checkpoint.Cursor)
}

func TestSubscriptionSync_TransportFailureLeavesCheckpoint(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	s := e.subscriptionSyncer(nil)

	before, err := s.Sync(ctx, SubscriptionSyncRequest{Added: []string{feedA}})
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		req  SubscriptionSyncRequest
		op   string
	}{
		{"upload", SubscriptionSyncRequest{Added: []string{feedB}}, "upload"},
		{"download", SubscriptionSyncRequest{}, "download"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e.srv.FailNext(http.StatusBadGateway)

			_, err := s.Sync(ctx, tc.req)
			require.ErrorIs(t, err, common.ErrTransport)
			assert.True(t, common.IsRetryable(err))

			var se *common.SyncError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tc.op, se.Op)
			assert.Equal(t, "subscriptions", se.Resource)
			assert.Equal(t, "phone", se.Device)
			assert.Equal(t, before.Checkpoint.Cursor, se.Checkpoint)

			after := e.checkpoint(t, "phone", models.ResourceSubscriptions)
			assert.Equal(t, before.Checkpoint, *after)

			local, err := e.subs.Get(ctx, "alice", "phone")
			require.NoError(t, err)
			assert.Equal(t, []string{feedA}, local)
		})
	}

	// pending change survives and goes through on retry
	res, err := s.Sync(ctx, SubscriptionSyncRequest{Added: []string{feedB}})
	require.NoError(t, err)
	assert.Equal(t, []string{feedA, feedB}, res.Subscriptions)
}

func TestSubscriptionSync_ServerRejectsStaleCheckpoint(t *testing.T) {
	e := newEnv(t)
	e.srv.FailNext(http.StatusConflict)

	_, err := e.subscriptionSyncer(nil).Sync(context.Background(), SubscriptionSyncRequest{})
	require.ErrorIs(t, err, common.ErrCheckpointConflict)
	assert.Nil(t, e.checkpoint(t, "phone", models.ResourceSubscriptions))
}

func TestSubscriptionSync_AuthFailure(t *testing.T) {
	e := newEnv(t)
	e.srv.FailNext(http.StatusUnauthorized)

	_, err := e.subscriptionSyncer(nil).Sync(context.Background(), SubscriptionSyncRequest{})
	require.ErrorIs(t, err, common.ErrAuth)
	assert.False(t, common.IsRetryable(err))
}

func TestSubscriptionSync_RewrittenURLsAreStoredSanitized(t *testing.T) {
	e := newEnv(t)

	res, err := e.subscriptionSyncer(nil).Sync(context.Background(), SubscriptionSyncRequest{Added: []string{feedA + " "}})
	require.NoError(t, err)
	assert.Equal(t, []models.URLRewrite{{Old: feedA + " ", New: feedA}}, res.UpdateURLs)
	assert.Equal(t, []string{feedA}, res.ConfirmedAdded)
	assert.Equal(t, []string{feedA}, res.Subscriptions)
	assert.Empty(t, res.RemoteAdded)
}

func TestSubscriptionSync_ValidatesBeforeNetwork(t *testing.T) {
	e := newEnv(t)
	s := e.subscriptionSyncer(nil)
	ctx := context.Background()

	_, err := s.Sync(ctx, SubscriptionSyncRequest{Added: []string{feedA}, Removed: []string{feedA}})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = s.Sync(ctx, SubscriptionSyncRequest{Added: []string{"ftp://a.example/feed"}})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = s.Sync(ctx, SubscriptionSyncRequest{Device: "no spaces allowed"})
	require.ErrorIs(t, err, common.ErrValidation)

	assert.Empty(t, e.srv.Requests())
}

func TestSubscriptionSync_ConflictServerWins(t *testing.T) {
	base := newEnv(t)
	api := &fakeAPI{uploadTS: 40, remote: models.SubscriptionChange{Add: []string{"http://a.fm"}, Timestamp: 50}}
	e := &env{api: api, cps: base.cps, subs: base.subs, locks: NewKeyLocker()}
	ctx := context.Background()
	require.NoError(t, e.subs.Apply(ctx, "alice", "phone", []string{"http://a.fm", feedB}, nil))

	res, err := e.subscriptionSyncer(nil).Sync(ctx, SubscriptionSyncRequest{Removed: []string{"http://a.fm"}})
	require.NoError(t, err)

	assert.Equal(t, []models.SubscriptionConflict{{URL: "http://a.fm", Side: models.ConflictRemoteAdd, LocalWins: false}}, res.Conflicts)
	assert.Equal(t, []string{"http://a.fm"}, res.RemoteAdded)
	assert.Equal(t, []string{"http://a.fm", feedB}, res.Subscriptions)
	assert.Equal(t, int64(50), res.Checkpoint.Cursor)
	assert.Len(t, api.subUploads, 1, "server wins needs no corrective upload")
}

func TestSubscriptionSync_ConflictLocalWins(t *testing.T) {
	base := newEnv(t)
	api := &fakeAPI{uploadTS: 40, remote: models.SubscriptionChange{Remove: []string{feedA}, Timestamp: 50}}
	e := &env{api: api, cps: base.cps, subs: base.subs, locks: NewKeyLocker()}
	ctx := context.Background()

	res, err := e.subscriptionSyncer(LocalWins).Sync(ctx, SubscriptionSyncRequest{Added: []string{feedA}})
	require.NoError(t, err)

	assert.Equal(t, []models.SubscriptionConflict{{URL: feedA, Side: models.ConflictRemoteRemove, LocalWins: true}}, res.Conflicts)
	assert.Empty(t, res.RemoteRemoved)
	assert.Equal(t, []string{feedA}, res.Subscriptions)
	require.Len(t, api.subUploads, 2)
	assert.Equal(t, []string{feedA}, api.subUploads[1].Add, "winning local change is pushed back")
}

func TestSubscriptionSync_CheckpointNeverRegresses(t *testing.T) {
	base := newEnv(t)
	ctx := context.Background()
	key := models.CheckpointKey{Account: "alice", Device: "phone", Resource: models.ResourceSubscriptions}
	require.NoError(t, base.cps.Set(ctx, key, models.Checkpoint{Cursor: 100}))

	api := &fakeAPI{remote: models.SubscriptionChange{Timestamp: 40}}
	e := &env{api: api, cps: base.cps, subs: base.subs, locks: NewKeyLocker()}

	res, err := e.subscriptionSyncer(nil).Sync(ctx, SubscriptionSyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Checkpoint.Cursor)
}

func TestSubscriptionSync_LostCompareAndSet(t *testing.T) {
	base := newEnv(t)
	ctx := context.Background()
	key := models.CheckpointKey{Account: "alice", Device: "phone", Resource: models.ResourceSubscriptions}

	require.NoError(t, base.subs.Apply(ctx, "alice", "phone", []string{feedB}, nil))

	api := &fakeAPI{remote: models.SubscriptionChange{Add: []string{feedA}, Remove: []string{feedB}, Timestamp: 10}}
	// another host finishes a cycle while this one is in flight
	api.onDownload = func() { _ = base.cps.Set(ctx, key, models.Checkpoint{Cursor: 20}) }
	e := &env{api: api, cps: base.cps, subs: base.subs, locks: NewKeyLocker()}

	_, err := e.subscriptionSyncer(nil).Sync(ctx, SubscriptionSyncRequest{})
	require.ErrorIs(t, err, common.ErrCheckpointConflict)

	local, gerr := base.subs.Get(ctx, "alice", "phone")
	require.NoError(t, gerr)
	assert.Equal(t, []string{feedB}, local, "merged remote changes must not survive a lost cycle")

	var se *common.SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "store checkpoint", se.Op)

	cp, err := base.cps.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(20), cp.Cursor)
}
