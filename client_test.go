package gposync

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gposync/internal/client/gpodtest"
)

const (
	feedA = "http://feeds.example.com/a.xml"
	feedB = "http://feeds.example.com/b.xml"
)

// flakyTransport fails requests whose path contains failPath while armed.
type flakyTransport struct {
	failPath string
	armed    atomic.Bool
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.armed.Load() && strings.Contains(req.URL.Path, f.failPath) {
		return nil, errors.New("connection reset by peer")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func newTestClient(t *testing.T, srv *gpodtest.Server, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := Options{
		ServerURL: srv.URL,
		Username:  "alice",
		Password:  "secret",
		Device:    "phone",
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no username", Options{Device: "phone"}},
		{"bad device", Options{Username: "alice", Device: "my phone"}},
		{"no device", Options{Username: "alice"}},
		{"sqlite without dsn", Options{Username: "alice", Device: "phone", Store: StoreOptions{Checkpoints: BackendSQLite}}},
		{"postgres without dsn", Options{Username: "alice", Device: "phone", Store: StoreOptions{Checkpoints: BackendPostgres}}},
		{"s3 without bucket", Options{Username: "alice", Device: "phone", Store: StoreOptions{Checkpoints: BackendS3}}},
		{"unknown backend", Options{Username: "alice", Device: "phone", Store: StoreOptions{Checkpoints: "redis"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.opts)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestClient_SubscribeThenSync(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Subscribe(ctx, feedA))
	require.NoError(t, c.Subscribe(ctx, feedB))
	require.NoError(t, c.Unsubscribe(ctx, feedA))
	require.ErrorIs(t, c.Subscribe(ctx, "ftp://feeds.example.com/x"), ErrValidation)

	pending, err := c.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	report, err := c.Sync(ctx)
	require.NoError(t, err)
	require.NotNil(t, report.Subscriptions)
	require.NotNil(t, report.Episodes)
	assert.Equal(t, []string{feedB}, report.Subscriptions.Subscriptions)

	assert.Equal(t, []string{feedB}, srv.Subscriptions("alice", "phone"))
	local, err := c.Subscriptions(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{feedB}, local)

	pending, err = c.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	cp, err := c.Checkpoint(ctx, "", ResourceSubscriptions)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, srv.Cursor(), cp.Cursor)
}

func TestClient_RecordActionThenSync(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	pos, total := 120, 600
	play := EpisodeAction{
		Podcast:   feedA,
		Episode:   "http://feeds.example.com/a/1.mp3",
		Action:    ActionPlay,
		Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Position:  &pos,
		Total:     &total,
	}
	require.NoError(t, c.RecordAction(ctx, play))

	bad := play
	bad.Position = nil
	require.ErrorIs(t, c.RecordAction(ctx, bad), ErrValidation)

	report, err := c.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, report.Episodes.Confirmed, 1)

	onServer := srv.Actions("alice")
	require.Len(t, onServer, 1)
	assert.Equal(t, "phone", onServer[0].Device)
	assert.Equal(t, "2024-05-01T10:00:00", onServer[0].Timestamp)

	logged, err := c.EpisodeActions(ctx, ActionFilter{})
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, "phone", logged[0].Device)

	// nothing left to upload
	before := len(srv.Requests())
	_, err = c.Sync(ctx)
	require.NoError(t, err)
	for _, r := range srv.Requests()[before:] {
		assert.False(t, strings.HasPrefix(r, "POST /api/2/episodes/"), r)
	}
}

func TestClient_FailedSyncKeepsOutbox(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()
	flaky := &flakyTransport{failPath: "/api/2/subscriptions/"}
	c := newTestClient(t, srv, func(o *Options) { o.HTTPClient = &http.Client{Transport: flaky} })
	ctx := context.Background()

	require.NoError(t, c.Subscribe(ctx, feedA))
	flaky.armed.Store(true)

	_, err := c.Sync(ctx)
	require.ErrorIs(t, err, ErrTransport)
	assert.True(t, IsRetryable(err))

	var se *SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "subscriptions", se.Resource)

	pending, err := c.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	cp, err := c.Checkpoint(ctx, "", ResourceSubscriptions)
	require.NoError(t, err)
	assert.Nil(t, cp)

	flaky.armed.Store(false)
	_, err = c.Sync(ctx)
	require.NoError(t, err)
	pending, err = c.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, []string{feedA}, srv.Subscriptions("alice", "phone"))
}

// gatedTransport fails requests whose path contains failPath once gate
// returns.
type gatedTransport struct {
	failPath string
	gate     func()
}

func (g *gatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.Contains(req.URL.Path, g.failPath) {
		g.gate()
		return nil, errors.New("connection reset by peer")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestClient_FinishedEngineRetiresDespiteSiblingFailure(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()
	ctx := context.Background()

	var c *Client
	gated := &gatedTransport{failPath: "/api/2/episodes/"}
	// hold the episode request until the subscription cycle stored its checkpoint
	gated.gate = func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if cp, err := c.Checkpoint(context.Background(), "", ResourceSubscriptions); err == nil && cp != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	c, err := New(ctx, Options{
		ServerURL:  srv.URL,
		Username:   "alice",
		Password:   "secret",
		Device:     "phone",
		HTTPClient: &http.Client{Transport: gated},
		Store:      StoreOptions{DSN: filepath.Join(t.TempDir(), "state.db")},
	})
	require.NoError(t, err)
	defer c.Close()

	pos := 30
	require.NoError(t, c.Subscribe(ctx, feedA))
	require.NoError(t, c.RecordAction(ctx, EpisodeAction{
		Podcast:   feedA,
		Episode:   "http://feeds.example.com/a/1.mp3",
		Action:    ActionPlay,
		Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Position:  &pos,
	}))

	report, err := c.Sync(ctx)
	require.ErrorIs(t, err, ErrTransport)
	var se *SyncError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "episode_actions", se.Resource)
	require.NotNil(t, report.Subscriptions)
	assert.Equal(t, []string{feedA}, srv.Subscriptions("alice", "phone"))

	pending, err := c.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotNil(t, pending[0].Action)
}

func TestClient_ResetCheckpointPullsFullState(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()
	srv.ChangeSubscriptions("alice", "phone", []string{feedA, feedB}, nil)
	c := newTestClient(t, srv)
	ctx := context.Background()

	first, err := c.SyncSubscriptions(ctx, SubscriptionSyncRequest{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{feedA, feedB}, first.RemoteAdded)

	again, err := c.SyncSubscriptions(ctx, SubscriptionSyncRequest{})
	require.NoError(t, err)
	assert.Empty(t, again.RemoteAdded)

	require.NoError(t, c.ResetCheckpoint(ctx, "", ResourceSubscriptions))
	cp, err := c.Checkpoint(ctx, "", ResourceSubscriptions)
	require.NoError(t, err)
	assert.Nil(t, cp)

	full, err := c.SyncSubscriptions(ctx, SubscriptionSyncRequest{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{feedA, feedB}, full.RemoteAdded)

	require.ErrorIs(t, c.ResetCheckpoint(ctx, "", "playlists"), ErrValidation)
}

func TestClient_SQLiteStatePersists(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()
	dsn := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	c, err := New(ctx, Options{ServerURL: srv.URL, Username: "alice", Password: "secret", Device: "phone", Store: StoreOptions{DSN: dsn}})
	require.NoError(t, err)
	require.NoError(t, c.Subscribe(ctx, feedA))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	c, err = New(ctx, Options{ServerURL: srv.URL, Username: "alice", Password: "secret", Device: "phone", Store: StoreOptions{DSN: dsn}})
	require.NoError(t, err)
	defer c.Close()

	pending, err := c.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, feedA, pending[0].URL)
}

func TestClient_SessionAuth(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()
	c := newTestClient(t, srv, func(o *Options) { o.Session = true })
	ctx := context.Background()

	_, err := c.ListDevices(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	reqs := srv.Requests()
	assert.Equal(t, "POST /api/2/auth/alice/login.json", reqs[0])
	assert.Equal(t, "POST /api/2/auth/alice/logout.json", reqs[len(reqs)-1])
}

func TestClient_WrongPassword(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()
	c := newTestClient(t, srv, func(o *Options) { o.Password = "nope" })

	_, err := c.ListDevices(context.Background())
	require.ErrorIs(t, err, ErrAuth)
	assert.False(t, IsRetryable(err))
}

func TestClient_DevicesAndSettings(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	caption, typ := "My Phone", DeviceTypeMobile
	require.NoError(t, c.UpdateDevice(ctx, "", DeviceUpdate{Caption: &caption, Type: &typ}))
	devices, err := c.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "phone", devices[0].ID)
	assert.Equal(t, "My Phone", devices[0].Caption)

	target := SettingsTarget{Scope: ScopePodcast, Podcast: feedA}
	got, err := c.SaveSettings(ctx, target, map[string]string{"auto_download": "true", "volume": "80"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"auto_download": "true", "volume": "80"}, got)

	got, err = c.SaveSettings(ctx, target, nil, []string{"volume"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"auto_download": "true"}, got)

	got, err = c.Settings(ctx, SettingsTarget{Scope: ScopeAccount})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_DeviceLists(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, c.ReplaceDeviceSubscriptions(ctx, "laptop", []string{feedA, feedB}))
	urls, err := c.DeviceSubscriptions(ctx, "laptop")
	require.NoError(t, err)
	assert.Equal(t, []string{feedA, feedB}, urls)

	require.ErrorIs(t, c.ReplaceDeviceSubscriptions(ctx, "laptop", []string{"nope"}), ErrValidation)

	all, err := c.AllSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestClient_Directory(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	found, err := c.Search(ctx, "linux", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Linux Outlaws", found[0].Title)

	top, err := c.Toplist(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	tags, err := c.TopTags(ctx, 5)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "technology", tags[0].Tag)

	byTag, err := c.PodcastsForTag(ctx, "technology", 1)
	require.NoError(t, err)
	assert.Len(t, byTag, 1)

	p, err := c.PodcastData(ctx, found[0].URL)
	require.NoError(t, err)
	assert.Equal(t, 1956, p.Subscribers)

	_, err = c.PodcastData(ctx, "http://feeds.example.com/missing.xml")
	require.ErrorIs(t, err, ErrNotFound)

	ep, err := c.EpisodeData(ctx, feedA, feedA+"/ep1.mp3")
	require.NoError(t, err)
	assert.Equal(t, feedA, ep.PodcastURL)

	favs, err := c.Favorites(ctx)
	require.NoError(t, err)
	assert.Len(t, favs, 1)

	sugg, err := c.Suggestions(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, sugg, 3)
}
