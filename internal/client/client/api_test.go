package client

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/gposync/internal/client/gpodtest"
	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/client/transport"
	"github.com/dmitrijs2005/gposync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*APIClient, *gpodtest.Server) {
	t.Helper()
	srv := gpodtest.NewServer("alice", "secret")
	t.Cleanup(srv.Close)

	tr, err := transport.NewHTTPTransport(transport.HTTPConfig{
		BaseURL: srv.URL,
		Auth:    transport.BasicAuth{Username: "alice", Password: "secret"},
	})
	require.NoError(t, err)

	c, err := NewAPIClient(tr, "alice")
	require.NoError(t, err)
	return c, srv
}

func TestNewAPIClient_RequiresAccount(t *testing.T) {
	_, err := NewAPIClient(nil, "")
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestDevices_UpdateAndList(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	caption := "My Phone"
	typ := models.DeviceTypeMobile
	require.NoError(t, c.UpdateDevice(ctx, "phone", models.DeviceUpdate{Caption: &caption, Type: &typ}))

	devs, err := c.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, models.Device{ID: "phone", Caption: "My Phone", Type: models.DeviceTypeMobile}, devs[0])

	require.ErrorIs(t, c.UpdateDevice(ctx, "bad id", models.DeviceUpdate{}), common.ErrValidation)
}

func TestSubscriptions_UploadThenDownload(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	up, err := c.UploadSubscriptionChanges(ctx, "phone", models.SubscriptionChange{
		Add: []string{"http://a.example/feed ", "http://b.example/feed"},
	})
	require.NoError(t, err)
	assert.Equal(t, srv.Cursor(), up.Timestamp)
	assert.Equal(t, []models.URLRewrite{{Old: "http://a.example/feed ", New: "http://a.example/feed"}}, up.UpdateURLs)

	ch, err := c.SubscriptionChanges(ctx, "phone", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"http://a.example/feed", "http://b.example/feed"}, ch.Add)
	assert.Empty(t, ch.Remove)

	none, err := c.SubscriptionChanges(ctx, "phone", up.Timestamp)
	require.NoError(t, err)
	assert.Empty(t, none.Add)

	_, err = c.UploadSubscriptionChanges(ctx, "phone", models.SubscriptionChange{
		Add: []string{"http://a.example/x"}, Remove: []string{"http://a.example/x"},
	})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestDeviceSubscriptions_PutAndGet(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.ReplaceDeviceSubscriptions(ctx, "laptop", []string{"http://b.example/feed", "http://a.example/feed"}))
	urls, err := c.DeviceSubscriptions(ctx, "laptop")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.example/feed", "http://b.example/feed"}, urls)

	all, err := c.AllSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.ErrorIs(t, c.ReplaceDeviceSubscriptions(ctx, "laptop", []string{"feed://x"}), common.ErrValidation)
}

func TestEpisodeActions_UploadAndFilter(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actions := []models.EpisodeAction{
		{Podcast: "http://p1.example/feed", Episode: "http://p1.example/1.mp3", Device: "phone", Action: models.ActionDownload, Timestamp: at},
		{Podcast: "http://p2.example/feed", Episode: "http://p2.example/1.mp3", Device: "laptop", Action: models.ActionPlay, Timestamp: at, Position: models.IntPtr(60)},
	}
	up, err := c.UploadEpisodeActions(ctx, actions)
	require.NoError(t, err)
	assert.Equal(t, srv.Cursor(), up.Timestamp)

	all, err := c.EpisodeActions(ctx, 0, models.ActionFilter{})
	require.NoError(t, err)
	require.Len(t, all.Actions, 2)
	require.NotNil(t, all.Timestamp)
	assert.Equal(t, up.Timestamp, *all.Timestamp)

	byPodcast, err := c.EpisodeActions(ctx, 0, models.ActionFilter{Podcast: "http://p2.example/feed"})
	require.NoError(t, err)
	require.Len(t, byPodcast.Actions, 1)
	assert.Equal(t, 60, *byPodcast.Actions[0].Position)

	byDevice, err := c.EpisodeActions(ctx, 0, models.ActionFilter{Device: "phone"})
	require.NoError(t, err)
	require.Len(t, byDevice.Actions, 1)

	bad := actions[0]
	bad.Position = models.IntPtr(3)
	_, err = c.UploadEpisodeActions(ctx, []models.EpisodeAction{bad})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestSettings_AllScopes(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	targets := []models.SettingsTarget{
		{Scope: models.ScopeAccount},
		{Scope: models.ScopeDevice, Device: "phone"},
		{Scope: models.ScopePodcast, Podcast: "http://p.example/feed"},
		{Scope: models.ScopeEpisode, Podcast: "http://p.example/feed", Episode: "http://p.example/1.mp3"},
	}
	for _, target := range targets {
		t.Run(string(target.Scope), func(t *testing.T) {
			got, err := c.SaveSettings(ctx, target, map[string]string{"a": "1", "b": "2"}, nil)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)

			got, err = c.SaveSettings(ctx, target, nil, []string{"a"})
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"b": "2"}, got)

			got, err = c.Settings(ctx, target)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"b": "2"}, got)
		})
	}

	_, err := c.Settings(ctx, models.SettingsTarget{Scope: models.ScopeDevice})
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = c.Settings(ctx, models.SettingsTarget{Scope: "global"})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestDirectoryEndpoints(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	top, err := c.Toplist(ctx, 2, 64)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	found, err := c.Search(ctx, "symbols", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Sixty Symbols", found[0].Title)

	_, err = c.Search(ctx, "", 0)
	require.ErrorIs(t, err, common.ErrValidation)

	tags, err := c.TopTags(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "technology", tags[0].Tag)

	byTag, err := c.PodcastsForTag(ctx, "technology", 1)
	require.NoError(t, err)
	assert.Len(t, byTag, 1)

	p, err := c.PodcastData(ctx, found[0].URL)
	require.NoError(t, err)
	assert.Equal(t, 1200, p.Subscribers)

	_, err = c.PodcastData(ctx, "http://unknown.example/feed")
	require.ErrorIs(t, err, common.ErrNotFound)

	ep, err := c.EpisodeData(ctx, found[0].URL, found[0].URL+"/1.mp3")
	require.NoError(t, err)
	assert.Equal(t, found[0].URL, ep.PodcastURL)

	favs, err := c.Favorites(ctx)
	require.NoError(t, err)
	assert.Len(t, favs, 1)

	sugg, err := c.Suggestions(ctx, 500)
	require.NoError(t, err)
	assert.Len(t, sugg, 3)
}

func TestWrongPassword_IsAuthError(t *testing.T) {
	srv := gpodtest.NewServer("alice", "secret")
	defer srv.Close()

	tr, err := transport.NewHTTPTransport(transport.HTTPConfig{
		BaseURL: srv.URL,
		Auth:    transport.BasicAuth{Username: "alice", Password: "nope"},
	})
	require.NoError(t, err)
	c, err := NewAPIClient(tr, "alice")
	require.NoError(t, err)

	_, err = c.ListDevices(context.Background())
	require.ErrorIs(t, err, common.ErrAuth)
}

func TestServerFault_IsTransportError(t *testing.T) {
	c, srv := newTestClient(t)
	srv.FailNext(http.StatusBadGateway)

	_, err := c.SubscriptionChanges(context.Background(), "phone", 0)
	require.ErrorIs(t, err, common.ErrTransport)
}
