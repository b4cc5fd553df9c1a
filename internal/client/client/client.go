package client

import (
	"context"

	"github.com/dmitrijs2005/gposync/internal/client/codec"
	"github.com/dmitrijs2005/gposync/internal/client/models"
)

// Client is the transport-agnostic contract of the gpodder API v2, bound to
// one account.
type Client interface {
	Account() string

	ListDevices(ctx context.Context) ([]models.Device, error)
	UpdateDevice(ctx context.Context, deviceID string, upd models.DeviceUpdate) error

	UploadSubscriptionChanges(ctx context.Context, deviceID string, change models.SubscriptionChange) (*codec.UploadResponse, error)
	SubscriptionChanges(ctx context.Context, deviceID string, since int64) (*models.SubscriptionChange, error)
	DeviceSubscriptions(ctx context.Context, deviceID string) ([]string, error)
	ReplaceDeviceSubscriptions(ctx context.Context, deviceID string, urls []string) error
	AllSubscriptions(ctx context.Context) ([]models.Podcast, error)

	UploadEpisodeActions(ctx context.Context, actions []models.EpisodeAction) (*codec.UploadResponse, error)
	EpisodeActions(ctx context.Context, since int64, filter models.ActionFilter) (*codec.EpisodeActionsResponse, error)

	Settings(ctx context.Context, target models.SettingsTarget) (map[string]string, error)
	SaveSettings(ctx context.Context, target models.SettingsTarget, set map[string]string, remove []string) (map[string]string, error)

	Favorites(ctx context.Context) ([]models.Episode, error)
	Suggestions(ctx context.Context, n int) ([]models.Podcast, error)

	TopTags(ctx context.Context, n int) ([]models.Tag, error)
	PodcastsForTag(ctx context.Context, tag string, n int) ([]models.Podcast, error)
	PodcastData(ctx context.Context, podcastURL string) (models.Podcast, error)
	EpisodeData(ctx context.Context, podcastURL, episodeURL string) (models.Episode, error)
	Toplist(ctx context.Context, n int, scaleLogo int) ([]models.Podcast, error)
	Search(ctx context.Context, query string, scaleLogo int) ([]models.Podcast, error)
}
