package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/gposync/internal/client/codec"
	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/client/transport"
	"github.com/dmitrijs2005/gposync/internal/common"
)

// APIClient implements Client on top of a transport.Transport.
type APIClient struct {
	tr      transport.Transport
	account string
}

var _ Client = (*APIClient)(nil)

func NewAPIClient(tr transport.Transport, account string) (*APIClient, error) {
	if account == "" {
		return nil, &common.ValidationError{Field: "account", Reason: "required"}
	}
	return &APIClient{tr: tr, account: account}, nil
}

func (c *APIClient) Account() string { return c.account }

func (c *APIClient) user() string { return url.PathEscape(c.account) }

func (c *APIClient) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	resp, err := c.tr.Do(ctx, &transport.Request{Method: http.MethodGet, Path: path, Query: q})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *APIClient) send(ctx context.Context, method, path string, q url.Values, body []byte) ([]byte, error) {
	resp, err := c.tr.Do(ctx, &transport.Request{Method: method, Path: path, Query: q, Body: body})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func checkDevice(id string) error {
	return models.ValidateDeviceID(id)
}

func (c *APIClient) ListDevices(ctx context.Context) ([]models.Device, error) {
	body, err := c.get(ctx, fmt.Sprintf("api/2/devices/%s.json", c.user()), nil)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return codec.DecodeDevices(body)
}

func (c *APIClient) UpdateDevice(ctx context.Context, deviceID string, upd models.DeviceUpdate) error {
	if err := checkDevice(deviceID); err != nil {
		return err
	}
	if err := upd.Validate(); err != nil {
		return err
	}
	body, err := codec.EncodeDeviceUpdate(upd)
	if err != nil {
		return err
	}
	if _, err := c.send(ctx, http.MethodPost, fmt.Sprintf("api/2/devices/%s/%s.json", c.user(), deviceID), nil, body); err != nil {
		return fmt.Errorf("update device %s: %w", deviceID, err)
	}
	return nil
}

func (c *APIClient) UploadSubscriptionChanges(ctx context.Context, deviceID string, change models.SubscriptionChange) (*codec.UploadResponse, error) {
	if err := checkDevice(deviceID); err != nil {
		return nil, err
	}
	if err := change.Validate(); err != nil {
		return nil, err
	}
	body, err := codec.EncodeSubscriptionChange(change)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, http.MethodPost, fmt.Sprintf("api/2/subscriptions/%s/%s.json", c.user(), deviceID), nil, body)
	if err != nil {
		return nil, fmt.Errorf("upload subscription changes: %w", err)
	}
	return codec.DecodeUploadResponse(resp)
}

func (c *APIClient) SubscriptionChanges(ctx context.Context, deviceID string, since int64) (*models.SubscriptionChange, error) {
	if err := checkDevice(deviceID); err != nil {
		return nil, err
	}
	q := url.Values{"since": {strconv.FormatInt(since, 10)}}
	body, err := c.get(ctx, fmt.Sprintf("api/2/subscriptions/%s/%s.json", c.user(), deviceID), q)
	if err != nil {
		return nil, fmt.Errorf("get subscription changes: %w", err)
	}
	return codec.DecodeSubscriptionChanges(body)
}

func (c *APIClient) DeviceSubscriptions(ctx context.Context, deviceID string) ([]string, error) {
	if err := checkDevice(deviceID); err != nil {
		return nil, err
	}
	body, err := c.get(ctx, fmt.Sprintf("subscriptions/%s/%s.json", c.user(), deviceID), nil)
	if err != nil {
		return nil, fmt.Errorf("get device subscriptions: %w", err)
	}
	return codec.DecodeURLList(body)
}

func (c *APIClient) ReplaceDeviceSubscriptions(ctx context.Context, deviceID string, urls []string) error {
	if err := checkDevice(deviceID); err != nil {
		return err
	}
	for _, u := range urls {
		if err := models.ValidateURL("url", u); err != nil {
			return err
		}
	}
	body, err := codec.EncodeURLList(urls)
	if err != nil {
		return err
	}
	if _, err := c.send(ctx, http.MethodPut, fmt.Sprintf("subscriptions/%s/%s.json", c.user(), deviceID), nil, body); err != nil {
		return fmt.Errorf("replace device subscriptions: %w", err)
	}
	return nil
}

func (c *APIClient) AllSubscriptions(ctx context.Context) ([]models.Podcast, error) {
	body, err := c.get(ctx, fmt.Sprintf("subscriptions/%s.json", c.user()), nil)
	if err != nil {
		return nil, fmt.Errorf("get all subscriptions: %w", err)
	}
	return codec.DecodePodcasts(body)
}

func (c *APIClient) UploadEpisodeActions(ctx context.Context, actions []models.EpisodeAction) (*codec.UploadResponse, error) {
	for _, a := range actions {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	body, err := codec.EncodeEpisodeActions(actions)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, http.MethodPost, fmt.Sprintf("api/2/episodes/%s.json", c.user()), nil, body)
	if err != nil {
		return nil, fmt.Errorf("upload episode actions: %w", err)
	}
	return codec.DecodeUploadResponse(resp)
}

func (c *APIClient) EpisodeActions(ctx context.Context, since int64, f models.ActionFilter) (*codec.EpisodeActionsResponse, error) {
	q := url.Values{"since": {strconv.FormatInt(since, 10)}}
	if f.Podcast != "" {
		q.Set("podcast", f.Podcast)
	}
	if f.Device != "" {
		q.Set("device", f.Device)
	}
	if f.Aggregated {
		q.Set("aggregated", "true")
	}
	body, err := c.get(ctx, fmt.Sprintf("api/2/episodes/%s.json", c.user()), q)
	if err != nil {
		return nil, fmt.Errorf("get episode actions: %w", err)
	}
	return codec.DecodeEpisodeActions(body)
}

func settingsQuery(t models.SettingsTarget) (url.Values, error) {
	q := url.Values{}
	switch t.Scope {
	case models.ScopeAccount:
	case models.ScopeDevice:
		if err := checkDevice(t.Device); err != nil {
			return nil, err
		}
		q.Set("device", t.Device)
	case models.ScopePodcast:
		if err := models.ValidateURL("podcast", t.Podcast); err != nil {
			return nil, err
		}
		q.Set("podcast", t.Podcast)
	case models.ScopeEpisode:
		if err := models.ValidateURL("podcast", t.Podcast); err != nil {
			return nil, err
		}
		if err := models.ValidateURL("episode", t.Episode); err != nil {
			return nil, err
		}
		q.Set("podcast", t.Podcast)
		q.Set("episode", t.Episode)
	default:
		return nil, &common.ValidationError{Field: "scope", Value: string(t.Scope), Reason: "unknown settings scope"}
	}
	return q, nil
}

func (c *APIClient) Settings(ctx context.Context, t models.SettingsTarget) (map[string]string, error) {
	q, err := settingsQuery(t)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, fmt.Sprintf("api/2/settings/%s/%s.json", c.user(), t.Scope), q)
	if err != nil {
		return nil, fmt.Errorf("get %s settings: %w", t.Scope, err)
	}
	return codec.DecodeSettings(body)
}

func (c *APIClient) SaveSettings(ctx context.Context, t models.SettingsTarget, set map[string]string, remove []string) (map[string]string, error) {
	q, err := settingsQuery(t)
	if err != nil {
		return nil, err
	}
	body, err := codec.EncodeSettings(set, remove)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, http.MethodPost, fmt.Sprintf("api/2/settings/%s/%s.json", c.user(), t.Scope), q, body)
	if err != nil {
		return nil, fmt.Errorf("save %s settings: %w", t.Scope, err)
	}
	return codec.DecodeSettings(resp)
}

func (c *APIClient) Favorites(ctx context.Context) ([]models.Episode, error) {
	body, err := c.get(ctx, fmt.Sprintf("api/2/favorites/%s.json", c.user()), nil)
	if err != nil {
		return nil, fmt.Errorf("get favorites: %w", err)
	}
	return codec.DecodeEpisodes(body)
}

func (c *APIClient) Suggestions(ctx context.Context, n int) ([]models.Podcast, error) {
	body, err := c.get(ctx, fmt.Sprintf("suggestions/%d.json", clamp(n)), nil)
	if err != nil {
		return nil, fmt.Errorf("get suggestions: %w", err)
	}
	return codec.DecodePodcasts(body)
}

func (c *APIClient) TopTags(ctx context.Context, n int) ([]models.Tag, error) {
	body, err := c.get(ctx, fmt.Sprintf("api/2/tags/%d.json", clamp(n)), nil)
	if err != nil {
		return nil, fmt.Errorf("get top tags: %w", err)
	}
	return codec.DecodeTags(body)
}

func (c *APIClient) PodcastsForTag(ctx context.Context, tag string, n int) ([]models.Podcast, error) {
	if tag == "" {
		return nil, &common.ValidationError{Field: "tag", Reason: "required"}
	}
	body, err := c.get(ctx, fmt.Sprintf("api/2/tag/%s/%d.json", url.PathEscape(tag), clamp(n)), nil)
	if err != nil {
		return nil, fmt.Errorf("get podcasts for tag %s: %w", tag, err)
	}
	return codec.DecodePodcasts(body)
}

func (c *APIClient) PodcastData(ctx context.Context, podcastURL string) (models.Podcast, error) {
	if err := models.ValidateURL("podcast", podcastURL); err != nil {
		return models.Podcast{}, err
	}
	body, err := c.get(ctx, "api/2/data/podcast.json", url.Values{"url": {podcastURL}})
	if err != nil {
		return models.Podcast{}, fmt.Errorf("get podcast data: %w", err)
	}
	return codec.DecodePodcast(body)
}

func (c *APIClient) EpisodeData(ctx context.Context, podcastURL, episodeURL string) (models.Episode, error) {
	if err := models.ValidateURL("podcast", podcastURL); err != nil {
		return models.Episode{}, err
	}
	if err := models.ValidateURL("episode", episodeURL); err != nil {
		return models.Episode{}, err
	}
	body, err := c.get(ctx, "api/2/data/episode.json", url.Values{"podcast": {podcastURL}, "url": {episodeURL}})
	if err != nil {
		return models.Episode{}, fmt.Errorf("get episode data: %w", err)
	}
	return codec.DecodeEpisode(body)
}

func scaleQuery(scaleLogo int) url.Values {
	if scaleLogo <= 0 {
		return nil
	}
	return url.Values{"scale_logo": {strconv.Itoa(scaleLogo)}}
}

func (c *APIClient) Toplist(ctx context.Context, n int, scaleLogo int) ([]models.Podcast, error) {
	body, err := c.get(ctx, fmt.Sprintf("toplist/%d.json", clamp(n)), scaleQuery(scaleLogo))
	if err != nil {
		return nil, fmt.Errorf("get toplist: %w", err)
	}
	return codec.DecodePodcasts(body)
}

func (c *APIClient) Search(ctx context.Context, query string, scaleLogo int) ([]models.Podcast, error) {
	if query == "" {
		return nil, &common.ValidationError{Field: "query", Reason: "required"}
	}
	q := scaleQuery(scaleLogo)
	if q == nil {
		q = url.Values{}
	}
	q.Set("q", query)
	body, err := c.get(ctx, "search.json", q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return codec.DecodePodcasts(body)
}

// clamp keeps list sizes inside the 1..100 range the server accepts.
func clamp(n int) int {
	switch {
	case n < 1:
		return 1
	case n > 100:
		return 100
	}
	return n
}
