package gposync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	apiclient "github.com/dmitrijs2005/gposync/internal/client/client"
	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/checkpoints"
	"github.com/dmitrijs2005/gposync/internal/client/services"
	"github.com/dmitrijs2005/gposync/internal/client/transport"
	"github.com/dmitrijs2005/gposync/internal/logging"
)

// Client is bound to one account and a default device. It is safe for
// concurrent use; syncs of the same stream are serialized.
type Client struct {
	api     apiclient.Client
	tr      transport.Transport
	session *transport.SessionAuth
	repos   *apiclient.Repositories
	closers []io.Closer
	locks   *services.KeyLocker
	log     logging.Logger
	device  string

	subs     services.SubscriptionSyncer
	episodes services.EpisodeSyncer

	closeOnce sync.Once
	closeErr  error
}

// SyncReport is the outcome of Sync. A nil field means that stream did not
// finish.
type SyncReport struct {
	Subscriptions *SubscriptionSyncResult
	Episodes      *EpisodeSyncResult
}

// New validates opts, opens the local stores and, for session
// authentication, logs in.
func New(ctx context.Context, opts Options) (*Client, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	var auth transport.Authenticator = transport.BasicAuth{Username: opts.Username, Password: opts.Password}
	var session *transport.SessionAuth
	if opts.Session {
		session = transport.NewSessionAuth(opts.Username, opts.Password)
		auth = session
	}
	tr, err := transport.NewHTTPTransport(transport.HTTPConfig{
		BaseURL:   opts.ServerURL,
		UserAgent: opts.UserAgent,
		Timeout:   opts.HTTPTimeout,
		Auth:      auth,
		Logger:    logger,
		Client:    opts.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	api, err := apiclient.NewAPIClient(tr, opts.Username)
	if err != nil {
		return nil, err
	}

	c := &Client{api: api, tr: tr, session: session, locks: services.NewKeyLocker(), log: logger, device: opts.Device}
	if err := c.openStores(ctx, opts.Store); err != nil {
		_ = c.Close()
		return nil, err
	}

	if session != nil {
		if err := session.Login(ctx, tr); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	engine := services.EngineOptions{
		Device: opts.Device,
		Locks:  c.locks,
		Logger: logger,
		Policy: opts.Policy,
		Now:    opts.Now,
	}
	c.subs = services.NewSubscriptionSyncer(api, c.repos.Checkpoints, c.repos.Subscriptions, engine)
	c.episodes = services.NewEpisodeSyncer(api, c.repos.Checkpoints, c.repos.Actions, engine)
	return c, nil
}

func (c *Client) openStores(ctx context.Context, s StoreOptions) error {
	if s.DSN == "" {
		c.repos = apiclient.NewMemoryRepositories()
	} else {
		repos, err := apiclient.InitDatabase(ctx, s.DSN)
		if err != nil {
			return err
		}
		c.repos = repos
	}

	switch s.checkpointBackend() {
	case BackendPostgres:
		cps, db, err := checkpoints.OpenPostgres(ctx, s.PostgresDSN)
		if err != nil {
			return err
		}
		c.repos.Checkpoints = cps
		c.closers = append(c.closers, db)
	case BackendS3:
		cps, err := checkpoints.OpenS3(ctx, s.S3)
		if err != nil {
			return err
		}
		c.repos.Checkpoints = cps
	}
	return nil
}

// Account returns the account name.
func (c *Client) Account() string { return c.api.Account() }

// Device returns the default device ID.
func (c *Client) Device() string { return c.device }

func (c *Client) deviceOr(id string) (string, error) {
	if id == "" {
		id = c.device
	}
	if err := models.ValidateDeviceID(id); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	return c.api.ListDevices(ctx)
}

// UpdateDevice sets the caption and/or type of a device, creating it on the
// server if needed. An empty deviceID means the default device.
func (c *Client) UpdateDevice(ctx context.Context, deviceID string, upd DeviceUpdate) error {
	id, err := c.deviceOr(deviceID)
	if err != nil {
		return err
	}
	return c.api.UpdateDevice(ctx, id, upd)
}

// SyncSubscriptions runs one subscription cycle with explicit changes,
// bypassing the outbox.
func (c *Client) SyncSubscriptions(ctx context.Context, req SubscriptionSyncRequest) (*SubscriptionSyncResult, error) {
	return c.subs.Sync(ctx, req)
}

// Subscriptions returns the local subscription set of a device as of its
// last sync.
func (c *Client) Subscriptions(ctx context.Context, deviceID string) ([]string, error) {
	id, err := c.deviceOr(deviceID)
	if err != nil {
		return nil, err
	}
	return c.repos.Subscriptions.Get(ctx, c.Account(), id)
}

// AllSubscriptions returns the podcasts subscribed on any device of the
// account, straight from the server.
func (c *Client) AllSubscriptions(ctx context.Context) ([]Podcast, error) {
	return c.api.AllSubscriptions(ctx)
}

// DeviceSubscriptions returns the server's full subscription list of a device.
func (c *Client) DeviceSubscriptions(ctx context.Context, deviceID string) ([]string, error) {
	id, err := c.deviceOr(deviceID)
	if err != nil {
		return nil, err
	}
	return c.api.DeviceSubscriptions(ctx, id)
}

// ReplaceDeviceSubscriptions overwrites the server's list of a device. The
// server records the difference as ordinary changes, so the local set
// catches up on the next sync.
func (c *Client) ReplaceDeviceSubscriptions(ctx context.Context, deviceID string, urls []string) error {
	id, err := c.deviceOr(deviceID)
	if err != nil {
		return err
	}
	for _, u := range urls {
		if err := models.ValidateURL("subscription", u); err != nil {
			return err
		}
	}
	return c.api.ReplaceDeviceSubscriptions(ctx, id, urls)
}

// SyncEpisodeActions runs one episode action cycle with explicit actions,
// bypassing the outbox.
func (c *Client) SyncEpisodeActions(ctx context.Context, req EpisodeSyncRequest) (*EpisodeSyncResult, error) {
	return c.episodes.Sync(ctx, req)
}

// EpisodeActions reads the local action log.
func (c *Client) EpisodeActions(ctx context.Context, filter ActionFilter) ([]EpisodeAction, error) {
	return c.repos.Actions.List(ctx, c.Account(), filter)
}

// Subscribe queues a subscription on the default device for the next Sync.
func (c *Client) Subscribe(ctx context.Context, feedURL string) error {
	return c.enqueueSubscription(ctx, models.OutboxSubscribe, feedURL)
}

// Unsubscribe queues an unsubscription on the default device for the next Sync.
func (c *Client) Unsubscribe(ctx context.Context, feedURL string) error {
	return c.enqueueSubscription(ctx, models.OutboxUnsubscribe, feedURL)
}

func (c *Client) enqueueSubscription(ctx context.Context, kind models.OutboxKind, feedURL string) error {
	if err := models.ValidateURL("subscription", feedURL); err != nil {
		return err
	}
	_, err := c.repos.Outbox.Enqueue(ctx, c.Account(), models.OutboxEntry{Device: c.device, Kind: kind, URL: feedURL})
	return err
}

// RecordAction queues an episode action for the next Sync. An action without
// a device is attributed to the default device.
func (c *Client) RecordAction(ctx context.Context, a EpisodeAction) error {
	if a.Device == "" {
		a.Device = c.device
	}
	a = a.Normalize()
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := c.repos.Outbox.Enqueue(ctx, c.Account(), models.OutboxEntry{Device: c.device, Kind: models.OutboxAction, Action: &a})
	return err
}

// Pending returns the queued changes of the default device.
func (c *Client) Pending(ctx context.Context) ([]OutboxEntry, error) {
	return c.repos.Outbox.Pending(ctx, c.Account(), c.device)
}

// Sync drains the outbox of the default device through both engines
// concurrently. Queued entries are retired only after the engine that
// carried them finished its cycle, even when the other engine failed.
func (c *Client) Sync(ctx context.Context) (*SyncReport, error) {
	account := c.Account()
	pending, err := c.repos.Outbox.Pending(ctx, account, c.device)
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	change := models.PendingSubscriptions(pending)

	report := &SyncReport{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := c.subs.Sync(gctx, SubscriptionSyncRequest{Device: c.device, Added: change.Add, Removed: change.Remove})
		if err != nil {
			return err
		}
		report.Subscriptions = res
		return c.retire(ctx, account, models.IDsOf(pending, models.OutboxSubscribe, models.OutboxUnsubscribe))
	})
	g.Go(func() error {
		res, err := c.episodes.Sync(gctx, EpisodeSyncRequest{Device: c.device, Actions: models.PendingActions(pending)})
		if err != nil {
			return err
		}
		report.Episodes = res
		return c.retire(ctx, account, models.IDsOf(pending, models.OutboxAction))
	})
	if err := g.Wait(); err != nil {
		c.log.Warn(ctx, "sync failed", "device", c.device, "error", err)
		return report, err
	}
	return report, nil
}

func (c *Client) retire(ctx context.Context, account string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.repos.Outbox.Retire(ctx, account, ids); err != nil {
		return fmt.Errorf("failed to retire outbox entries: %w", err)
	}
	return nil
}

func (c *Client) Settings(ctx context.Context, target SettingsTarget) (map[string]string, error) {
	return c.api.Settings(ctx, target)
}

// SaveSettings sets and removes keys and returns the resulting map.
func (c *Client) SaveSettings(ctx context.Context, target SettingsTarget, set map[string]string, remove []string) (map[string]string, error) {
	return c.api.SaveSettings(ctx, target, set, remove)
}

func (c *Client) Favorites(ctx context.Context) ([]Episode, error) {
	return c.api.Favorites(ctx)
}

func (c *Client) Suggestions(ctx context.Context, n int) ([]Podcast, error) {
	return c.api.Suggestions(ctx, n)
}

// Search queries the public directory. scaleLogo > 0 asks for logos scaled
// to that size.
func (c *Client) Search(ctx context.Context, query string, scaleLogo int) ([]Podcast, error) {
	return c.api.Search(ctx, query, scaleLogo)
}

func (c *Client) Toplist(ctx context.Context, n, scaleLogo int) ([]Podcast, error) {
	return c.api.Toplist(ctx, n, scaleLogo)
}

func (c *Client) TopTags(ctx context.Context, n int) ([]Tag, error) {
	return c.api.TopTags(ctx, n)
}

func (c *Client) PodcastsForTag(ctx context.Context, tag string, n int) ([]Podcast, error) {
	return c.api.PodcastsForTag(ctx, tag, n)
}

func (c *Client) PodcastData(ctx context.Context, podcastURL string) (Podcast, error) {
	return c.api.PodcastData(ctx, podcastURL)
}

func (c *Client) EpisodeData(ctx context.Context, podcastURL, episodeURL string) (Episode, error) {
	return c.api.EpisodeData(ctx, podcastURL, episodeURL)
}

// Checkpoint returns the stored checkpoint of a stream, or nil before its
// first successful sync.
func (c *Client) Checkpoint(ctx context.Context, deviceID string, rc ResourceClass) (*Checkpoint, error) {
	key, err := c.checkpointKey(deviceID, rc)
	if err != nil {
		return nil, err
	}
	return c.repos.Checkpoints.Get(ctx, key)
}

// ResetCheckpoint forgets a stream's checkpoint so the next cycle downloads
// the full server state. It waits for a running cycle of that stream.
func (c *Client) ResetCheckpoint(ctx context.Context, deviceID string, rc ResourceClass) error {
	key, err := c.checkpointKey(deviceID, rc)
	if err != nil {
		return err
	}
	unlock, err := c.locks.Lock(ctx, key.String())
	if err != nil {
		return err
	}
	defer unlock()
	if err := c.repos.Checkpoints.Delete(ctx, key); err != nil {
		return err
	}
	c.log.Info(ctx, "checkpoint reset", "device", key.Device, "resource", string(rc))
	return nil
}

func (c *Client) checkpointKey(deviceID string, rc ResourceClass) (models.CheckpointKey, error) {
	id, err := c.deviceOr(deviceID)
	if err != nil {
		return models.CheckpointKey{}, err
	}
	switch rc {
	case ResourceSubscriptions, ResourceEpisodeActions:
	default:
		return models.CheckpointKey{}, fmt.Errorf("unknown resource %q: %w", rc, ErrValidation)
	}
	return models.CheckpointKey{Account: c.Account(), Device: id, Resource: rc}, nil
}

// Close ends the session, if any, and releases the local stores. It is safe
// to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.session != nil && c.session.Active() {
			if err := c.session.Logout(context.Background(), c.tr); err != nil {
				errs = append(errs, err)
			}
		}
		for _, cl := range c.closers {
			errs = append(errs, cl.Close())
		}
		if c.repos != nil {
			errs = append(errs, c.repos.Close())
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
