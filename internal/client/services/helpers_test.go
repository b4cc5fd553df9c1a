package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gposync/internal/client/client"
	"github.com/dmitrijs2005/gposync/internal/client/codec"
	"github.com/dmitrijs2005/gposync/internal/client/gpodtest"
	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/actions"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/checkpoints"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/subscriptions"
	"github.com/dmitrijs2005/gposync/internal/client/transport"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	srv   *gpodtest.Server
	api   client.Client
	cps   *checkpoints.MemoryRepository
	subs  *subscriptions.MemoryRepository
	log   *actions.MemoryRepository
	locks *KeyLocker
}

// newEnv gives every test its own server and stores.
func newEnv(t *testing.T) *env {
	t.Helper()
	srv := gpodtest.NewServer("alice", "secret")
	t.Cleanup(srv.Close)

	tr, err := transport.NewHTTPTransport(transport.HTTPConfig{
		BaseURL: srv.URL,
		Auth:    transport.BasicAuth{Username: "alice", Password: "secret"},
	})
	require.NoError(t, err)
	api, err := client.NewAPIClient(tr, "alice")
	require.NoError(t, err)

	return &env{
		srv:   srv,
		api:   api,
		cps:   checkpoints.NewMemoryRepository(),
		subs:  subscriptions.NewMemoryRepository(),
		log:   actions.NewMemoryRepository(),
		locks: NewKeyLocker(),
	}
}

func (e *env) opts() EngineOptions {
	return EngineOptions{Device: "phone", Locks: e.locks, Now: func() time.Time { return fixedNow }}
}

func (e *env) subscriptionSyncer(policy ConflictPolicy) SubscriptionSyncer {
	o := e.opts()
	o.Policy = policy
	return NewSubscriptionSyncer(e.api, e.cps, e.subs, o)
}

func (e *env) episodeSyncer() EpisodeSyncer {
	return NewEpisodeSyncer(e.api, e.cps, e.log, e.opts())
}

func (e *env) checkpoint(t *testing.T, device string, rc models.ResourceClass) *models.Checkpoint {
	t.Helper()
	cp, err := e.cps.Get(context.Background(), models.CheckpointKey{Account: "alice", Device: device, Resource: rc})
	require.NoError(t, err)
	return cp
}

func (e *env) count(prefix string) int {
	n := 0
	for _, r := range e.srv.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// fakeAPI scripts the server side for scenarios the fake server cannot
// produce on its own, such as a concurrent writer between upload and
// download. Calls it does not implement panic through the nil embed.
type fakeAPI struct {
	client.Client

	subUploads []models.SubscriptionChange
	uploadTS   int64
	remote     models.SubscriptionChange
	onDownload func()

	page *codec.EpisodeActionsResponse
}

func (f *fakeAPI) Account() string { return "alice" }

func (f *fakeAPI) UploadSubscriptionChanges(_ context.Context, _ string, ch models.SubscriptionChange) (*codec.UploadResponse, error) {
	f.subUploads = append(f.subUploads, ch)
	return &codec.UploadResponse{Timestamp: f.uploadTS}, nil
}

func (f *fakeAPI) SubscriptionChanges(context.Context, string, int64) (*models.SubscriptionChange, error) {
	if f.onDownload != nil {
		f.onDownload()
	}
	r := f.remote
	return &r, nil
}

func (f *fakeAPI) UploadEpisodeActions(context.Context, []models.EpisodeAction) (*codec.UploadResponse, error) {
	return &codec.UploadResponse{Timestamp: f.uploadTS}, nil
}

func (f *fakeAPI) EpisodeActions(context.Context, int64, models.ActionFilter) (*codec.EpisodeActionsResponse, error) {
	if f.onDownload != nil {
		f.onDownload()
	}
	return f.page, nil
}
