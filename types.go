package gposync

import (
	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/client/services"
	"github.com/dmitrijs2005/gposync/internal/logging"
)

type (
	Device       = models.Device
	DeviceType   = models.DeviceType
	DeviceUpdate = models.DeviceUpdate

	EpisodeAction = models.EpisodeAction
	ActionKind    = models.ActionKind
	ActionFilter  = models.ActionFilter

	Podcast        = models.Podcast
	Episode        = models.Episode
	Tag            = models.Tag
	SettingsScope  = models.SettingsScope
	SettingsTarget = models.SettingsTarget

	ResourceClass = models.ResourceClass
	Checkpoint    = models.Checkpoint
	URLRewrite    = models.URLRewrite
	OutboxEntry   = models.OutboxEntry

	SubscriptionSyncRequest = services.SubscriptionSyncRequest
	SubscriptionSyncResult  = models.SubscriptionSyncResult
	SubscriptionConflict    = models.SubscriptionConflict
	EpisodeSyncRequest      = services.EpisodeSyncRequest
	EpisodeSyncResult       = models.EpisodeSyncResult

	// ConflictPolicy decides subscription conflicts; it returns true when
	// the local change should be kept.
	ConflictPolicy = services.ConflictPolicy

	Logger = logging.Logger
)

const (
	DeviceTypeDesktop = models.DeviceTypeDesktop
	DeviceTypeLaptop  = models.DeviceTypeLaptop
	DeviceTypeMobile  = models.DeviceTypeMobile
	DeviceTypeServer  = models.DeviceTypeServer
	DeviceTypeOther   = models.DeviceTypeOther

	ActionDownload = models.ActionDownload
	ActionPlay     = models.ActionPlay
	ActionDelete   = models.ActionDelete
	ActionNew      = models.ActionNew
	ActionFlattr   = models.ActionFlattr

	ScopeAccount = models.ScopeAccount
	ScopeDevice  = models.ScopeDevice
	ScopePodcast = models.ScopePodcast
	ScopeEpisode = models.ScopeEpisode

	ResourceSubscriptions  = models.ResourceSubscriptions
	ResourceEpisodeActions = models.ResourceEpisodeActions
)

var (
	// ServerWins keeps the server's side of a conflict. It is the default.
	ServerWins ConflictPolicy = services.ServerWins
	// LocalWins keeps the local side and pushes it back to the server.
	LocalWins ConflictPolicy = services.LocalWins
)

// ParseConflictPolicy maps "server-wins" and "local-wins" to a policy.
func ParseConflictPolicy(name string) (ConflictPolicy, error) {
	return services.ParseConflictPolicy(name)
}
