package services

import (
	"time"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/common"
	"github.com/dmitrijs2005/gposync/internal/logging"
)

// EngineOptions configures both sync engines.
type EngineOptions struct {
	// Device is used when a request names none.
	Device string
	Locks  *KeyLocker
	Logger logging.Logger
	// Policy only affects subscriptions; nil means ServerWins.
	Policy ConflictPolicy
	Now    func() time.Time
}

func (o EngineOptions) withDefaults() EngineOptions {
	if o.Locks == nil {
		o.Locks = NewKeyLocker()
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Policy == nil {
		o.Policy = ServerWins
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o EngineOptions) device(requested string) (string, error) {
	if requested == "" {
		requested = o.Device
	}
	if err := models.ValidateDeviceID(requested); err != nil {
		return "", err
	}
	return requested, nil
}

func syncError(op string, key models.CheckpointKey, since int64, err error) error {
	return &common.SyncError{
		Op:         op,
		Resource:   string(key.Resource),
		Account:    key.Account,
		Device:     key.Device,
		Checkpoint: since,
		Err:        err,
	}
}

// nextCheckpoint never moves the cursor backwards.
func nextCheckpoint(since, cursor int64, now time.Time) models.Checkpoint {
	if cursor < since {
		cursor = since
	}
	return models.Checkpoint{Cursor: cursor, UpdatedAt: now.UTC().Truncate(time.Second)}
}
