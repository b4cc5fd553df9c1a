// Package checkpoints persists the per-stream sync cursors.
//
// A checkpoint is keyed by (account, device, resource class) and only moves
// forward. Writers coordinate through CompareAndSet: the sync engines read a
// checkpoint, talk to the server and then swap the old value for the new one,
// failing with common.ErrCheckpointConflict if somebody else advanced it in
// the meantime. Backends: in-memory, SQLite, PostgreSQL and S3.
package checkpoints

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/common"
)

type Repository interface {
	// Get returns (nil, nil) when the stream has never been synced.
	Get(ctx context.Context, key models.CheckpointKey) (*models.Checkpoint, error)
	// Set stores cp unconditionally.
	Set(ctx context.Context, key models.CheckpointKey, cp models.Checkpoint) error
	// CompareAndSet stores next only if the stored value still equals expected
	// (nil meaning absent) and next does not move the cursor backwards.
	CompareAndSet(ctx context.Context, key models.CheckpointKey, expected *models.Checkpoint, next models.Checkpoint) error
	Delete(ctx context.Context, key models.CheckpointKey) error
	List(ctx context.Context, account string) (map[models.CheckpointKey]models.Checkpoint, error)
}

func checkForward(expected *models.Checkpoint, next models.Checkpoint) error {
	if next.Cursor < models.CursorOf(expected) {
		return &common.ValidationError{
			Field:  "checkpoint",
			Value:  strconv.FormatInt(next.Cursor, 10),
			Reason: "must not regress below " + strconv.FormatInt(models.CursorOf(expected), 10),
		}
	}
	return nil
}
