package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gposync/internal/common"
)

// ActionKind is the type of an episode action.
type ActionKind string

const (
	ActionDownload ActionKind = "download"
	ActionPlay     ActionKind = "play"
	ActionDelete   ActionKind = "delete"
	ActionNew      ActionKind = "new"
	ActionFlattr   ActionKind = "flattr"
)

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionDownload, ActionPlay, ActionDelete, ActionNew, ActionFlattr:
		return true
	}
	return false
}

// EpisodeAction is one entry of the account-wide episode action log.
//
// Started, Position and Total are seconds and only meaningful for play
// actions. Timestamp is UTC with second precision.
type EpisodeAction struct {
	Podcast   string
	Episode   string
	Device    string
	Action    ActionKind
	Timestamp time.Time
	Started   *int
	Position  *int
	Total     *int
}

// ActionKey identifies an action for deduplication.
type ActionKey struct {
	Device    string
	Podcast   string
	Episode   string
	Timestamp int64
	Action    ActionKind
}

func (k ActionKey) String() string {
	return k.Device + "|" + k.Podcast + "|" + k.Episode + "|" + strconv.FormatInt(k.Timestamp, 10) + "|" + string(k.Action)
}

// Key returns the deduplication key of a.
func (a EpisodeAction) Key() ActionKey {
	return ActionKey{
		Device:    a.Device,
		Podcast:   a.Podcast,
		Episode:   a.Episode,
		Timestamp: a.Timestamp.Unix(),
		Action:    a.Action,
	}
}

// Normalize truncates the timestamp to UTC seconds.
func (a EpisodeAction) Normalize() EpisodeAction {
	a.Timestamp = a.Timestamp.UTC().Truncate(time.Second)
	return a
}

// Validate checks the action's invariants.
func (a EpisodeAction) Validate() error {
	if err := ValidateURL("podcast", a.Podcast); err != nil {
		return err
	}
	if err := ValidateURL("episode", a.Episode); err != nil {
		return err
	}
	if !a.Action.Valid() {
		return &common.ValidationError{Field: "action", Value: string(a.Action), Reason: "unknown action kind"}
	}
	if a.Device != "" {
		if err := ValidateDeviceID(a.Device); err != nil {
			return err
		}
	}
	if a.Timestamp.IsZero() {
		return &common.ValidationError{Field: "timestamp", Reason: "required"}
	}
	if a.Action != ActionPlay {
		if a.Started != nil || a.Position != nil || a.Total != nil {
			return &common.ValidationError{Field: "action", Value: string(a.Action), Reason: "playback fields are only allowed on play"}
		}
		return nil
	}
	if a.Position == nil {
		return &common.ValidationError{Field: "position", Reason: "required for play"}
	}
	for name, v := range map[string]*int{"started": a.Started, "position": a.Position, "total": a.Total} {
		if v != nil && *v < 0 {
			return &common.ValidationError{Field: name, Value: strconv.Itoa(*v), Reason: "must not be negative"}
		}
	}
	if a.Total != nil && *a.Position > *a.Total {
		return &common.ValidationError{Field: "position", Value: strconv.Itoa(*a.Position),
			Reason: fmt.Sprintf("exceeds total %d", *a.Total)}
	}
	if a.Started != nil && a.Total == nil {
		return &common.ValidationError{Field: "started", Reason: "requires total"}
	}
	return nil
}

// ActionFilter narrows an episode action download. Podcast, Device and
// Aggregated are sent to the server; Episode and Kinds are applied locally.
type ActionFilter struct {
	Podcast    string
	Device     string
	Episode    string
	Kinds      []ActionKind
	Aggregated bool
}

// Empty reports whether f selects the whole log.
func (f ActionFilter) Empty() bool {
	return f.Podcast == "" && f.Device == "" && f.Episode == "" && len(f.Kinds) == 0 && !f.Aggregated
}

// Match reports whether a passes the locally applied part of the filter.
func (f ActionFilter) Match(a EpisodeAction) bool {
	if f.Podcast != "" && a.Podcast != f.Podcast {
		return false
	}
	if f.Device != "" && a.Device != f.Device {
		return false
	}
	if f.Episode != "" && a.Episode != f.Episode {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if a.Action == k {
			return true
		}
	}
	return false
}

// IntPtr is a helper for the optional playback fields.
func IntPtr(v int) *int { return &v }
