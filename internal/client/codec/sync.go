package codec

import (
	"strconv"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/common"
	"github.com/tidwall/gjson"
)

// UploadResponse is the server's answer to a subscription or episode upload.
type UploadResponse struct {
	Timestamp  int64
	UpdateURLs []models.URLRewrite
}

// EpisodeActionsResponse is a page of the episode action log.
type EpisodeActionsResponse struct {
	Actions []models.EpisodeAction
	// Timestamp is nil when the server omitted it.
	Timestamp *int64
}

// DecodeUploadResponse decodes {"timestamp": n, "update_urls": [[old, new], ...]}.
// update_urls is optional.
func DecodeUploadResponse(data []byte) (*UploadResponse, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := expectObject(root); err != nil {
		return nil, err
	}
	ts, err := requireInt(root, "timestamp")
	if err != nil {
		return nil, err
	}
	resp := &UploadResponse{Timestamp: ts}

	uu := root.Get("update_urls")
	if !uu.Exists() || uu.Type == gjson.Null {
		return resp, nil
	}
	if err := expectArray(uu, "update_urls"); err != nil {
		return nil, err
	}
	for i, pair := range uu.Array() {
		p := []string{"update_urls", strconv.Itoa(i)}
		urls, err := stringList(pair, p...)
		if err != nil {
			return nil, err
		}
		if len(urls) != 2 {
			return nil, common.NewDecodeError("expected [old, new] pair", p...)
		}
		resp.UpdateURLs = append(resp.UpdateURLs, models.URLRewrite{Old: urls[0], New: urls[1]})
	}
	return resp, nil
}

// DecodeSubscriptionChanges decodes {"add": [...], "remove": [...], "timestamp": n}.
func DecodeSubscriptionChanges(data []byte) (*models.SubscriptionChange, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := expectObject(root); err != nil {
		return nil, err
	}
	add, err := requireStringList(root, "add")
	if err != nil {
		return nil, err
	}
	remove, err := requireStringList(root, "remove")
	if err != nil {
		return nil, err
	}
	ts, err := requireInt(root, "timestamp")
	if err != nil {
		return nil, err
	}
	return &models.SubscriptionChange{Add: add, Remove: remove, Timestamp: ts}, nil
}

// DecodeEpisodeAction decodes one action object found at path.
func DecodeEpisodeAction(obj gjson.Result, path ...string) (models.EpisodeAction, error) {
	var a models.EpisodeAction
	if err := expectObject(obj, path...); err != nil {
		return a, err
	}

	var err error
	if a.Podcast, err = requireString(obj, "podcast", path...); err != nil {
		return a, err
	}
	if a.Episode, err = requireString(obj, "episode", path...); err != nil {
		return a, err
	}
	kind, err := requireString(obj, "action", path...)
	if err != nil {
		return a, err
	}
	a.Action = models.ActionKind(kind)
	if !a.Action.Valid() {
		return a, common.NewDecodeError("unknown action "+strconv.Quote(kind), join(path, "action")...)
	}
	if a.Device, err = optionalString(obj, "device", path...); err != nil {
		return a, err
	}

	tsr := obj.Get("timestamp")
	if !tsr.Exists() {
		return a, common.NewDecodeError("missing required field", join(path, "timestamp")...)
	}
	if a.Timestamp, err = decodeTime(tsr, join(path, "timestamp")...); err != nil {
		return a, err
	}

	fields := []struct {
		name string
		dst  **int
	}{{"started", &a.Started}, {"position", &a.Position}, {"total", &a.Total}}
	for _, f := range fields {
		v, err := optionalCount(obj, f.name, path...)
		if err != nil {
			return a, err
		}
		if v == nil {
			continue
		}
		if *v < 0 {
			return a, common.NewDecodeError("must not be negative", join(path, f.name)...)
		}
		if a.Action != models.ActionPlay {
			return a, common.NewDecodeError("only allowed on play actions", join(path, f.name)...)
		}
		*f.dst = v
	}

	if a.Action == models.ActionPlay {
		if a.Position == nil {
			return a, common.NewDecodeError("missing required field", join(path, "position")...)
		}
		if a.Total != nil && *a.Position > *a.Total {
			return a, common.NewDecodeError("position exceeds total", join(path, "position")...)
		}
	}
	return a, nil
}

// DecodeEpisodeActions decodes {"actions": [...], "timestamp": n}; the
// timestamp is optional.
func DecodeEpisodeActions(data []byte) (*EpisodeActionsResponse, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := expectObject(root); err != nil {
		return nil, err
	}
	arr := root.Get("actions")
	if !arr.Exists() {
		return nil, common.NewDecodeError("missing required field", "actions")
	}
	if err := expectArray(arr, "actions"); err != nil {
		return nil, err
	}

	resp := &EpisodeActionsResponse{Actions: make([]models.EpisodeAction, 0, len(arr.Array()))}
	for i, item := range arr.Array() {
		a, err := DecodeEpisodeAction(item, "actions", strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		resp.Actions = append(resp.Actions, a)
	}

	if resp.Timestamp, err = optionalInt(root, "timestamp"); err != nil {
		return nil, err
	}
	return resp, nil
}

// DecodeURLList decodes a bare JSON array of URLs.
func DecodeURLList(data []byte) ([]string, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	return stringList(root)
}
