package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/tidwall/sjson"
)

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// EncodeSubscriptionChange renders an upload body {"add": [...], "remove": [...]}.
func EncodeSubscriptionChange(c models.SubscriptionChange) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "add", orEmpty(c.Add))
	if err != nil {
		return nil, fmt.Errorf("encode add: %w", err)
	}
	body, err = sjson.SetBytes(body, "remove", orEmpty(c.Remove))
	if err != nil {
		return nil, fmt.Errorf("encode remove: %w", err)
	}
	return body, nil
}

// EncodeURLList renders a plain JSON array of URLs.
func EncodeURLList(urls []string) ([]byte, error) {
	return json.Marshal(orEmpty(urls))
}

// EncodeEpisodeAction renders a single action object.
func EncodeEpisodeAction(a models.EpisodeAction) ([]byte, error) {
	type field struct {
		path  string
		value any
	}
	fields := []field{
		{"podcast", a.Podcast},
		{"episode", a.Episode},
		{"action", string(a.Action)},
		{"timestamp", FormatTimestamp(a.Timestamp)},
	}
	if a.Device != "" {
		fields = append(fields, field{"device", a.Device})
	}
	if a.Started != nil {
		fields = append(fields, field{"started", *a.Started})
	}
	if a.Position != nil {
		fields = append(fields, field{"position", *a.Position})
	}
	if a.Total != nil {
		fields = append(fields, field{"total", *a.Total})
	}

	obj := []byte(`{}`)
	for _, f := range fields {
		var err error
		obj, err = sjson.SetBytes(obj, f.path, f.value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.path, err)
		}
	}
	return obj, nil
}

// EncodeEpisodeActions renders an upload body: a JSON array of actions.
func EncodeEpisodeActions(actions []models.EpisodeAction) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, a := range actions {
		obj, err := EncodeEpisodeAction(a)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(obj)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// EncodeDeviceUpdate renders {"caption": ..., "type": ...} with unset fields omitted.
func EncodeDeviceUpdate(u models.DeviceUpdate) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if u.Caption != nil {
		if body, err = sjson.SetBytes(body, "caption", *u.Caption); err != nil {
			return nil, fmt.Errorf("encode caption: %w", err)
		}
	}
	if u.Type != nil {
		if body, err = sjson.SetBytes(body, "type", string(*u.Type)); err != nil {
			return nil, fmt.Errorf("encode type: %w", err)
		}
	}
	return body, nil
}

// EncodeSettings renders {"set": {...}, "remove": [...]}. Setting keys are
// arbitrary strings, so this goes through encoding/json rather than sjson paths.
func EncodeSettings(set map[string]string, remove []string) ([]byte, error) {
	if set == nil {
		set = map[string]string{}
	}
	return json.Marshal(struct {
		Set    map[string]string `json:"set"`
		Remove []string          `json:"remove"`
	}{Set: set, Remove: orEmpty(remove)})
}
