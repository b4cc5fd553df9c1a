package codec

import (
	"strconv"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/common"
	"github.com/tidwall/gjson"
)

func decodeList[T any](data []byte, item func(gjson.Result, ...string) (T, error)) ([]T, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := expectArray(root); err != nil {
		return nil, err
	}
	arr := root.Array()
	out := make([]T, 0, len(arr))
	for i, r := range arr {
		v, err := item(r, strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeOne[T any](data []byte, item func(gjson.Result, ...string) (T, error)) (T, error) {
	root, err := parse(data)
	if err != nil {
		var zero T
		return zero, err
	}
	return item(root)
}

func decodeDevice(obj gjson.Result, path ...string) (models.Device, error) {
	var d models.Device
	if err := expectObject(obj, path...); err != nil {
		return d, err
	}
	var err error
	if d.ID, err = requireString(obj, "id", path...); err != nil {
		return d, err
	}
	if d.Caption, err = optionalString(obj, "caption", path...); err != nil {
		return d, err
	}
	typ, err := requireString(obj, "type", path...)
	if err != nil {
		return d, err
	}
	d.Type = models.DeviceType(typ)
	if !d.Type.Valid() {
		return d, common.NewDecodeError("unknown device type "+strconv.Quote(typ), join(path, "type")...)
	}
	subs, err := optionalCount(obj, "subscriptions", path...)
	if err != nil {
		return d, err
	}
	if subs != nil {
		d.Subscriptions = *subs
	}
	return d, nil
}

// DecodeDevices decodes the device list of an account.
func DecodeDevices(data []byte) ([]models.Device, error) {
	return decodeList(data, decodeDevice)
}

func decodePodcast(obj gjson.Result, path ...string) (models.Podcast, error) {
	var p models.Podcast
	if err := expectObject(obj, path...); err != nil {
		return p, err
	}
	var err error
	if p.URL, err = requireString(obj, "url", path...); err != nil {
		return p, err
	}
	strs := []struct {
		name string
		dst  *string
	}{
		{"title", &p.Title},
		{"description", &p.Description},
		{"website", &p.Website},
		{"logo_url", &p.LogoURL},
		{"scaled_logo_url", &p.ScaledLogoURL},
		{"mygpo_link", &p.MygpoLink},
	}
	for _, f := range strs {
		if *f.dst, err = optionalString(obj, f.name, path...); err != nil {
			return p, err
		}
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"subscribers", &p.Subscribers},
		{"subscribers_last_week", &p.SubscribersLastWeek},
	}
	for _, f := range ints {
		v, err := optionalCount(obj, f.name, path...)
		if err != nil {
			return p, err
		}
		if v != nil {
			*f.dst = *v
		}
	}
	return p, nil
}

// DecodePodcasts decodes a list of podcast records.
func DecodePodcasts(data []byte) ([]models.Podcast, error) {
	return decodeList(data, decodePodcast)
}

// DecodePodcast decodes a single podcast record.
func DecodePodcast(data []byte) (models.Podcast, error) {
	return decodeOne(data, decodePodcast)
}

func decodeEpisode(obj gjson.Result, path ...string) (models.Episode, error) {
	var e models.Episode
	if err := expectObject(obj, path...); err != nil {
		return e, err
	}
	var err error
	if e.URL, err = requireString(obj, "url", path...); err != nil {
		return e, err
	}
	strs := []struct {
		name string
		dst  *string
	}{
		{"title", &e.Title},
		{"podcast_title", &e.PodcastTitle},
		{"podcast_url", &e.PodcastURL},
		{"description", &e.Description},
		{"website", &e.Website},
		{"mygpo_link", &e.MygpoLink},
	}
	for _, f := range strs {
		if *f.dst, err = optionalString(obj, f.name, path...); err != nil {
			return e, err
		}
	}
	if r := obj.Get("released"); r.Exists() && r.Type != gjson.Null {
		if e.Released, err = decodeTime(r, join(path, "released")...); err != nil {
			return e, err
		}
	}
	return e, nil
}

// DecodeEpisodes decodes a list of episode records.
func DecodeEpisodes(data []byte) ([]models.Episode, error) {
	return decodeList(data, decodeEpisode)
}

// DecodeEpisode decodes a single episode record.
func DecodeEpisode(data []byte) (models.Episode, error) {
	return decodeOne(data, decodeEpisode)
}

func decodeTag(obj gjson.Result, path ...string) (models.Tag, error) {
	var t models.Tag
	if err := expectObject(obj, path...); err != nil {
		return t, err
	}
	var err error
	if t.Tag, err = requireString(obj, "tag", path...); err != nil {
		return t, err
	}
	if t.Title, err = optionalString(obj, "title", path...); err != nil {
		return t, err
	}
	usage, err := optionalCount(obj, "usage", path...)
	if err != nil {
		return t, err
	}
	if usage != nil {
		t.Usage = *usage
	}
	return t, nil
}

// DecodeTags decodes a list of directory tags.
func DecodeTags(data []byte) ([]models.Tag, error) {
	return decodeList(data, decodeTag)
}

// DecodeSettings decodes a settings object. Non-string values are kept as
// their raw JSON text.
func DecodeSettings(data []byte) (map[string]string, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := expectObject(root); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	root.ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.String {
			out[k.Str] = v.Str
		} else {
			out[k.Str] = v.Raw
		}
		return true
	})
	return out, nil
}
