package models

import "time"

// Podcast is a directory record for a feed.
type Podcast struct {
	URL                 string
	Title               string
	Description         string
	Website             string
	LogoURL             string
	ScaledLogoURL       string
	MygpoLink           string
	Subscribers         int
	SubscribersLastWeek int
}

// Episode is a directory record for a single episode, as returned by the
// favorites and episode data endpoints.
type Episode struct {
	Title        string
	URL          string
	PodcastTitle string
	PodcastURL   string
	Description  string
	Website      string
	MygpoLink    string
	Released     time.Time
}

// Tag is a directory tag with its usage count.
type Tag struct {
	Title string
	Tag   string
	Usage int
}

// SettingsScope selects which settings namespace a request targets.
type SettingsScope string

const (
	ScopeAccount SettingsScope = "account"
	ScopeDevice  SettingsScope = "device"
	ScopePodcast SettingsScope = "podcast"
	ScopeEpisode SettingsScope = "episode"
)

// SettingsTarget addresses one settings map. Device is used by the device
// scope, Podcast by the podcast and episode scopes, Episode by the episode scope.
type SettingsTarget struct {
	Scope   SettingsScope
	Device  string
	Podcast string
	Episode string
}
