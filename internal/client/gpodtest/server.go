// Package gpodtest provides an in-memory gpodder API v2 server for tests.
//
// The server keeps per-account devices, a subscription change history per
// device, the episode action log, settings and a small static directory. Its
// cursor is a counter that advances on every accepted upload, which is how the
// real service behaves from a client's point of view. Faults can be injected
// to exercise retry and checkpoint handling.
package gpodtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Action mirrors the wire shape of an episode action.
type Action struct {
	Podcast   string `json:"podcast"`
	Episode   string `json:"episode"`
	Device    string `json:"device,omitempty"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Started   *int   `json:"started,omitempty"`
	Position  *int   `json:"position,omitempty"`
	Total     *int   `json:"total,omitempty"`
}

type subEvent struct {
	cursor int64
	url    string
	add    bool
}

type storedAction struct {
	cursor int64
	Action
}

type device struct {
	caption string
	typ     string
	history []subEvent
}

type account struct {
	password string
	devices  map[string]*device
	actions  []storedAction
	settings map[string]map[string]string
}

// Server is the fake gpodder service.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	clock    int64
	accounts map[string]*account
	faults   []int
	requests []string

	// OmitEpisodeTimestamp drops "timestamp" from episode action downloads.
	OmitEpisodeTimestamp bool
	// ConflictOnStaleSince answers 409 when a GET "since" is behind the
	// account's last upload by more than this many cursor steps; 0 disables.
	ConflictOnStaleSince int64
}

// NewServer starts a server with one account.
func NewServer(username, password string) *Server {
	s := &Server{clock: 1000, accounts: map[string]*account{}}
	s.AddAccount(username, password)
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// AddAccount registers another account.
func (s *Server) AddAccount(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = &account{
		password: password,
		devices:  map[string]*device{},
		settings: map[string]map[string]string{},
	}
}

// FailNext makes the next requests fail with the given statuses, in order.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, statuses...)
}

// Requests returns "METHOD path" for every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Cursor returns the current server cursor.
func (s *Server) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// ChangeSubscriptions records a change made by some other client (for example
// the web UI) on the given device.
func (s *Server) ChangeSubscriptions(username, deviceID string, add, remove []string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applySubs(s.accounts[username], deviceID, add, remove)
}

// Subscriptions returns the server-side subscription set of a device.
func (s *Server) Subscriptions(username, deviceID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.accounts[username].devices[deviceID]
	if d == nil {
		return nil
	}
	return currentSet(d.history)
}

// AddActions appends actions to the log as if another client uploaded them.
func (s *Server) AddActions(username string, actions ...Action) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[username]
	s.clock++
	for _, a := range actions {
		acc.actions = append(acc.actions, storedAction{cursor: s.clock, Action: a})
	}
	return s.clock
}

// Actions returns the account's whole action log.
func (s *Server) Actions(username string) []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Action, 0, len(s.accounts[username].actions))
	for _, a := range s.accounts[username].actions {
		out = append(out, a.Action)
	}
	return out
}

func (s *Server) device(acc *account, id string) *device {
	d, ok := acc.devices[id]
	if !ok {
		d = &device{caption: "", typ: "other"}
		acc.devices[id] = d
	}
	return d
}

// applySubs records the events that change the device's set. A change that
// is already in effect is a no-op and does not advance the cursor.
func (s *Server) applySubs(acc *account, deviceID string, add, remove []string) int64 {
	d := s.device(acc, deviceID)
	state := map[string]bool{}
	for _, e := range d.history {
		state[e.url] = e.add
	}
	var events []subEvent
	for _, u := range add {
		if !state[u] {
			state[u] = true
			events = append(events, subEvent{url: u, add: true})
		}
	}
	for _, u := range remove {
		if state[u] {
			state[u] = false
			events = append(events, subEvent{url: u, add: false})
		}
	}
	if len(events) == 0 {
		return s.clock
	}
	s.clock++
	for _, e := range events {
		e.cursor = s.clock
		d.history = append(d.history, e)
	}
	return s.clock
}

func currentSet(history []subEvent) []string {
	state := map[string]bool{}
	for _, e := range history {
		state[e.url] = e.add
	}
	out := []string{}
	for u, on := range state {
		if on {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	if len(s.faults) > 0 {
		status := s.faults[0]
		s.faults = s.faults[1:]
		http.Error(w, "injected fault", status)
		return
	}

	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "toplist":
		writeJSON(w, limit(directory, parts[1]))
		return
	case len(parts) == 1 && parts[0] == "search":
		q := strings.ToLower(r.URL.Query().Get("q"))
		out := []podcast{}
		for _, p := range directory {
			if strings.Contains(strings.ToLower(p.Title), q) {
				out = append(out, p)
			}
		}
		writeJSON(w, out)
		return
	case len(parts) == 4 && parts[0] == "api" && parts[2] == "tags":
		writeJSON(w, []map[string]any{{"title": "Technology", "tag": "technology", "usage": 530}})
		return
	case len(parts) == 5 && parts[0] == "api" && parts[2] == "tag":
		writeJSON(w, limit(directory, parts[4]))
		return
	case len(parts) == 4 && parts[0] == "api" && parts[2] == "data" && parts[3] == "podcast":
		for _, p := range directory {
			if p.URL == r.URL.Query().Get("url") {
				writeJSON(w, p)
				return
			}
		}
		http.NotFound(w, r)
		return
	case len(parts) == 4 && parts[0] == "api" && parts[2] == "data" && parts[3] == "episode":
		writeJSON(w, favorite(r.URL.Query().Get("podcast"), r.URL.Query().Get("url")))
		return
	}

	user, acc, ok := s.authenticate(w, r, parts)
	if !ok {
		return
	}

	switch {
	case len(parts) == 2 && parts[0] == "suggestions":
		writeJSON(w, limit(directory, parts[1]))
	case len(parts) == 5 && parts[0] == "api" && parts[2] == "auth":
		if parts[4] == "login" {
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "session-" + user, Path: "/"})
		}
		w.WriteHeader(http.StatusOK)
	case len(parts) == 4 && parts[0] == "api" && parts[2] == "devices":
		s.listDevices(w, acc)
	case len(parts) == 5 && parts[0] == "api" && parts[2] == "devices":
		s.updateDevice(w, r, acc, parts[4])
	case len(parts) == 5 && parts[0] == "api" && parts[2] == "subscriptions":
		if r.Method == http.MethodPost {
			s.uploadSubs(w, r, acc, parts[4])
		} else {
			s.subChanges(w, r, acc, parts[4])
		}
	case len(parts) == 3 && parts[0] == "subscriptions":
		s.deviceList(w, r, acc, parts[2])
	case len(parts) == 2 && parts[0] == "subscriptions":
		s.allSubs(w, acc)
	case len(parts) == 4 && parts[0] == "api" && parts[2] == "episodes":
		if r.Method == http.MethodPost {
			s.uploadActions(w, r, acc)
		} else {
			s.getActions(w, r, acc)
		}
	case len(parts) == 5 && parts[0] == "api" && parts[2] == "settings":
		s.settings(w, r, acc, parts[4])
	case len(parts) == 4 && parts[0] == "api" && parts[2] == "favorites":
		writeJSON(w, []episode{favorite(directory[0].URL, directory[0].URL+"/ep1.mp3")})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, parts []string) (string, *account, bool) {
	var user string
	switch {
	case len(parts) >= 4 && parts[0] == "api":
		user = parts[3]
	case len(parts) >= 2 && parts[0] == "subscriptions":
		user = parts[1]
	}
	if c, err := r.Cookie("sessionid"); err == nil && strings.HasPrefix(c.Value, "session-") {
		name := strings.TrimPrefix(c.Value, "session-")
		if acc, ok := s.accounts[name]; ok && (user == "" || user == name) {
			return name, acc, true
		}
	}
	u, p, ok := r.BasicAuth()
	acc := s.accounts[u]
	if !ok || acc == nil || acc.password != p || (user != "" && user != u) {
		w.WriteHeader(http.StatusUnauthorized)
		return "", nil, false
	}
	return u, acc, true
}

func (s *Server) listDevices(w http.ResponseWriter, acc *account) {
	ids := make([]string, 0, len(acc.devices))
	for id := range acc.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		d := acc.devices[id]
		out = append(out, map[string]any{
			"id": id, "caption": d.caption, "type": d.typ, "subscriptions": len(currentSet(d.history)),
		})
	}
	writeJSON(w, out)
}

func (s *Server) updateDevice(w http.ResponseWriter, r *http.Request, acc *account, id string) {
	var body struct {
		Caption *string `json:"caption"`
		Type    *string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d := s.device(acc, id)
	if body.Caption != nil {
		d.caption = *body.Caption
	}
	if body.Type != nil {
		d.typ = *body.Type
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) uploadSubs(w http.ResponseWriter, r *http.Request, acc *account, id string) {
	var body struct {
		Add    []string `json:"add"`
		Remove []string `json:"remove"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rewrites := [][2]string{}
	clean := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, u := range in {
			if t := strings.TrimSpace(u); t != u {
				rewrites = append(rewrites, [2]string{u, t})
				u = t
			}
			out = append(out, u)
		}
		return out
	}
	add, remove := clean(body.Add), clean(body.Remove)
	for _, a := range add {
		for _, rm := range remove {
			if a == rm {
				http.Error(w, "url in add and remove", http.StatusBadRequest)
				return
			}
		}
	}
	ts := s.applySubs(acc, id, add, remove)
	writeJSON(w, map[string]any{"timestamp": ts, "update_urls": rewrites})
}

func (s *Server) subChanges(w http.ResponseWriter, r *http.Request, acc *account, id string) {
	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		http.Error(w, "bad since", http.StatusBadRequest)
		return
	}
	if s.ConflictOnStaleSince > 0 && s.clock-since > s.ConflictOnStaleSince {
		http.Error(w, "stale since", http.StatusConflict)
		return
	}
	d := s.device(acc, id)
	latest := map[string]bool{}
	var order []string
	for _, e := range d.history {
		if e.cursor <= since {
			continue
		}
		if _, seen := latest[e.url]; !seen {
			order = append(order, e.url)
		}
		latest[e.url] = e.add
	}
	add, remove := []string{}, []string{}
	for _, u := range order {
		if latest[u] {
			add = append(add, u)
		} else {
			remove = append(remove, u)
		}
	}
	writeJSON(w, map[string]any{"add": add, "remove": remove, "timestamp": s.clock})
}

func (s *Server) deviceList(w http.ResponseWriter, r *http.Request, acc *account, id string) {
	d := s.device(acc, id)
	if r.Method != http.MethodPut {
		writeJSON(w, currentSet(d.history))
		return
	}
	var urls []string
	if err := json.NewDecoder(r.Body).Decode(&urls); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	want := map[string]bool{}
	for _, u := range urls {
		want[u] = true
	}
	var add, remove []string
	for _, u := range currentSet(d.history) {
		if !want[u] {
			remove = append(remove, u)
		}
		delete(want, u)
	}
	for u := range want {
		add = append(add, u)
	}
	sort.Strings(add)
	s.applySubs(acc, id, add, remove)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) allSubs(w http.ResponseWriter, acc *account) {
	seen := map[string]bool{}
	out := []podcast{}
	ids := make([]string, 0, len(acc.devices))
	for id := range acc.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, u := range currentSet(acc.devices[id].history) {
			if !seen[u] {
				seen[u] = true
				out = append(out, podcast{URL: u, Title: u})
			}
		}
	}
	writeJSON(w, out)
}

func (s *Server) uploadActions(w http.ResponseWriter, r *http.Request, acc *account) {
	var actions []Action
	if err := json.NewDecoder(r.Body).Decode(&actions); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.clock++
	for _, a := range actions {
		acc.actions = append(acc.actions, storedAction{cursor: s.clock, Action: a})
	}
	writeJSON(w, map[string]any{"timestamp": s.clock, "update_urls": [][2]string{}})
}

func (s *Server) getActions(w http.ResponseWriter, r *http.Request, acc *account) {
	q := r.URL.Query()
	since, _ := strconv.ParseInt(q.Get("since"), 10, 64)
	if s.ConflictOnStaleSince > 0 && s.clock-since > s.ConflictOnStaleSince {
		http.Error(w, "stale since", http.StatusConflict)
		return
	}
	out := []Action{}
	for _, a := range acc.actions {
		if a.cursor <= since {
			continue
		}
		if p := q.Get("podcast"); p != "" && a.Podcast != p {
			continue
		}
		if d := q.Get("device"); d != "" && a.Device != d {
			continue
		}
		out = append(out, a.Action)
	}
	if q.Get("aggregated") == "true" {
		latest := map[string]int{}
		agg := []Action{}
		for _, a := range out {
			if i, ok := latest[a.Episode]; ok {
				agg[i] = a
				continue
			}
			latest[a.Episode] = len(agg)
			agg = append(agg, a)
		}
		out = agg
	}
	resp := map[string]any{"actions": out}
	if !s.OmitEpisodeTimestamp {
		resp["timestamp"] = s.clock
	}
	writeJSON(w, resp)
}

func (s *Server) settings(w http.ResponseWriter, r *http.Request, acc *account, scope string) {
	q := r.URL.Query()
	key := scope + "|" + q.Get("device") + "|" + q.Get("podcast") + "|" + q.Get("episode")
	m := acc.settings[key]
	if m == nil {
		m = map[string]string{}
		acc.settings[key] = m
	}
	if r.Method == http.MethodPost {
		raw, _ := io.ReadAll(r.Body)
		var body struct {
			Set    map[string]string `json:"set"`
			Remove []string          `json:"remove"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for k, v := range body.Set {
			m[k] = v
		}
		for _, k := range body.Remove {
			delete(m, k)
		}
	}
	writeJSON(w, m)
}

type podcast struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Website     string `json:"website"`
	Subscribers int    `json:"subscribers"`
	MygpoLink   string `json:"mygpo_link"`
}

type episode struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	PodcastTitle string `json:"podcast_title"`
	PodcastURL   string `json:"podcast_url"`
	Released     string `json:"released"`
}

var directory = []podcast{
	{URL: "http://feeds.example.com/linux-outlaws.xml", Title: "Linux Outlaws", Description: "Linux news", Website: "http://example.com/lo", Subscribers: 1956},
	{URL: "http://feeds.example.com/sixty-symbols.xml", Title: "Sixty Symbols", Description: "Physics", Website: "http://example.com/ss", Subscribers: 1200},
	{URL: "http://feeds.example.com/twit.xml", Title: "this WEEK in TECH", Description: "Tech talk", Website: "http://example.com/twit", Subscribers: 900},
}

func favorite(podcastURL, episodeURL string) episode {
	return episode{
		Title: "Episode 1", URL: episodeURL, PodcastTitle: "Podcast", PodcastURL: podcastURL,
		Released: time.Date(2010, 12, 25, 0, 30, 0, 0, time.UTC).Format("2006-01-02T15:04:05"),
	}
}

func limit(list []podcast, n string) []podcast {
	k, err := strconv.Atoi(n)
	if err != nil || k > len(list) {
		return list
	}
	return list[:k]
}
