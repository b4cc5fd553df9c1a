package models

import (
	"net/url"
	"sort"
	"strings"

	"github.com/dmitrijs2005/gposync/internal/common"
)

// SubscriptionChange is a diff of a device's subscription set. A URL is never
// in both Add and Remove.
type SubscriptionChange struct {
	Add       []string
	Remove    []string
	Timestamp int64
}

// Empty reports whether the diff carries no URLs.
func (c SubscriptionChange) Empty() bool {
	return len(c.Add) == 0 && len(c.Remove) == 0
}

// Validate checks every URL and rejects diffs that add and remove the same URL.
func (c SubscriptionChange) Validate() error {
	added := make(map[string]struct{}, len(c.Add))
	for _, u := range c.Add {
		if err := ValidateURL("add", u); err != nil {
			return err
		}
		added[u] = struct{}{}
	}
	for _, u := range c.Remove {
		if err := ValidateURL("remove", u); err != nil {
			return err
		}
		if _, ok := added[u]; ok {
			return &common.ValidationError{Field: "remove", Value: u, Reason: "url is both added and removed"}
		}
	}
	return nil
}

// URLRewrite is a server-side URL sanitization reported after an upload. An
// empty New means the server dropped the URL.
type URLRewrite struct {
	Old string
	New string
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &common.ValidationError{Field: field, Value: raw, Reason: err.Error()}
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return &common.ValidationError{Field: field, Value: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &common.ValidationError{Field: field, Value: raw, Reason: "missing host"}
	}
	return nil
}

// ApplyRewrites maps urls through rw, dropping URLs rewritten to "".
func ApplyRewrites(urls []string, rw []URLRewrite) []string {
	if len(rw) == 0 {
		return urls
	}
	m := make(map[string]string, len(rw))
	for _, r := range rw {
		m[r.Old] = r.New
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if n, ok := m[u]; ok {
			if n == "" {
				continue
			}
			u = n
		}
		out = append(out, u)
	}
	return out
}

// SortedSet returns the distinct values of in, sorted.
func SortedSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
