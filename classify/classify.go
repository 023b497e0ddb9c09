// Package classify maps incoming requests onto cache strategy classes.
// Rules are evaluated in a fixed order and the first match wins.
package classify

import (
	"net/http"
	"strings"

	"github.com/rudrakanya/Simhasth-X8/config"
)

// Class is the strategy class of a request.
type Class int

const (
	// ClassBypass marks non-GET requests, which are never cached.
	ClassBypass Class = iota
	// ClassStaticAsset is served cache-first from the static tier.
	ClassStaticAsset
	// ClassAPI is served network-first through the dynamic tier.
	ClassAPI
	// ClassHeritageContent is served cache-first from the heritage tier.
	ClassHeritageContent
	// ClassNavigation is a top-level page load.
	ClassNavigation
	// ClassDefault is everything else: network-first, dynamic tier.
	ClassDefault
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassBypass:
		return "bypass"
	case ClassStaticAsset:
		return "static-asset"
	case ClassAPI:
		return "api"
	case ClassHeritageContent:
		return "heritage-content"
	case ClassNavigation:
		return "navigation"
	case ClassDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Classifier applies the configured classification rules.
type Classifier struct {
	staticPrefixes []string
	allowedHosts   map[string]bool
	apiPrefix      string
	mediaMarkers   []string
}

// New builds a classifier from configuration.
func New(cfg config.ClassifierConfig) *Classifier {
	hosts := make(map[string]bool, len(cfg.AllowedHosts))
	for _, host := range cfg.AllowedHosts {
		hosts[strings.ToLower(host)] = true
	}
	return &Classifier{
		staticPrefixes: cfg.StaticPrefixes,
		allowedHosts:   hosts,
		apiPrefix:      cfg.APIPrefix,
		mediaMarkers:   cfg.MediaMarkers,
	}
}

// Classify determines the strategy class for a request.
// Rules, first match wins:
//  1. non-GET -> bypass
//  2. static prefix or allow-listed host -> static-asset
//  3. API prefix -> api
//  4. media directory in path -> heritage-content
//  5. top-level page navigation -> navigation
//  6. otherwise -> default
func (c *Classifier) Classify(r *http.Request) Class {
	if r.Method != http.MethodGet {
		return ClassBypass
	}

	path := r.URL.Path

	if c.allowedHosts[strings.ToLower(r.URL.Hostname())] {
		return ClassStaticAsset
	}
	for _, prefix := range c.staticPrefixes {
		if strings.HasPrefix(path, prefix) {
			return ClassStaticAsset
		}
	}

	if strings.HasPrefix(path, c.apiPrefix) {
		return ClassAPI
	}

	for _, marker := range c.mediaMarkers {
		if strings.Contains(path, marker) {
			return ClassHeritageContent
		}
	}

	if IsNavigation(r) {
		return ClassNavigation
	}

	return ClassDefault
}

// IsNavigation detects a top-level page load: an explicit navigate fetch mode
// or an HTML-accepting GET. Strategies use it to decide whether a failed
// cache-first request deserves the navigation fallback page.
func IsNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
