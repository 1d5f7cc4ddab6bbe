// Package tenant maps request hostnames onto tenant site configuration.
package tenant

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"chif/internal/models"

	"gopkg.in/yaml.v3"
)

// Config is the branding and identity of one tenant site.
type Config struct {
	SiteID         uint   `yaml:"id" json:"id"`
	Key            string `yaml:"key" json:"key"`
	HostPattern    string `yaml:"host_pattern" json:"host_pattern"`
	Name           string `yaml:"name" json:"name"`
	TitleHeader    string `yaml:"title_header" json:"title_header"`
	TitleSubHeader string `yaml:"title_subheader" json:"title_subheader"`
	Description    string `yaml:"description" json:"description"`
	LogoPath       string `yaml:"logo_path" json:"logo_path"`
	IsDefault      bool   `yaml:"default" json:"is_default"`
}

// fallback is returned by a nil Registry so Resolve always yields a config.
var fallback = Config{Key: "default", Name: "Church"}

// Registry is an immutable, ordered set of tenant configs with one default.
// It is safe for concurrent use.
type Registry struct {
	entries []Config
	def     Config
}

// NewRegistry validates entries and builds a registry. Entries are matched in
// the order given; exactly one must be marked default.
func NewRegistry(entries []Config) (*Registry, error) {
	if len(entries) == 0 {
		return nil, errors.New("tenant registry needs at least one site")
	}

	var (
		def      *Config
		problems []string
		seen     = make(map[string]struct{}, len(entries))
	)
	out := make([]Config, 0, len(entries))
	for i, e := range entries {
		e.HostPattern = strings.ToLower(strings.TrimSpace(e.HostPattern))
		if e.Key == "" {
			problems = append(problems, fmt.Sprintf("site %d: key is required", i))
		}
		if _, dup := seen[e.Key]; dup && e.Key != "" {
			problems = append(problems, fmt.Sprintf("site %d: duplicate key %q", i, e.Key))
		}
		seen[e.Key] = struct{}{}
		if e.HostPattern == "" && !e.IsDefault {
			problems = append(problems, fmt.Sprintf("site %q: host_pattern is required", e.Key))
		}
		if e.IsDefault {
			if def != nil {
				problems = append(problems, fmt.Sprintf("site %q: only one default allowed (already %q)", e.Key, def.Key))
			} else {
				d := e
				def = &d
			}
		}
		out = append(out, e)
	}
	if def == nil {
		problems = append(problems, "no default site configured")
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid tenant registry: %s", strings.Join(problems, "; "))
	}

	return &Registry{entries: out, def: *def}, nil
}

// Resolve returns the config of the first site whose host pattern is contained
// in host, or the default site when none match. It never fails.
//
// Matching is by substring so staging and preview hosts that embed a
// production hostname resolve to the same tenant; ports are irrelevant.
func (r *Registry) Resolve(host string) Config {
	if r == nil {
		return fallback
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host != "" {
		for _, e := range r.entries {
			if e.HostPattern != "" && strings.Contains(host, e.HostPattern) {
				return e
			}
		}
	}
	return r.def
}

// Default returns the designated default site.
func (r *Registry) Default() Config {
	if r == nil {
		return fallback
	}
	return r.def
}

// Sites returns a copy of the registry entries in match order.
func (r *Registry) Sites() []Config {
	if r == nil {
		return nil
	}
	out := make([]Config, len(r.entries))
	copy(out, r.entries)
	return out
}

type fileFormat struct {
	Sites []Config `yaml:"sites"`
}

// LoadFile reads a YAML registry of the form `sites: [...]`.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML bytes. Every entry needs a positive id:
// content rows reference sites by id, so an entry without one would resolve
// but never show any branches, events or sermons.
func Parse(data []byte) (*Registry, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode sites file: %w", err)
	}

	var problems []string
	ids := make(map[uint]string, len(f.Sites))
	for i, e := range f.Sites {
		if e.SiteID == 0 {
			problems = append(problems, fmt.Sprintf("site %d (%q): id is required", i, e.Key))
			continue
		}
		if other, dup := ids[e.SiteID]; dup {
			problems = append(problems, fmt.Sprintf("site %q: id %d already used by %q", e.Key, e.SiteID, other))
		}
		ids[e.SiteID] = e.Key
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid sites file: %s", strings.Join(problems, "; "))
	}
	return NewRegistry(f.Sites)
}

// FromSites builds a registry from persisted sites. Inactive rows are skipped;
// the rest are matched by ascending priority, then id.
func FromSites(sites []models.Site) (*Registry, error) {
	active := make([]models.Site, 0, len(sites))
	for _, s := range sites {
		if s.IsActive {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].ID < active[j].ID
	})

	entries := make([]Config, 0, len(active))
	for _, s := range active {
		entries = append(entries, Config{
			SiteID:         s.ID,
			Key:            s.Key,
			HostPattern:    s.HostPattern,
			Name:           s.Name,
			TitleHeader:    s.TitleHeader,
			TitleSubHeader: s.TitleSubHeader,
			Description:    s.Description,
			LogoPath:       s.LogoPath,
			IsDefault:      s.IsDefault,
		})
	}
	return NewRegistry(entries)
}
