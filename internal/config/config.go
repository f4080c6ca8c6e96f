// Package config loads and persists the YAML-backed configuration that drives
// OnboardPipe: team documentation links, team checklists, team-to-channel
// mappings, error resolution rules, and learning resources.
//
// Configuration is loaded once at process start and passed explicitly to the
// components that need it. Only the channel map is rewritten at runtime, by
// the channel-sync operations.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BTreeMap/OnboardPipe/internal/models"
	"gopkg.in/yaml.v3"
)

// File names expected inside the configuration directory.
const (
	TeamsFile     = "teams.yaml"
	ChannelsFile  = "channels.yaml"
	ErrorsFile    = "errors.yaml"
	ResourcesFile = "resources.yaml"
)

// CommonTeamKey is the reserved channel-map key whose channels every
// provisioned user joins regardless of team selection.
const CommonTeamKey = "common"

// DefaultChecklist is used for teams that have no checklist configured.
var DefaultChecklist = []string{
	"Set up your email account",
	"Read the employee handbook",
	"Join all relevant Slack channels",
	"Schedule a 1:1 with your manager",
	"Complete security training",
	"Access internal documentation",
	"Introduce yourself in #general",
}

// TeamEntry is the per-team configuration block in teams.yaml.
type TeamEntry struct {
	Links     []models.TeamLink `yaml:"links"`
	Checklist []string          `yaml:"checklist,omitempty"`
}

// Config is the in-process view of all YAML configuration files.
// The channel map is guarded by a mutex because channel lifecycle events
// mutate it concurrently with provisioning reads; last write wins.
type Config struct {
	dir string

	Teams     map[string]TeamEntry
	Errors    []models.ErrorRule
	Resources map[string]string

	mu       sync.RWMutex
	channels map[string][]string
}

type errorsFile struct {
	Errors []models.ErrorRule `yaml:"errors"`
}

type resourcesFile struct {
	Resources map[string]string `yaml:"resources"`
}

// Load reads all configuration files from dir and validates them.
// Missing or malformed required files are startup-fatal by design.
func Load(dir string) (*Config, error) {
	cfg := &Config{dir: dir}

	if err := loadYAML(filepath.Join(dir, TeamsFile), &cfg.Teams); err != nil {
		return nil, fmt.Errorf("loading %s: %w", TeamsFile, err)
	}
	if err := loadYAML(filepath.Join(dir, ChannelsFile), &cfg.channels); err != nil {
		return nil, fmt.Errorf("loading %s: %w", ChannelsFile, err)
	}

	var ef errorsFile
	if err := loadYAML(filepath.Join(dir, ErrorsFile), &ef); err != nil {
		return nil, fmt.Errorf("loading %s: %w", ErrorsFile, err)
	}
	cfg.Errors = ef.Errors

	var rf resourcesFile
	if err := loadYAML(filepath.Join(dir, ResourcesFile), &rf); err != nil {
		return nil, fmt.Errorf("loading %s: %w", ResourcesFile, err)
	}
	cfg.Resources = rf.Resources

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	slog.Info("configuration loaded", "dir", dir,
		"teams", len(cfg.Teams), "error_rules", len(cfg.Errors), "resources", len(cfg.Resources))
	return cfg, nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func (c *Config) validate() error {
	if len(c.Teams) == 0 {
		return fmt.Errorf("no teams configured in %s", TeamsFile)
	}
	for name, team := range c.Teams {
		for _, link := range team.Links {
			if link.URL == "" {
				return fmt.Errorf("team %q has a link with an empty url", name)
			}
		}
		if len(team.Checklist) > models.MaxChecklistItems {
			return fmt.Errorf("team %q checklist exceeds %d items", name, models.MaxChecklistItems)
		}
	}
	for i, rule := range c.Errors {
		if rule.Pattern == "" {
			return fmt.Errorf("error rule %d has an empty pattern", i)
		}
	}
	return nil
}

// TeamNames returns the configured team names in sorted order.
func (c *Config) TeamNames() []string {
	names := make([]string, 0, len(c.Teams))
	for name := range c.Teams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TeamLinks collects the documentation links of the given teams, in team
// order. Duplicate URLs across teams are kept; priority drives display only.
func (c *Config) TeamLinks(teams []string) []models.TeamLink {
	var links []models.TeamLink
	for _, team := range teams {
		entry, ok := c.Teams[team]
		if !ok {
			slog.Debug("config: unknown team in link lookup", "team", team)
			continue
		}
		links = append(links, entry.Links...)
	}
	return links
}

// Checklist returns the checklist configured for the team, or the default
// checklist when the team has none.
func (c *Config) Checklist(team string) []string {
	if entry, ok := c.Teams[team]; ok && len(entry.Checklist) > 0 {
		return entry.Checklist
	}
	return DefaultChecklist
}

// ChannelsFor unions the channel sets of the given teams with the reserved
// "common" set. The result order is not significant.
func (c *Config) ChannelsFor(teams []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	add := func(ids []string) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	for _, team := range teams {
		add(c.channels[team])
	}
	add(c.channels[CommonTeamKey])
	return out
}

// AddChannel records a channel under every team whose name is a substring of
// the channel name (case-insensitive). Returns the teams that gained the
// channel.
func (c *Config) AddChannel(channelID, channelName string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	lower := strings.ToLower(channelName)
	var updated []string
	for team, ids := range c.channels {
		if !strings.Contains(lower, strings.ToLower(team)) {
			continue
		}
		if containsString(ids, channelID) {
			continue
		}
		c.channels[team] = append(ids, channelID)
		updated = append(updated, team)
		slog.Info("config: channel added to team", "channel", channelID, "team", team)
	}
	sort.Strings(updated)
	return updated
}

// RemoveChannel deletes a channel from every team set that contains it.
// Returns the teams it was removed from.
func (c *Config) RemoveChannel(channelID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var updated []string
	for team, ids := range c.channels {
		filtered := ids[:0:0]
		for _, id := range ids {
			if id != channelID {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) != len(ids) {
			c.channels[team] = filtered
			updated = append(updated, team)
			slog.Info("config: channel removed from team", "channel", channelID, "team", team)
		}
	}
	sort.Strings(updated)
	return updated
}

// SaveChannels rewrites channels.yaml with the current channel map.
func (c *Config) SaveChannels() error {
	c.mu.RLock()
	data, err := yaml.Marshal(c.channels)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling channel map: %w", err)
	}

	path := filepath.Join(c.dir, ChannelsFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Error("config: failed to write channel map", "error", err, "path", path)
		return fmt.Errorf("writing %s: %w", ChannelsFile, err)
	}
	slog.Debug("config: channel map persisted", "path", path)
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
