package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testTeams = `
Alpha:
  links:
    - url: https://example.atlassian.net/wiki/spaces/A/pages/111/Alpha+Home
      priority: 1
    - url: https://docs.google.com/document/d/alpha-extra/edit
      priority: 2
Beta:
  links:
    - url: https://example.atlassian.net/wiki/spaces/B/pages/222/Beta+Home
      priority: 1
  checklist:
    - "Read the Beta runbook"
    - "Get access to the Beta dashboard"
`

const testChannels = `
Alpha: [C1]
Beta: [C2]
common: [C3]
`

const testErrors = `
errors:
  - pattern: timeout
    resolution: R1
  - pattern: connection refused
    resolution: R2
`

const testResources = `
resources:
  kubernetes: https://kubernetes.io/docs
  terraform: https://developer.hashicorp.com/terraform
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		TeamsFile:     testTeams,
		ChannelsFile:  testChannels,
		ErrorsFile:    testErrors,
		ResourcesFile: testResources,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return dir
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTestConfig(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	names := cfg.TeamNames()
	if len(names) != 2 || names[0] != "Alpha" || names[1] != "Beta" {
		t.Errorf("unexpected team names: %v", names)
	}
	if len(cfg.Errors) != 2 || cfg.Errors[0].Pattern != "timeout" {
		t.Errorf("unexpected error rules: %+v", cfg.Errors)
	}
	if cfg.Resources["kubernetes"] == "" {
		t.Errorf("expected kubernetes resource, got %+v", cfg.Resources)
	}
}

func TestLoad_MissingFileIsFatal(t *testing.T) {
	dir := writeTestConfig(t)
	if err := os.Remove(filepath.Join(dir, ErrorsFile)); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected error for missing errors.yaml, got nil")
	}
}

func TestChannelsFor_UnionsWithCommon(t *testing.T) {
	cfg, err := Load(writeTestConfig(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := cfg.ChannelsFor([]string{"Alpha", "Beta"})
	want := map[string]bool{"C1": true, "C2": true, "C3": true}
	if len(got) != len(want) {
		t.Fatalf("ChannelsFor = %v, want channels %v", got, want)
	}
	for _, id := range got {
		if !want[id] {
			t.Errorf("unexpected channel %q in %v", id, got)
		}
	}
}

func TestChecklist_FallsBackToDefault(t *testing.T) {
	cfg, err := Load(writeTestConfig(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.Checklist("Beta"); len(got) != 2 || got[0] != "Read the Beta runbook" {
		t.Errorf("expected Beta checklist, got %v", got)
	}
	if got := cfg.Checklist("Alpha"); len(got) != len(DefaultChecklist) {
		t.Errorf("expected default checklist for Alpha, got %v", got)
	}
	if got := cfg.Checklist("Nonexistent"); len(got) != len(DefaultChecklist) {
		t.Errorf("expected default checklist for unknown team, got %v", got)
	}
}

func TestAddRemoveChannel(t *testing.T) {
	cfg, err := Load(writeTestConfig(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	updated := cfg.AddChannel("C9", "alpha-deploys")
	if len(updated) != 1 || updated[0] != "Alpha" {
		t.Fatalf("AddChannel updated %v, want [Alpha]", updated)
	}
	// Idempotent: adding again changes nothing.
	if updated := cfg.AddChannel("C9", "alpha-deploys"); len(updated) != 0 {
		t.Errorf("second AddChannel updated %v, want none", updated)
	}
	got := cfg.ChannelsFor([]string{"Alpha"})
	if !containsString(got, "C9") {
		t.Errorf("expected C9 in Alpha channels, got %v", got)
	}

	removed := cfg.RemoveChannel("C9")
	if len(removed) != 1 || removed[0] != "Alpha" {
		t.Fatalf("RemoveChannel updated %v, want [Alpha]", removed)
	}
	got = cfg.ChannelsFor([]string{"Alpha"})
	if containsString(got, "C9") {
		t.Errorf("expected C9 removed from Alpha channels, got %v", got)
	}
}

func TestSaveChannels_RoundTrip(t *testing.T) {
	dir := writeTestConfig(t)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg.AddChannel("C10", "beta-oncall")
	if err := cfg.SaveChannels(); err != nil {
		t.Fatalf("SaveChannels failed: %v", err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got := reloaded.ChannelsFor([]string{"Beta"})
	if !containsString(got, "C10") {
		t.Errorf("expected persisted C10 in Beta channels, got %v", got)
	}
}
