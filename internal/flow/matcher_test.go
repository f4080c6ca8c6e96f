package flow

import (
	"reflect"
	"testing"

	"github.com/BTreeMap/OnboardPipe/internal/models"
)

func TestMatchError(t *testing.T) {
	rules := []models.ErrorRule{
		{Pattern: "timeout", Resolution: "R1"},
		{Pattern: "connection refused", Resolution: "R2"},
	}

	tests := []struct {
		name    string
		rules   []models.ErrorRule
		text    string
		want    string
		wantOK  bool
	}{
		{name: "exact pattern", rules: rules, text: "connection refused", want: "R2", wantOK: true},
		{name: "pattern inside larger text", rules: rules, text: "dial tcp: connection refused by host", want: "R2", wantOK: true},
		{name: "case insensitive", rules: rules, text: "CONNECTION REFUSED", want: "R2", wantOK: true},
		{name: "no match", rules: rules, text: "disk full", wantOK: false},
		{name: "empty rules", rules: nil, text: "timeout", wantOK: false},
		{
			name: "first registered rule wins over longer later match",
			rules: []models.ErrorRule{
				{Pattern: "refused", Resolution: "short"},
				{Pattern: "connection refused", Resolution: "long"},
			},
			text:   "connection refused",
			want:   "short",
			wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchError(tt.rules, tt.text)
			if ok != tt.wantOK {
				t.Fatalf("MatchError ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("MatchError = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSuggestResources(t *testing.T) {
	resources := map[string]string{
		"kubernetes": "https://example.com/k8s",
		"terraform":  "https://example.com/tf",
	}

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single keyword",
			text: "we deploy everything on Kubernetes",
			want: []string{"kubernetes: https://example.com/k8s"},
		},
		{
			name: "multiple keywords sorted",
			text: "terraform manages the kubernetes cluster",
			want: []string{"kubernetes: https://example.com/k8s", "terraform: https://example.com/tf"},
		},
		{name: "no keywords", text: "nothing relevant here", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestResources(resources, tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SuggestResources = %v, want %v", got, tt.want)
			}
		})
	}
}
