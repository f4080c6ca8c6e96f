package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{name: "true", value: "true", defaultValue: false, want: true},
		{name: "one", value: "1", defaultValue: false, want: true},
		{name: "yes uppercase", value: "YES", defaultValue: false, want: true},
		{name: "on with spaces", value: " on ", defaultValue: false, want: true},
		{name: "false", value: "false", defaultValue: true, want: false},
		{name: "zero", value: "0", defaultValue: true, want: false},
		{name: "off", value: "off", defaultValue: true, want: false},
		{name: "unset uses default", value: "", defaultValue: true, want: true},
		{name: "garbage uses default", value: "maybe", defaultValue: false, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "ONBOARDPIPE_TEST_BOOL"
			if tt.value != "" {
				t.Setenv(key, tt.value)
			}
			if got := ParseBoolEnv(key, tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}
