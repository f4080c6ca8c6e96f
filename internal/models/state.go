// Package models defines state management structures for OnboardPipe flows.
package models

import "time"

// UserState represents the current dialogue state of a user in a flow.
// A user has at most one live UserState per flow type; every transition
// overwrites the previous record rather than merging into it.
type UserState struct {
	UserID       string            `json:"user_id"`
	FlowType     string            `json:"flow_type"`
	CurrentState string            `json:"current_state"`
	StateData    map[string]string `json:"state_data,omitempty"` // Additional state-specific data
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
