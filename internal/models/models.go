// Package models defines the core data structures for OnboardPipe.
//
// It includes types for inbound platform events, outbound interactive prompts,
// and the configuration-backed records (team links, error rules, checklists)
// shared across modules.
package models

import (
	"errors"
)

// EventType identifies the kind of inbound platform event.
type EventType string

const (
	// EventTypeMessage is a direct message or mention addressed to the bot.
	EventTypeMessage EventType = "message"
	// EventTypeAction is a button click or menu selection.
	EventTypeAction EventType = "action"
	// EventTypeMemberJoinedChannel fires when a user joins a channel.
	EventTypeMemberJoinedChannel EventType = "member_joined_channel"
	// EventTypeChannelCreated fires when a channel is created in the workspace.
	EventTypeChannelCreated EventType = "channel_created"
	// EventTypeChannelDeleted fires when a channel is deleted from the workspace.
	EventTypeChannelDeleted EventType = "channel_deleted"
)

// Event is a normalized inbound event delivered by the messaging platform.
type Event struct {
	Type           EventType `json:"type"`
	UserID         string    `json:"user_id,omitempty"`
	ChannelID      string    `json:"channel_id,omitempty"`
	ChannelName    string    `json:"channel_name,omitempty"`
	Text           string    `json:"text,omitempty"`
	ActionID       string    `json:"action_id,omitempty"`
	Value          string    `json:"value,omitempty"`
	SelectedValues []string  `json:"selected_values,omitempty"`
	Time           int64     `json:"time,omitempty"`
}

// Validation constants for outbound prompts.
const (
	// MaxButtonsPerPrompt bounds the number of buttons rendered on a prompt.
	MaxButtonsPerPrompt = 10
	// MaxChecklistItems bounds the number of checklist items rendered per user.
	MaxChecklistItems = 10
	// MaxFetchChars is the hard truncation budget applied to fetched document
	// text before it is handed to summarization.
	MaxFetchChars = 8000
)

// Error variables for better error handling and testability
var (
	ErrEmptyChannel     = errors.New("channel cannot be empty")
	ErrEmptyPrompt      = errors.New("prompt text cannot be empty")
	ErrTooManyButtons   = errors.New("prompt exceeds maximum button count")
	ErrEmptyButtonLabel = errors.New("button label cannot be empty")
)

// Button is a selectable action element attached to a prompt.
type Button struct {
	Label    string `json:"label"`
	ActionID string `json:"action_id"`
	Value    string `json:"value,omitempty"`
	Primary  bool   `json:"primary,omitempty"`
}

// SelectOption is one entry of a multi-select menu.
type SelectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// MultiSelect is a multi-select menu attached to a prompt.
type MultiSelect struct {
	Placeholder string         `json:"placeholder"`
	ActionID    string         `json:"action_id"`
	Options     []SelectOption `json:"options"`
}

// Prompt represents an outbound message, optionally carrying interactive
// elements. The transport decides how to render buttons and menus.
type Prompt struct {
	Header  string       `json:"header,omitempty"`
	Text    string       `json:"text"`
	Buttons []Button     `json:"buttons,omitempty"`
	Select  *MultiSelect `json:"select,omitempty"`
}

// Validate performs basic validation on an outbound prompt.
func (p *Prompt) Validate() error {
	if p.Text == "" && p.Header == "" {
		return ErrEmptyPrompt
	}
	if len(p.Buttons) > MaxButtonsPerPrompt {
		return ErrTooManyButtons
	}
	for _, b := range p.Buttons {
		if b.Label == "" {
			return ErrEmptyButtonLabel
		}
	}
	return nil
}

// TeamLink is one documentation link configured for a team.
// Priority 1 links are presented first; everything else is secondary.
// Priority is used only for display ordering, never for deduplication.
type TeamLink struct {
	URL      string `json:"url" yaml:"url"`
	Priority int    `json:"priority" yaml:"priority"`
}

// ErrorRule maps an error-text pattern to a suggested resolution.
// Rules are matched in configured order; the first case-insensitive
// substring hit wins.
type ErrorRule struct {
	Pattern    string `json:"pattern" yaml:"pattern"`
	Resolution string `json:"resolution" yaml:"resolution"`
}

// ChecklistItem is one entry of a per-user onboarding checklist.
type ChecklistItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// ChannelInfo describes a workspace channel as reported by the platform.
type ChannelInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Private bool   `json:"private,omitempty"`
}
