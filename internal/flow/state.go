// Package flow implements the conversational state machine, command
// handling, and event dispatch for OnboardPipe.
package flow

import (
	"context"

	"github.com/BTreeMap/OnboardPipe/internal/models"
)

// StateManager defines the interface for managing user dialogue state.
// A user has at most one active state; SetState overwrites the previous
// record and its data entirely.
type StateManager interface {
	// GetState retrieves the current state for a user, or nil when the user
	// has no active flow.
	GetState(ctx context.Context, userID string) (*models.UserState, error)

	// SetState replaces the user's state and state data.
	SetState(ctx context.Context, userID string, state models.StateType, data map[models.DataKey]string) error

	// SetStateData updates one data key without changing the current state.
	SetStateData(ctx context.Context, userID string, key models.DataKey, value string) error

	// ResetState removes the user's state, ending the active flow.
	ResetState(ctx context.Context, userID string) error
}

// Messenger sends replies and interactive prompts through the messaging
// platform. Implementations live in the transport layer.
type Messenger interface {
	// SendMessage posts plain text to a channel or DM.
	SendMessage(ctx context.Context, channelID, text string) error

	// SendPrompt posts a message carrying interactive elements.
	SendPrompt(ctx context.Context, channelID string, p models.Prompt) error

	// OpenDM opens (or reuses) a direct-message conversation with a user and
	// returns its channel ID.
	OpenDM(ctx context.Context, userID string) (string, error)

	// InviteToChannel invites a user into a channel.
	InviteToChannel(ctx context.Context, channelID, userID string) error
}

// Workspace reads channel structure and history from the messaging platform.
type Workspace interface {
	// ChannelHistory returns up to limit message texts from a channel,
	// oldest first, with system subtypes and empty messages filtered out.
	ChannelHistory(ctx context.Context, channelID string, limit int) ([]string, error)

	// ThreadReplies returns up to limit message texts from a thread, oldest
	// first, filtered the same way as ChannelHistory.
	ThreadReplies(ctx context.Context, channelID, threadTS string, limit int) ([]string, error)

	// ChannelMembers returns the user IDs of a channel's members.
	ChannelMembers(ctx context.Context, channelID string) ([]string, error)

	// ListChannels returns all public and private channels in the workspace.
	ListChannels(ctx context.Context) ([]models.ChannelInfo, error)

	// IsPrivateChannel reports whether a channel is private.
	IsPrivateChannel(ctx context.Context, channelID string) (bool, error)
}

// Summarizer condenses text into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// DocumentFetcher resolves a document link to its plain-text content.
type DocumentFetcher interface {
	Fetch(ctx context.Context, link string) (string, error)
}
