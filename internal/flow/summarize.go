package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/OnboardPipe/internal/models"
)

// MaxSummaryMessages bounds how much channel or thread history is collected
// for one summarization request.
const MaxSummaryMessages = 1000

// SummarizeChannel summarizes up to MaxSummaryMessages of channel history,
// oldest first, and appends keyword-matched resource suggestions. Returns
// the reply text for the caller to post.
func (e *Engine) SummarizeChannel(ctx context.Context, channelID string) (string, error) {
	messages, err := e.ws.ChannelHistory(ctx, channelID, MaxSummaryMessages)
	if err != nil {
		return "", fmt.Errorf("fetching channel history: %w", err)
	}
	conversation := strings.TrimSpace(strings.Join(messages, "\n"))
	if conversation == "" {
		return "No messages to summarize.", nil
	}

	summary, err := e.summarizeConversation(ctx, conversation)
	if err != nil {
		return "", err
	}
	slog.Info("Engine channel summarized", "channel", channelID, "messages", len(messages))
	return "*Channel Summary:*\n" + summary + e.resourceFooter(conversation), nil
}

// SummarizeThread summarizes one thread's replies and appends resource
// suggestions, same shape as SummarizeChannel.
func (e *Engine) SummarizeThread(ctx context.Context, channelID, threadTS string) (string, error) {
	messages, err := e.ws.ThreadReplies(ctx, channelID, threadTS, MaxSummaryMessages)
	if err != nil {
		return "", fmt.Errorf("fetching thread replies: %w", err)
	}
	conversation := strings.TrimSpace(strings.Join(messages, "\n"))
	if conversation == "" {
		return "No messages to summarize in this thread.", nil
	}

	summary, err := e.summarizeConversation(ctx, conversation)
	if err != nil {
		return "", err
	}
	slog.Info("Engine thread summarized", "channel", channelID, "thread", threadTS, "messages", len(messages))
	return "*Thread Summary:*\n" + summary + e.resourceFooter(conversation), nil
}

// summarizeConversation clamps the conversation to the fetch budget before
// handing it to the summarizer.
func (e *Engine) summarizeConversation(ctx context.Context, conversation string) (string, error) {
	if len(conversation) > models.MaxFetchChars {
		conversation = conversation[:models.MaxFetchChars]
	}
	summary, err := e.summ.Summarize(ctx, conversation)
	if err != nil {
		return "", fmt.Errorf("summarizing conversation: %w", err)
	}
	return summary, nil
}

// resourceFooter renders the keyword-matched learning resources for a
// conversation, or an empty string when nothing matches.
func (e *Engine) resourceFooter(conversation string) string {
	suggestions := SuggestResources(e.cfg.Resources, conversation)
	if len(suggestions) == 0 {
		return ""
	}
	return "\n\n*Helpful resources based on this conversation:*\n" + strings.Join(suggestions, "\n")
}

// SendSyncButton posts the channel-sync button to the configured target. A
// user ID target gets the button by DM; anything else is treated as a
// channel ID.
func (e *Engine) SendSyncButton(ctx context.Context, target string) error {
	channelID := target
	if strings.HasPrefix(target, "U") {
		dm, err := e.msgr.OpenDM(ctx, target)
		if err != nil {
			return err
		}
		channelID = dm
	}
	prompt := models.Prompt{
		Text: "Click the button below to sync channel IDs with teams.",
		Buttons: []models.Button{
			{Label: "Sync Channels", ActionID: ActionSyncChannels},
		},
	}
	return e.msgr.SendPrompt(ctx, channelID, prompt)
}

// handleSyncChannels runs a full channel sync in response to the sync button
// and reports the outcome where the button was clicked.
func (e *Engine) handleSyncChannels(ctx context.Context, ev models.Event) error {
	updated, err := e.SyncChannels(ctx)
	if err != nil {
		slog.Error("Engine channel sync failed", "error", err, "user", ev.UserID)
		return e.msgr.SendMessage(ctx, ev.ChannelID, fmt.Sprintf("Channel-to-team sync failed: %v", err))
	}
	reply := "Channel-to-team sync complete! No updates needed."
	if updated {
		reply = "Channel-to-team sync complete! Updated the channel map."
	}
	return e.msgr.SendMessage(ctx, ev.ChannelID, reply)
}

// SyncChannels walks the full workspace channel list and records every
// channel under each team whose name is a substring of the channel name.
// Reports whether the channel map changed.
func (e *Engine) SyncChannels(ctx context.Context) (bool, error) {
	channels, err := e.ws.ListChannels(ctx)
	if err != nil {
		return false, fmt.Errorf("listing channels: %w", err)
	}

	var updated bool
	for _, ch := range channels {
		if len(e.cfg.AddChannel(ch.ID, ch.Name)) > 0 {
			updated = true
		}
	}
	if updated {
		if err := e.cfg.SaveChannels(); err != nil {
			return true, err
		}
	}
	slog.Info("Engine channel sync complete", "channels", len(channels), "updated", updated)
	return updated, nil
}
