package slackbot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/BTreeMap/OnboardPipe/internal/models"
)

// historyPageSize is the per-request page size for history pagination.
const historyPageSize = 200

// SendMessage posts plain text to a channel or DM.
func (b *Bot) SendMessage(ctx context.Context, channelID, text string) error {
	if channelID == "" {
		return models.ErrEmptyChannel
	}
	_, _, err := b.client.PostMessage(channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("posting message to %s: %w", channelID, err)
	}
	return nil
}

// SendPrompt renders a prompt's interactive elements as Block Kit blocks and
// posts them.
func (b *Bot) SendPrompt(ctx context.Context, channelID string, p models.Prompt) error {
	if channelID == "" {
		return models.ErrEmptyChannel
	}
	if err := p.Validate(); err != nil {
		return err
	}
	_, _, err := b.client.PostMessage(channelID,
		slack.MsgOptionText(p.Text, false),
		slack.MsgOptionBlocks(renderPromptBlocks(p)...))
	if err != nil {
		return fmt.Errorf("posting prompt to %s: %w", channelID, err)
	}
	return nil
}

// OpenDM opens (or reuses) a direct-message conversation with a user.
func (b *Bot) OpenDM(ctx context.Context, userID string) (string, error) {
	channel, _, _, err := b.client.OpenConversation(&slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return "", fmt.Errorf("opening DM with %s: %w", userID, err)
	}
	return channel.ID, nil
}

// InviteToChannel invites a user into a channel.
func (b *Bot) InviteToChannel(ctx context.Context, channelID, userID string) error {
	if _, err := b.client.InviteUsersToConversation(channelID, userID); err != nil {
		return fmt.Errorf("inviting %s to %s: %w", userID, channelID, err)
	}
	return nil
}

// ChannelHistory pages through channel history and returns up to limit
// message texts, oldest first, skipping system subtypes and empty messages.
func (b *Bot) ChannelHistory(ctx context.Context, channelID string, limit int) ([]string, error) {
	var messages []slack.Message
	cursor := ""
	for len(messages) < limit {
		pageSize := historyPageSize
		if remaining := limit - len(messages); remaining < pageSize {
			pageSize = remaining
		}
		resp, err := b.client.GetConversationHistory(&slack.GetConversationHistoryParameters{
			ChannelID: channelID,
			Limit:     pageSize,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching history of %s: %w", channelID, err)
		}
		messages = append(messages, resp.Messages...)
		cursor = resp.ResponseMetaData.NextCursor
		if cursor == "" {
			break
		}
	}

	// The history API returns newest first; the summarizer wants
	// chronological order.
	texts := make([]string, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		if m := messages[i]; m.SubType == "" && m.Text != "" {
			texts = append(texts, m.Text)
		}
	}
	slog.Debug("slackbot: channel history fetched", "channel", channelID, "messages", len(texts))
	return texts, nil
}

// ThreadReplies returns up to limit message texts of a thread, oldest
// first, filtered the same way as ChannelHistory.
func (b *Bot) ThreadReplies(ctx context.Context, channelID, threadTS string, limit int) ([]string, error) {
	messages, _, _, err := b.client.GetConversationReplies(&slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching replies of %s in %s: %w", threadTS, channelID, err)
	}

	texts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.SubType == "" && m.Text != "" {
			texts = append(texts, m.Text)
		}
	}
	return texts, nil
}

// ChannelMembers returns the user IDs of a channel's members.
func (b *Bot) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	var members []string
	cursor := ""
	for {
		page, next, err := b.client.GetUsersInConversation(&slack.GetUsersInConversationParameters{
			ChannelID: channelID,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching members of %s: %w", channelID, err)
		}
		members = append(members, page...)
		if next == "" {
			break
		}
		cursor = next
	}
	return members, nil
}

// ListChannels returns all public and private channels in the workspace.
func (b *Bot) ListChannels(ctx context.Context) ([]models.ChannelInfo, error) {
	var channels []models.ChannelInfo
	cursor := ""
	for {
		page, next, err := b.client.GetConversations(&slack.GetConversationsParameters{
			Types:  []string{"public_channel", "private_channel"},
			Limit:  1000,
			Cursor: cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("listing channels: %w", err)
		}
		for _, ch := range page {
			channels = append(channels, models.ChannelInfo{
				ID:      ch.ID,
				Name:    ch.Name,
				Private: ch.IsPrivate,
			})
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return channels, nil
}

// IsPrivateChannel reports whether a channel is private.
func (b *Bot) IsPrivateChannel(ctx context.Context, channelID string) (bool, error) {
	info, err := b.client.GetConversationInfo(&slack.GetConversationInfoInput{
		ChannelID: channelID,
	})
	if err != nil {
		return false, fmt.Errorf("fetching info of %s: %w", channelID, err)
	}
	return info.IsPrivate, nil
}

// renderPromptBlocks converts a platform-neutral prompt into Block Kit
// blocks: optional header, a section (with the multi-select as accessory
// when present), and an actions row for buttons.
func renderPromptBlocks(p models.Prompt) []slack.Block {
	var blocks []slack.Block

	if p.Header != "" {
		blocks = append(blocks, slack.NewHeaderBlock(
			slack.NewTextBlockObject("plain_text", p.Header, false, false)))
	}

	if p.Text != "" {
		text := slack.NewTextBlockObject("mrkdwn", p.Text, false, false)
		var accessory *slack.Accessory
		if p.Select != nil {
			options := make([]*slack.OptionBlockObject, 0, len(p.Select.Options))
			for _, opt := range p.Select.Options {
				options = append(options, slack.NewOptionBlockObject(opt.Value,
					slack.NewTextBlockObject("plain_text", opt.Label, false, false), nil))
			}
			accessory = slack.NewAccessory(
				slack.NewOptionsMultiSelectBlockElement(
					slack.MultiOptTypeStatic,
					slack.NewTextBlockObject("plain_text", p.Select.Placeholder, false, false),
					p.Select.ActionID,
					options...))
		}
		blocks = append(blocks, slack.NewSectionBlock(text, nil, accessory))
	}

	if len(p.Buttons) > 0 {
		elements := make([]slack.BlockElement, 0, len(p.Buttons))
		for _, btn := range p.Buttons {
			el := slack.NewButtonBlockElement(btn.ActionID, btn.Value,
				slack.NewTextBlockObject("plain_text", btn.Label, false, false))
			if btn.Primary {
				el = el.WithStyle(slack.StylePrimary)
			}
			elements = append(elements, el)
		}
		blocks = append(blocks, slack.NewActionBlock("", elements...))
	}

	return blocks
}
