// Package slackbot implements the Slack transport for OnboardPipe.
// It uses the slack-go/slack library with Socket Mode for WebSocket-based
// communication and translates Slack events into the engine's event model.
package slackbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/BTreeMap/OnboardPipe/internal/flow"
	"github.com/BTreeMap/OnboardPipe/internal/models"
)

// Slash commands handled by the bot.
const (
	CommandSummarizeChannel = "/summarize_channel"
	CommandSendSyncButton   = "/send_sync_button"
	CommandSendChecklist    = "/send_onboarding_checklist"
)

// CallbackSummarizeThread is the message-shortcut callback that summarizes
// the thread of the message it was invoked on.
const CallbackSummarizeThread = "summarize_thread_action"

// Bot connects the flow engine to Slack. It implements flow.Messenger and
// flow.Workspace over the SlackAPI client subset.
type Bot struct {
	client        SlackAPI
	socketMode    *socketmode.Client
	engine        *flow.Engine
	syncChannelID string
	debug         bool

	// Bot identity for filtering out our own messages.
	botUserID string
}

// BotConfig holds configuration for the Slack bot.
type BotConfig struct {
	BotToken      string // xoxb-... Slack bot token
	AppToken      string // xapp-... Slack app-level token (for Socket Mode)
	SyncChannelID string // Target for the /send_sync_button command
	Debug         bool
}

// NewBot creates a Slack bot. The engine is attached afterwards with
// SetEngine because the engine needs the bot as its Messenger and Workspace.
func NewBot(cfg BotConfig) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("app token is required for Socket Mode")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("app token must start with xapp-")
	}

	client := slack.New(
		cfg.BotToken,
		slack.OptionDebug(cfg.Debug),
		slack.OptionAppLevelToken(cfg.AppToken),
	)
	socketClient := socketmode.New(
		client,
		socketmode.OptionDebug(cfg.Debug),
	)

	return &Bot{
		client:        client,
		socketMode:    socketClient,
		syncChannelID: cfg.SyncChannelID,
		debug:         cfg.Debug,
	}, nil
}

// newBotForTest creates a Bot with an injectable mock client. No Slack
// connection or token validation is performed.
func newBotForTest(client SlackAPI, syncChannelID string) *Bot {
	return &Bot{client: client, syncChannelID: syncChannelID}
}

// SetEngine attaches the flow engine that events are dispatched into.
func (b *Bot) SetEngine(engine *flow.Engine) {
	b.engine = engine
}

// Run starts the bot event loop. Blocks until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	if b.engine == nil {
		return fmt.Errorf("no engine attached")
	}

	authResp, err := b.client.AuthTest()
	if err != nil {
		slog.Warn("slackbot: failed to get bot user ID", "error", err)
	} else {
		b.botUserID = authResp.UserID
		slog.Info("slackbot: authenticated", "bot_user_id", b.botUserID)
	}

	go func() {
		for evt := range b.socketMode.Events {
			b.handleEvent(ctx, evt)
		}
	}()

	return b.socketMode.RunContext(ctx)
}

// handleEvent dispatches one Socket Mode envelope.
func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.Info("slackbot: connecting to Socket Mode")

	case socketmode.EventTypeConnected:
		slog.Info("slackbot: connected to Socket Mode")

	case socketmode.EventTypeConnectionError:
		slog.Error("slackbot: connection error", "data", evt.Data)

	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.socketMode.Ack(*evt.Request)
		b.handleEventsAPI(ctx, eventsAPIEvent)

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		b.socketMode.Ack(*evt.Request)
		b.handleSlashCommand(ctx, cmd)

	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		b.socketMode.Ack(*evt.Request)
		b.handleInteraction(ctx, callback)
	}
}

// handleEventsAPI translates an Events API payload into an engine event.
func (b *Bot) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	switch inner := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Skip our own messages, bot messages, and system subtypes.
		if inner.User == "" || inner.User == b.botUserID || inner.BotID != "" || inner.SubType != "" {
			return
		}
		b.dispatch(ctx, models.Event{
			Type:      models.EventTypeMessage,
			UserID:    inner.User,
			ChannelID: inner.Channel,
			Text:      inner.Text,
		})

	case *slackevents.AppMentionEvent:
		if inner.User == "" || inner.User == b.botUserID {
			return
		}
		b.dispatch(ctx, models.Event{
			Type:      models.EventTypeMessage,
			UserID:    inner.User,
			ChannelID: inner.Channel,
			Text:      inner.Text,
		})

	case *slackevents.MemberJoinedChannelEvent:
		if inner.User == b.botUserID {
			return
		}
		b.dispatch(ctx, models.Event{
			Type:      models.EventTypeMemberJoinedChannel,
			UserID:    inner.User,
			ChannelID: inner.Channel,
		})

	case *slackevents.ChannelCreatedEvent:
		b.dispatch(ctx, models.Event{
			Type:        models.EventTypeChannelCreated,
			ChannelID:   inner.Channel.ID,
			ChannelName: inner.Channel.Name,
		})

	case *slackevents.ChannelDeletedEvent:
		b.dispatch(ctx, models.Event{
			Type:      models.EventTypeChannelDeleted,
			ChannelID: inner.Channel,
		})

	default:
		slog.Debug("slackbot: unhandled Events API event", "type", event.InnerEvent.Type)
	}
}

// handleSlashCommand routes the bot's slash commands.
func (b *Bot) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	slog.Debug("slackbot: slash command received", "command", cmd.Command, "user", cmd.UserID, "channel", cmd.ChannelID)

	switch cmd.Command {
	case CommandSummarizeChannel:
		b.handleSummarizeCommand(ctx, cmd)

	case CommandSendSyncButton:
		if b.syncChannelID == "" {
			b.reply(ctx, cmd.ChannelID, "Please set the SYNC_CHANNEL_ID environment variable.")
			return
		}
		if err := b.engine.SendSyncButton(ctx, b.syncChannelID); err != nil {
			slog.Error("slackbot: failed to send sync button", "error", err)
			b.reply(ctx, cmd.ChannelID, fmt.Sprintf("Failed to send sync button: %v", err))
			return
		}
		target := "channel"
		if strings.HasPrefix(b.syncChannelID, "U") {
			target = "user"
		}
		b.reply(ctx, cmd.ChannelID, fmt.Sprintf("Sync button sent to %s %s.", target, b.syncChannelID))

	case CommandSendChecklist:
		if err := b.engine.SendChecklistPrompt(ctx, cmd.ChannelID); err != nil {
			slog.Error("slackbot: failed to send checklist prompt", "error", err)
			b.reply(ctx, cmd.ChannelID, fmt.Sprintf("Failed to send checklist prompt: %v", err))
			return
		}
		b.reply(ctx, cmd.ChannelID, "Checklist trigger button sent to channel.")

	default:
		b.reply(ctx, cmd.ChannelID, fmt.Sprintf("Unknown command: %s", cmd.Command))
	}
}

// handleSummarizeCommand summarizes a thread when a timestamp argument is
// given, otherwise the channel's history.
func (b *Bot) handleSummarizeCommand(ctx context.Context, cmd slack.SlashCommand) {
	var reply string
	var err error
	if arg := strings.TrimSpace(cmd.Text); arg != "" {
		threadTS := strings.Fields(arg)[0]
		reply, err = b.engine.SummarizeThread(ctx, cmd.ChannelID, threadTS)
	} else {
		reply, err = b.engine.SummarizeChannel(ctx, cmd.ChannelID)
	}
	if err != nil {
		slog.Error("slackbot: summarization failed", "error", err, "channel", cmd.ChannelID)
		reply = fmt.Sprintf("Error summarizing: %v", err)
	}
	b.reply(ctx, cmd.ChannelID, reply)
}

// handleInteraction translates message shortcuts and block actions into
// engine calls and events.
func (b *Bot) handleInteraction(ctx context.Context, callback slack.InteractionCallback) {
	if callback.Type == slack.InteractionTypeMessageAction {
		b.handleMessageShortcut(ctx, callback)
		return
	}

	for _, action := range callback.ActionCallback.BlockActions {
		ev := models.Event{
			Type:      models.EventTypeAction,
			UserID:    callback.User.ID,
			ChannelID: callback.Channel.ID,
			ActionID:  action.ActionID,
			Value:     action.Value,
		}
		for _, opt := range action.SelectedOptions {
			ev.SelectedValues = append(ev.SelectedValues, opt.Value)
		}
		b.dispatch(ctx, ev)
	}
}

// handleMessageShortcut routes a message shortcut. The summarize shortcut
// targets the thread of the message it was invoked on; a message outside a
// thread uses its own timestamp, which covers its replies.
func (b *Bot) handleMessageShortcut(ctx context.Context, callback slack.InteractionCallback) {
	slog.Debug("slackbot: message shortcut received", "callback_id", callback.CallbackID, "user", callback.User.ID)

	switch callback.CallbackID {
	case CallbackSummarizeThread:
		threadTS := callback.Message.ThreadTimestamp
		if threadTS == "" {
			threadTS = callback.Message.Timestamp
		}
		reply, err := b.engine.SummarizeThread(ctx, callback.Channel.ID, threadTS)
		if err != nil {
			slog.Error("slackbot: thread summarization failed", "error", err, "channel", callback.Channel.ID, "thread", threadTS)
			reply = fmt.Sprintf("Error summarizing: %v", err)
		}
		b.reply(ctx, callback.Channel.ID, reply)

	default:
		slog.Debug("slackbot: unhandled message shortcut", "callback_id", callback.CallbackID)
	}
}

// dispatch forwards one event to the engine, logging failures. Handler
// errors never crash the event loop.
func (b *Bot) dispatch(ctx context.Context, ev models.Event) {
	if err := b.engine.HandleEvent(ctx, ev); err != nil {
		slog.Error("slackbot: event handling failed", "error", err, "type", ev.Type, "user", ev.UserID)
	}
}

// reply posts plain text, logging delivery failures.
func (b *Bot) reply(ctx context.Context, channelID, text string) {
	if err := b.SendMessage(ctx, channelID, text); err != nil {
		slog.Error("slackbot: failed to post reply", "error", err, "channel", channelID)
	}
}
