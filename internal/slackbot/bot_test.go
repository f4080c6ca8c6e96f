package slackbot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/BTreeMap/OnboardPipe/internal/config"
	"github.com/BTreeMap/OnboardPipe/internal/flow"
	"github.com/BTreeMap/OnboardPipe/internal/store"
)

// mockSlackAPI records API calls and returns canned responses.
type mockSlackAPI struct {
	posted       []postedMessage
	historyPages []*slack.GetConversationHistoryResponse
	historyCalls int
	replies      []slack.Message
	repliesFor   string
	members      []string
	channels     []slack.Channel
	channelInfo  map[string]*slack.Channel
}

type postedMessage struct {
	channelID string
	options   []slack.MsgOption
}

func (m *mockSlackAPI) AuthTest() (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{UserID: "UBOT"}, nil
}

func (m *mockSlackAPI) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	m.posted = append(m.posted, postedMessage{channelID: channelID, options: options})
	return channelID, "1234.5678", nil
}

func (m *mockSlackAPI) GetConversationInfo(input *slack.GetConversationInfoInput) (*slack.Channel, error) {
	if ch, ok := m.channelInfo[input.ChannelID]; ok {
		return ch, nil
	}
	return &slack.Channel{}, nil
}

func (m *mockSlackAPI) GetConversationHistory(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	if m.historyCalls >= len(m.historyPages) {
		return &slack.GetConversationHistoryResponse{}, nil
	}
	page := m.historyPages[m.historyCalls]
	m.historyCalls++
	return page, nil
}

func (m *mockSlackAPI) GetConversationReplies(params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	m.repliesFor = params.Timestamp
	return m.replies, false, "", nil
}

func (m *mockSlackAPI) GetConversations(params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	return m.channels, "", nil
}

func (m *mockSlackAPI) GetUsersInConversation(params *slack.GetUsersInConversationParameters) ([]string, string, error) {
	return m.members, "", nil
}

func (m *mockSlackAPI) InviteUsersToConversation(channelID string, users ...string) (*slack.Channel, error) {
	return &slack.Channel{}, nil
}

func (m *mockSlackAPI) OpenConversation(params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error) {
	ch := &slack.Channel{}
	ch.ID = "D" + strings.Join(params.Users, "")
	return ch, false, false, nil
}

func message(text, subType string) slack.Message {
	var m slack.Message
	m.Text = text
	m.SubType = subType
	return m
}

func writeConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		config.TeamsFile: `Alpha:
  links:
    - url: https://example.atlassian.net/wiki/spaces/ALPHA/pages/111/Home
      priority: 1
`,
		config.ChannelsFile:  "Alpha:\n  - C1\ncommon:\n  - C3\n",
		config.ErrorsFile:    "errors:\n  - pattern: timeout\n    resolution: R1\n",
		config.ResourcesFile: "resources:\n  kubernetes: https://example.com/k8s\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	return "SUMMARY", nil
}

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, link string) (string, error) {
	return "content", nil
}

// newWiredBot builds a bot over the mock client with a real engine attached,
// the way the process wires it at startup.
func newWiredBot(t *testing.T, api *mockSlackAPI) *Bot {
	t.Helper()
	cfg, err := config.Load(writeConfigDir(t))
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	bot := newBotForTest(api, "CSYNC")
	states := flow.NewStoreBasedStateManager(store.NewInMemoryStore())
	bot.SetEngine(flow.NewEngine(states, bot, bot, stubSummarizer{}, stubFetcher{}, cfg))
	return bot
}

func TestNewBotValidatesTokens(t *testing.T) {
	tests := []struct {
		name string
		cfg  BotConfig
	}{
		{name: "missing bot token", cfg: BotConfig{AppToken: "xapp-1"}},
		{name: "missing app token", cfg: BotConfig{BotToken: "xoxb-1"}},
		{name: "malformed app token", cfg: BotConfig{BotToken: "xoxb-1", AppToken: "wrong-prefix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBot(tt.cfg); err == nil {
				t.Error("expected a config validation error")
			}
		})
	}
}

func TestHandleEventsAPI_MessageStartsHelpFlow(t *testing.T) {
	api := &mockSlackAPI{}
	bot := newWiredBot(t, api)
	bot.botUserID = "UBOT"

	bot.handleEventsAPI(context.Background(), slackevents.EventsAPIEvent{
		InnerEvent: slackevents.EventsAPIInnerEvent{
			Data: &slackevents.MessageEvent{User: "U1", Channel: "D1", Text: "hi"},
		},
	})

	if len(api.posted) != 1 {
		t.Fatalf("expected 1 posted message, got %d", len(api.posted))
	}
	if api.posted[0].channelID != "DU1" {
		t.Errorf("help prompt went to %s, want DU1", api.posted[0].channelID)
	}
}

func TestHandleEventsAPI_IgnoresOwnAndBotMessages(t *testing.T) {
	api := &mockSlackAPI{}
	bot := newWiredBot(t, api)
	bot.botUserID = "UBOT"

	events := []*slackevents.MessageEvent{
		{User: "UBOT", Channel: "D1", Text: "self"},
		{User: "U1", BotID: "B42", Channel: "D1", Text: "bot"},
		{User: "U1", Channel: "D1", Text: "joined", SubType: "channel_join"},
	}
	for _, ev := range events {
		bot.handleEventsAPI(context.Background(), slackevents.EventsAPIEvent{
			InnerEvent: slackevents.EventsAPIInnerEvent{Data: ev},
		})
	}

	if len(api.posted) != 0 {
		t.Errorf("expected no replies, got %d", len(api.posted))
	}
}

func TestHandleInteraction_ActionDispatch(t *testing.T) {
	api := &mockSlackAPI{}
	bot := newWiredBot(t, api)

	callback := slack.InteractionCallback{
		User: slack.User{ID: "U1"},
		ActionCallback: slack.ActionCallbacks{
			BlockActions: []*slack.BlockAction{
				{ActionID: flow.ActionInfoTeam},
			},
		},
	}
	callback.Channel.ID = "D1"
	bot.handleInteraction(context.Background(), callback)

	// info_team sends the team multi-select to the user's DM.
	if len(api.posted) != 1 || api.posted[0].channelID != "DU1" {
		t.Fatalf("expected one DM prompt, got %+v", api.posted)
	}
}

func TestHandleInteraction_MessageShortcutSummarizesThread(t *testing.T) {
	tests := []struct {
		name     string
		threadTS string
		ts       string
		want     string
	}{
		{name: "threaded message targets its thread", threadTS: "100.000", ts: "111.222", want: "100.000"},
		{name: "unthreaded message targets itself", ts: "111.222", want: "111.222"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockSlackAPI{
				replies: []slack.Message{message("root", ""), message("reply", "")},
			}
			bot := newWiredBot(t, api)

			callback := slack.InteractionCallback{
				Type:       slack.InteractionTypeMessageAction,
				CallbackID: CallbackSummarizeThread,
				User:       slack.User{ID: "U1"},
			}
			callback.Channel.ID = "C1"
			callback.Message.ThreadTimestamp = tt.threadTS
			callback.Message.Timestamp = tt.ts
			bot.handleInteraction(context.Background(), callback)

			if api.repliesFor != tt.want {
				t.Errorf("summarized thread %q, want %q", api.repliesFor, tt.want)
			}
			if len(api.posted) != 1 || api.posted[0].channelID != "C1" {
				t.Fatalf("expected one in-channel reply, got %+v", api.posted)
			}
		})
	}
}

func TestHandleSlashCommand_SyncButtonWithoutTarget(t *testing.T) {
	api := &mockSlackAPI{}
	bot := newWiredBot(t, api)
	bot.syncChannelID = ""

	bot.handleSlashCommand(context.Background(), slack.SlashCommand{
		Command: CommandSendSyncButton, ChannelID: "C1", UserID: "U1",
	})
	if len(api.posted) != 1 || api.posted[0].channelID != "C1" {
		t.Fatalf("expected an in-channel reply, got %+v", api.posted)
	}
}

func TestHandleSlashCommand_SummarizeChannel(t *testing.T) {
	api := &mockSlackAPI{
		historyPages: []*slack.GetConversationHistoryResponse{
			{Messages: []slack.Message{message("newest", ""), message("oldest", "")}},
		},
	}
	bot := newWiredBot(t, api)

	bot.handleSlashCommand(context.Background(), slack.SlashCommand{
		Command: CommandSummarizeChannel, ChannelID: "C1", UserID: "U1",
	})
	if len(api.posted) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(api.posted))
	}
}

func TestChannelHistoryOrderingAndFiltering(t *testing.T) {
	api := &mockSlackAPI{
		historyPages: []*slack.GetConversationHistoryResponse{
			{
				Messages: []slack.Message{
					message("third", ""),
					message("ignored join", "channel_join"),
					message("second", ""),
				},
				ResponseMetaData: struct {
					NextCursor string `json:"next_cursor"`
				}{NextCursor: "page2"},
			},
			{
				Messages: []slack.Message{
					message("first", ""),
					message("", ""),
				},
			},
		},
	}
	bot := newBotForTest(api, "")

	got, err := bot.ChannelHistory(context.Background(), "C1", 100)
	if err != nil {
		t.Fatalf("ChannelHistory failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestThreadRepliesFiltering(t *testing.T) {
	api := &mockSlackAPI{
		replies: []slack.Message{
			message("root", ""),
			message("bot note", "bot_message"),
			message("reply", ""),
		},
	}
	bot := newBotForTest(api, "")

	got, err := bot.ThreadReplies(context.Background(), "C1", "111.222", 100)
	if err != nil {
		t.Fatalf("ThreadReplies failed: %v", err)
	}
	if len(got) != 2 || got[0] != "root" || got[1] != "reply" {
		t.Errorf("unexpected replies %v", got)
	}
}

func TestIsPrivateChannel(t *testing.T) {
	private := &slack.Channel{}
	private.IsPrivate = true
	api := &mockSlackAPI{channelInfo: map[string]*slack.Channel{"CPRIV": private}}
	bot := newBotForTest(api, "")

	got, err := bot.IsPrivateChannel(context.Background(), "CPRIV")
	if err != nil || !got {
		t.Errorf("IsPrivateChannel(CPRIV) = %v, %v; want true", got, err)
	}
	got, err = bot.IsPrivateChannel(context.Background(), "CPUB")
	if err != nil || got {
		t.Errorf("IsPrivateChannel(CPUB) = %v, %v; want false", got, err)
	}
}
