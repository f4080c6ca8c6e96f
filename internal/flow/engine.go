package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/BTreeMap/OnboardPipe/internal/config"
	"github.com/BTreeMap/OnboardPipe/internal/models"
)

// Action identifiers for the interactive elements the engine renders.
const (
	ActionInfoTeam            = "info_team"
	ActionInfoError           = "info_error"
	ActionNewJoinerYes        = "new_joiner_yes"
	ActionNewJoinerNo         = "new_joiner_no"
	ActionHasDoubtYes         = "has_doubt_yes"
	ActionHasDoubtNo          = "has_doubt_no"
	ActionSelectTeams         = "select_teams"
	ActionSyncChannels        = "sync_channels_button"
	ActionSendChecklist       = "send_canvas_checklist"
	ActionChecklistDonePrefix = "checklist_done_"
)

// Engine routes inbound platform events to the onboarding state machine and
// the supporting operations. Per-user handling is serialized so concurrent
// event delivery cannot interleave a read-modify-write of the same user's
// state.
type Engine struct {
	states  StateManager
	msgr    Messenger
	ws      Workspace
	summ    Summarizer
	fetcher DocumentFetcher
	cfg     *config.Config

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewEngine creates an event-dispatch engine with the given collaborators.
func NewEngine(states StateManager, msgr Messenger, ws Workspace, summ Summarizer, fetcher DocumentFetcher, cfg *config.Config) *Engine {
	slog.Debug("Creating flow Engine")
	return &Engine{
		states:    states,
		msgr:      msgr,
		ws:        ws,
		summ:      summ,
		fetcher:   fetcher,
		cfg:       cfg,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// HandleEvent dispatches one inbound event. User-scoped events take the
// user's lock for the duration of the handler; channel lifecycle events are
// serialized by the config layer instead.
func (e *Engine) HandleEvent(ctx context.Context, ev models.Event) error {
	slog.Debug("Engine HandleEvent", "type", ev.Type, "user", ev.UserID, "channel", ev.ChannelID)

	switch ev.Type {
	case models.EventTypeMessage:
		return e.withUserLock(ev.UserID, func() error { return e.handleMessage(ctx, ev) })
	case models.EventTypeAction:
		// The checklist broadcast takes each member's lock itself, so it is
		// dispatched outside the clicking user's lock.
		if ev.ActionID == ActionSendChecklist {
			return e.BroadcastChecklist(ctx, ev.Value)
		}
		return e.withUserLock(ev.UserID, func() error { return e.handleAction(ctx, ev) })
	case models.EventTypeMemberJoinedChannel:
		return e.withUserLock(ev.UserID, func() error { return e.handleMemberJoined(ctx, ev) })
	case models.EventTypeChannelCreated:
		return e.handleChannelCreated(ctx, ev)
	case models.EventTypeChannelDeleted:
		return e.handleChannelDeleted(ctx, ev)
	default:
		return fmt.Errorf("unsupported event type %s", ev.Type)
	}
}

func (e *Engine) withUserLock(userID string, fn func() error) error {
	e.mu.Lock()
	lock, ok := e.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.userLocks[userID] = lock
	}
	e.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// handleMessage routes a message or mention per the user's active state.
// An active flow state routes exclusively; only an idle user gets the
// generic help prompt.
func (e *Engine) handleMessage(ctx context.Context, ev models.Event) error {
	state, err := e.states.GetState(ctx, ev.UserID)
	if err != nil {
		return err
	}

	if state == nil {
		return e.startHelpFlow(ctx, ev.UserID)
	}

	switch models.StateType(state.CurrentState) {
	case models.StateAwaitingErrorReport:
		return e.handleErrorReport(ctx, ev)
	case models.StateAwaitingSummarizeLink:
		return e.handleSummarizeLink(ctx, ev, state)
	case models.StateAwaitingDoubtChoice:
		return e.handleDoubtText(ctx, ev)
	default:
		// States that wait on a button or menu selection ignore free text,
		// as does an in-progress checklist.
		slog.Debug("Engine message ignored in current state", "user", ev.UserID, "state", state.CurrentState)
		return nil
	}
}

// handleAction routes a button click or menu selection.
func (e *Engine) handleAction(ctx context.Context, ev models.Event) error {
	slog.Debug("Engine handleAction", "user", ev.UserID, "action", ev.ActionID)

	switch {
	case ev.ActionID == ActionInfoTeam || ev.ActionID == ActionNewJoinerYes:
		return e.promptTeamSelection(ctx, ev.UserID)
	case ev.ActionID == ActionInfoError || ev.ActionID == ActionNewJoinerNo:
		return e.promptDoubtChoice(ctx, ev.UserID)
	case ev.ActionID == ActionHasDoubtYes:
		return e.promptErrorReport(ctx, ev.UserID)
	case ev.ActionID == ActionHasDoubtNo:
		return e.endFlow(ctx, ev.UserID, msgGoodbye)
	case ev.ActionID == ActionSelectTeams:
		return e.handleTeamSelection(ctx, ev)
	case ev.ActionID == ActionSyncChannels:
		return e.handleSyncChannels(ctx, ev)
	case strings.HasPrefix(ev.ActionID, ActionChecklistDonePrefix):
		idx, err := strconv.Atoi(strings.TrimPrefix(ev.ActionID, ActionChecklistDonePrefix))
		if err != nil {
			return fmt.Errorf("malformed checklist action %q: %w", ev.ActionID, err)
		}
		return e.markChecklistDone(ctx, ev.UserID, idx)
	default:
		slog.Debug("Engine unknown action ignored", "action", ev.ActionID, "user", ev.UserID)
		return nil
	}
}

// handleMemberJoined greets users joining a private channel with the
// new-joiner prompt. Public channel joins are ignored.
func (e *Engine) handleMemberJoined(ctx context.Context, ev models.Event) error {
	private, err := e.ws.IsPrivateChannel(ctx, ev.ChannelID)
	if err != nil {
		slog.Error("Engine channel info lookup failed", "error", err, "channel", ev.ChannelID)
		return err
	}
	if !private {
		return nil
	}
	return e.promptNewJoiner(ctx, ev.UserID)
}

// handleChannelCreated records a new channel under every team whose name is
// a substring of the channel name and persists the updated map.
func (e *Engine) handleChannelCreated(ctx context.Context, ev models.Event) error {
	updated := e.cfg.AddChannel(ev.ChannelID, ev.ChannelName)
	if len(updated) == 0 {
		return nil
	}
	return e.cfg.SaveChannels()
}

// handleChannelDeleted removes the channel from every team set and persists
// the updated map.
func (e *Engine) handleChannelDeleted(ctx context.Context, ev models.Event) error {
	updated := e.cfg.RemoveChannel(ev.ChannelID)
	if len(updated) == 0 {
		return nil
	}
	return e.cfg.SaveChannels()
}

// dmUser opens a DM with the user and sends plain text to it.
func (e *Engine) dmUser(ctx context.Context, userID, text string) error {
	dm, err := e.msgr.OpenDM(ctx, userID)
	if err != nil {
		slog.Error("Engine failed to open DM", "error", err, "user", userID)
		return err
	}
	return e.msgr.SendMessage(ctx, dm, text)
}

// dmPrompt opens a DM with the user and sends an interactive prompt to it.
func (e *Engine) dmPrompt(ctx context.Context, userID string, p models.Prompt) error {
	if err := p.Validate(); err != nil {
		return err
	}
	dm, err := e.msgr.OpenDM(ctx, userID)
	if err != nil {
		slog.Error("Engine failed to open DM", "error", err, "user", userID)
		return err
	}
	return e.msgr.SendPrompt(ctx, dm, p)
}

// endFlow sends a terminal reply and deletes the user's state.
func (e *Engine) endFlow(ctx context.Context, userID, text string) error {
	if err := e.dmUser(ctx, userID, text); err != nil {
		return err
	}
	return e.states.ResetState(ctx, userID)
}
