package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/OnboardPipe/internal/config"
	"github.com/BTreeMap/OnboardPipe/internal/models"
)

// SendChecklistPrompt posts a confirmation button to the channel. Clicking
// it broadcasts the onboarding checklist to every member.
func (e *Engine) SendChecklistPrompt(ctx context.Context, channelID string) error {
	prompt := models.Prompt{
		Text: "*Send onboarding checklist to all members of this channel?*",
		Buttons: []models.Button{
			{Label: "Send Checklist", ActionID: ActionSendChecklist, Value: channelID, Primary: true},
		},
	}
	return e.msgr.SendPrompt(ctx, channelID, prompt)
}

// BroadcastChecklist DMs every member of the channel their onboarding
// checklist and puts each of them into the checklist state. Per-member
// failures are logged and skipped. Each member's state write runs under
// that member's lock so the broadcast cannot interleave with one of their
// own in-flight handlers. The caller must not already hold a user lock.
func (e *Engine) BroadcastChecklist(ctx context.Context, channelID string) error {
	members, err := e.ws.ChannelMembers(ctx, channelID)
	if err != nil {
		slog.Error("Engine failed to fetch channel members", "error", err, "channel", channelID)
		return e.msgr.SendMessage(ctx, channelID, fmt.Sprintf("Failed to fetch members: %v", err))
	}

	var sent int
	for _, userID := range members {
		if !strings.HasPrefix(userID, "U") {
			continue
		}
		err := e.withUserLock(userID, func() error { return e.sendChecklistTo(ctx, userID) })
		if err != nil {
			slog.Warn("Engine checklist delivery failed", "error", err, "user", userID)
			continue
		}
		sent++
	}
	slog.Info("Engine checklist broadcast complete", "channel", channelID, "members", len(members), "sent", sent)
	return nil
}

// sendChecklistTo builds the user's checklist from their selected team (or
// the default list), renders it, and enters the checklist state.
func (e *Engine) sendChecklistTo(ctx context.Context, userID string) error {
	team := e.checklistTeamFor(ctx, userID)

	texts := e.cfg.Checklist(team)
	if len(texts) > models.MaxChecklistItems {
		texts = texts[:models.MaxChecklistItems]
	}
	items := make([]models.ChecklistItem, len(texts))
	for i, text := range texts {
		items[i] = models.ChecklistItem{Text: text}
	}

	if err := e.dmPrompt(ctx, userID, renderChecklist(team, items)); err != nil {
		return err
	}
	data := map[models.DataKey]string{
		models.DataKeyChecklistTeam:  team,
		models.DataKeyChecklistItems: encodeChecklist(items),
	}
	return e.states.SetState(ctx, userID, models.StateChecklistInProgress, data)
}

// checklistTeamFor resolves which team's checklist a user should receive:
// the first team they selected during onboarding, or the default when they
// never selected one.
func (e *Engine) checklistTeamFor(ctx context.Context, userID string) string {
	state, err := e.states.GetState(ctx, userID)
	if err != nil || state == nil {
		return ""
	}
	teams := decodeStrings(state.StateData[string(models.DataKeySelectedTeams)])
	if len(teams) == 0 {
		return ""
	}
	return teams[0]
}

// markChecklistDone marks one checklist item done and re-sends the full
// rendered checklist. Marking an already-done item again is a no-op apart
// from the re-render.
func (e *Engine) markChecklistDone(ctx context.Context, userID string, idx int) error {
	state, err := e.states.GetState(ctx, userID)
	if err != nil {
		return err
	}
	if state == nil || state.CurrentState != string(models.StateChecklistInProgress) {
		slog.Debug("Engine checklist action without active checklist", "user", userID, "index", idx)
		return nil
	}

	items := decodeChecklist(state.StateData[string(models.DataKeyChecklistItems)])
	if idx < 0 || idx >= len(items) {
		slog.Debug("Engine checklist index out of range", "user", userID, "index", idx, "items", len(items))
		return nil
	}

	if !items[idx].Done {
		items[idx].Done = true
		if err := e.states.SetStateData(ctx, userID, models.DataKeyChecklistItems, encodeChecklist(items)); err != nil {
			return err
		}
		slog.Info("Engine checklist item completed", "user", userID, "index", idx)
	}

	team := state.StateData[string(models.DataKeyChecklistTeam)]
	return e.dmPrompt(ctx, userID, renderChecklist(team, items))
}

// renderChecklist produces the full checklist prompt: every item with its
// done marker, one mark-done button per remaining item. The whole list is
// re-rendered after each mutation rather than diffed.
func renderChecklist(team string, items []models.ChecklistItem) models.Prompt {
	title := team
	if title == "" {
		title = "Onboarding"
	}

	var lines []string
	var buttons []models.Button
	for i, item := range items {
		marker := ":white_large_square:"
		if item.Done {
			marker = ":white_check_mark:"
		}
		lines = append(lines, fmt.Sprintf("%s %d. %s", marker, i+1, item.Text))
		if !item.Done {
			buttons = append(buttons, models.Button{
				Label:    fmt.Sprintf("Done: %d", i+1),
				ActionID: fmt.Sprintf("%s%d", ActionChecklistDonePrefix, i),
				Value:    fmt.Sprintf("%d", i),
				Primary:  true,
			})
		}
	}

	return models.Prompt{
		Header: fmt.Sprintf("%s Onboarding Checklist", title),
		Text: "Welcome! Here is your onboarding checklist for the first week. Mark each as you complete it.\n\n" +
			strings.Join(lines, "\n"),
		Buttons: buttons,
	}
}

// encodeChecklist marshals checklist items for storage in StateData.
func encodeChecklist(items []models.ChecklistItem) string {
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeChecklist unmarshals stored checklist items, falling back to the
// default checklist when the payload is missing or malformed.
func decodeChecklist(raw string) []models.ChecklistItem {
	var items []models.ChecklistItem
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			return items
		}
		slog.Error("Engine failed to decode stored checklist", "payload_bytes", len(raw))
	}
	items = make([]models.ChecklistItem, len(config.DefaultChecklist))
	for i, text := range config.DefaultChecklist {
		items[i] = models.ChecklistItem{Text: text}
	}
	return items
}
