package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/BTreeMap/OnboardPipe/internal/docfetch"
	"github.com/BTreeMap/OnboardPipe/internal/models"
)

// Reply texts used across the onboarding dialogue.
const (
	msgGenericHelp   = "This channel is for getting info related to your *team* or resolving *errors* you are facing. What do you need help with?"
	msgWelcome       = "Welcome! Are you a *new joiner*?"
	msgTeamSelect    = "Which team(s) do you belong to?"
	msgDoubtChoice   = "Do you have a specific *doubt* or *error*?"
	msgDescribeError = "Please describe your error or paste the error message."
	msgGoodbye       = "Okay! Let me know if you need anything else."
	msgSummarizeDone = "Okay, let me know if you need anything else!"
	msgLinkReprompt  = "Please reply with one of the links I provided (or its base URL), or say 'done'."
	msgNoResolution  = "Sorry, I couldn't find a resolution for your error. Please contact support or provide more details."
)

// startHelpFlow sends the generic Team Info / Error Help prompt to an idle
// user and opens the choice state.
func (e *Engine) startHelpFlow(ctx context.Context, userID string) error {
	prompt := models.Prompt{
		Text: msgGenericHelp,
		Buttons: []models.Button{
			{Label: "Team Info", ActionID: ActionInfoTeam, Value: ActionInfoTeam},
			{Label: "Error Help", ActionID: ActionInfoError, Value: ActionInfoError},
		},
	}
	if err := e.dmPrompt(ctx, userID, prompt); err != nil {
		return err
	}
	return e.states.SetState(ctx, userID, models.StateAwaitingInfoOrErrorChoice, nil)
}

// promptNewJoiner sends the new-joiner welcome prompt. This is one of the
// two entry points that converge on the team-selection dialogue.
func (e *Engine) promptNewJoiner(ctx context.Context, userID string) error {
	prompt := models.Prompt{
		Text: fmt.Sprintf("Welcome, <@%s>! Are you a *new joiner*?", userID),
		Buttons: []models.Button{
			{Label: "Yes", ActionID: ActionNewJoinerYes, Value: ActionNewJoinerYes},
			{Label: "No", ActionID: ActionNewJoinerNo, Value: ActionNewJoinerNo},
		},
	}
	if err := e.dmPrompt(ctx, userID, prompt); err != nil {
		return err
	}
	return e.states.SetState(ctx, userID, models.StateAwaitingNewJoinerChoice, nil)
}

// promptTeamSelection sends the team multi-select menu.
func (e *Engine) promptTeamSelection(ctx context.Context, userID string) error {
	names := e.cfg.TeamNames()
	options := make([]models.SelectOption, 0, len(names))
	for _, name := range names {
		options = append(options, models.SelectOption{Label: name, Value: name})
	}
	prompt := models.Prompt{
		Text: msgTeamSelect,
		Select: &models.MultiSelect{
			Placeholder: "Select team(s)",
			ActionID:    ActionSelectTeams,
			Options:     options,
		},
	}
	if err := e.dmPrompt(ctx, userID, prompt); err != nil {
		return err
	}
	return e.states.SetState(ctx, userID, models.StateAwaitingTeamSelection, nil)
}

// promptDoubtChoice asks whether the user has a concrete doubt or error.
func (e *Engine) promptDoubtChoice(ctx context.Context, userID string) error {
	prompt := models.Prompt{
		Text: msgDoubtChoice,
		Buttons: []models.Button{
			{Label: "Yes", ActionID: ActionHasDoubtYes, Value: ActionHasDoubtYes},
			{Label: "No", ActionID: ActionHasDoubtNo, Value: ActionHasDoubtNo},
		},
	}
	if err := e.dmPrompt(ctx, userID, prompt); err != nil {
		return err
	}
	return e.states.SetState(ctx, userID, models.StateAwaitingDoubtChoice, nil)
}

// promptErrorReport asks the user to paste their error text.
func (e *Engine) promptErrorReport(ctx context.Context, userID string) error {
	if err := e.dmUser(ctx, userID, msgDescribeError); err != nil {
		return err
	}
	return e.states.SetState(ctx, userID, models.StateAwaitingErrorReport, nil)
}

// handleDoubtText interprets a free-text answer to the doubt prompt. A "yes"
// anywhere in the text opens the error-report state; anything else ends the
// flow.
func (e *Engine) handleDoubtText(ctx context.Context, ev models.Event) error {
	if strings.Contains(strings.ToLower(ev.Text), "yes") {
		return e.promptErrorReport(ctx, ev.UserID)
	}
	return e.endFlow(ctx, ev.UserID, msgGoodbye)
}

// handleErrorReport runs one error-pattern lookup against the report text.
// The flow ends after a single attempt whether or not a rule matched.
func (e *Engine) handleErrorReport(ctx context.Context, ev models.Event) error {
	resolution, ok := MatchError(e.cfg.Errors, strings.TrimSpace(ev.Text))
	reply := msgNoResolution
	if ok {
		reply = fmt.Sprintf("Here is a possible resolution for your error:\n*%s*", resolution)
	} else {
		slog.Debug("Engine error lookup found no match", "user", ev.UserID)
	}
	if err := e.msgr.SendMessage(ctx, ev.ChannelID, reply); err != nil {
		return err
	}
	return e.states.ResetState(ctx, ev.UserID)
}

// handleTeamSelection provisions channels for the selected teams, shares the
// teams' documentation links, and enters the summarize-link loop.
func (e *Engine) handleTeamSelection(ctx context.Context, ev models.Event) error {
	teams := ev.SelectedValues
	slog.Info("Engine team selection received", "user", ev.UserID, "teams", teams)

	invited := e.ProvisionChannels(ctx, ev.UserID, e.cfg.ChannelsFor(teams))
	if len(invited) > 0 {
		refs := make([]string, len(invited))
		for i, id := range invited {
			refs[i] = fmt.Sprintf("<#%s>", id)
		}
		if err := e.dmUser(ctx, ev.UserID, "You have been added to these channels: "+strings.Join(refs, ", ")); err != nil {
			return err
		}
	}

	links := e.cfg.TeamLinks(teams)
	text := fmt.Sprintf(
		"Here are the links for your selected team(s):\n%s\n\nIf you want a summary of any link, reply with the link. Otherwise, say 'done'.",
		formatLinksByPriority(links))
	if err := e.dmUser(ctx, ev.UserID, text); err != nil {
		return err
	}

	urls := make([]string, 0, len(links))
	for _, link := range links {
		urls = append(urls, link.URL)
	}
	data := map[models.DataKey]string{
		models.DataKeyCandidateLinks: encodeStrings(urls),
		models.DataKeySelectedTeams:  encodeStrings(teams),
	}
	return e.states.SetState(ctx, ev.UserID, models.StateAwaitingSummarizeLink, data)
}

// handleSummarizeLink processes one turn of the summarize-link loop. Only
// "done" exits the loop; a recognized link emits a summary and stays, an
// unrecognized one emits a re-prompt and stays.
func (e *Engine) handleSummarizeLink(ctx context.Context, ev models.Event, state *models.UserState) error {
	if strings.Contains(strings.ToLower(ev.Text), "done") {
		if err := e.msgr.SendMessage(ctx, ev.ChannelID, msgSummarizeDone); err != nil {
			return err
		}
		return e.states.ResetState(ctx, ev.UserID)
	}

	link := docfetch.CleanLink(ev.Text)
	candidates := decodeStrings(state.StateData[string(models.DataKeyCandidateLinks)])

	matched := false
	for _, candidate := range candidates {
		if docfetch.SameDocument(link, candidate) {
			matched = true
			break
		}
	}
	if !matched {
		slog.Debug("Engine link not matched against candidates", "user", ev.UserID, "link", link)
		return e.msgr.SendMessage(ctx, ev.ChannelID, msgLinkReprompt)
	}

	content, err := e.fetcher.Fetch(ctx, link)
	if err != nil {
		slog.Error("Engine document fetch failed", "error", err, "user", ev.UserID, "link", link)
		return e.msgr.SendMessage(ctx, ev.ChannelID, fmt.Sprintf("Error summarizing the link: %v", err))
	}
	summary, err := e.summ.Summarize(ctx, content)
	if err != nil {
		slog.Error("Engine summarization failed", "error", err, "user", ev.UserID, "link", link)
		return e.msgr.SendMessage(ctx, ev.ChannelID, fmt.Sprintf("Error summarizing the link: %v", err))
	}

	if err := e.msgr.SendMessage(ctx, ev.ChannelID, fmt.Sprintf("Here is the summary for <%s>:\n```%s```", link, summary)); err != nil {
		return err
	}
	return e.msgr.SendMessage(ctx, ev.ChannelID, "You can paste another link to summarize, or reply 'done' if finished.")
}

// formatLinksByPriority renders team links as a bulleted message with
// priority-1 links first. Priority drives display ordering only.
func formatLinksByPriority(links []models.TeamLink) string {
	sorted := make([]models.TeamLink, len(links))
	copy(sorted, links)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	var first, rest []string
	for _, link := range sorted {
		if link.Priority == 1 {
			first = append(first, "- "+link.URL)
		} else {
			rest = append(rest, "- "+link.URL)
		}
	}

	var b strings.Builder
	if len(first) > 0 {
		b.WriteString("*Go through these first:*\n")
		b.WriteString(strings.Join(first, "\n"))
		b.WriteString("\n")
	}
	if len(rest) > 0 {
		b.WriteString("*Then look at these:*\n")
		b.WriteString(strings.Join(rest, "\n"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// encodeStrings marshals a string slice for storage in StateData.
func encodeStrings(values []string) string {
	data, err := json.Marshal(values)
	if err != nil {
		// A string slice cannot fail to marshal; keep the signature simple.
		return "[]"
	}
	return string(data)
}

// decodeStrings unmarshals a StateData string slice, tolerating missing or
// malformed payloads.
func decodeStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		slog.Error("Engine failed to decode state data list", "error", err)
		return nil
	}
	return values
}
