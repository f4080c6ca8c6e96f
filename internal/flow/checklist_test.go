package flow

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/OnboardPipe/internal/config"
	"github.com/BTreeMap/OnboardPipe/internal/models"
)

func TestBroadcastChecklist(t *testing.T) {
	te := newTestEngine(t)
	te.ws.members = []string{"U1", "U2", "BOTID"}
	ctx := context.Background()

	// U1 selected Alpha during onboarding, so they get Alpha's checklist.
	if err := te.engine.HandleEvent(ctx, models.Event{
		Type: models.EventTypeAction, UserID: "U1", ActionID: ActionSelectTeams, SelectedValues: []string{"Alpha"},
	}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := te.engine.HandleEvent(ctx, models.Event{
		Type: models.EventTypeAction, UserID: "UADMIN", ActionID: ActionSendChecklist, Value: "C1",
	}); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	u1 := te.mustState(t, "U1")
	if u1.CurrentState != string(models.StateChecklistInProgress) {
		t.Fatalf("U1 state = %s, want %s", u1.CurrentState, models.StateChecklistInProgress)
	}
	u1Items := decodeChecklist(u1.StateData[string(models.DataKeyChecklistItems)])
	if len(u1Items) != 2 || u1Items[0].Text != "Alpha step one" {
		t.Errorf("U1 should get Alpha's checklist, got %v", u1Items)
	}

	// U2 never selected a team and falls back to the default checklist.
	u2 := te.mustState(t, "U2")
	u2Items := decodeChecklist(u2.StateData[string(models.DataKeyChecklistItems)])
	if len(u2Items) != len(config.DefaultChecklist) {
		t.Errorf("U2 should get the default checklist, got %d items", len(u2Items))
	}

	// The non-user member ID is skipped.
	te.mustNoState(t, "BOTID")
}

func TestMarkChecklistDoneIdempotent(t *testing.T) {
	te := newTestEngine(t)
	te.ws.members = []string{"U1"}
	ctx := context.Background()

	if err := te.engine.HandleEvent(ctx, models.Event{
		Type: models.EventTypeAction, UserID: "UADMIN", ActionID: ActionSendChecklist, Value: "C1",
	}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	mark := func() {
		t.Helper()
		if err := te.engine.HandleEvent(ctx, models.Event{
			Type: models.EventTypeAction, UserID: "U1", ActionID: ActionChecklistDonePrefix + "2",
		}); err != nil {
			t.Fatalf("mark done failed: %v", err)
		}
	}

	mark()
	after := decodeChecklist(te.mustState(t, "U1").StateData[string(models.DataKeyChecklistItems)])
	firstPrompt := te.msgr.lastPrompt(t).prompt

	mark()
	again := decodeChecklist(te.mustState(t, "U1").StateData[string(models.DataKeyChecklistItems)])
	secondPrompt := te.msgr.lastPrompt(t).prompt

	if !reflect.DeepEqual(after, again) {
		t.Errorf("marking twice changed state: %v vs %v", after, again)
	}
	if !reflect.DeepEqual(firstPrompt, secondPrompt) {
		t.Error("marking twice must render the identical checklist")
	}
	if !after[2].Done {
		t.Error("item 2 should be done")
	}
	for i, item := range after {
		if i != 2 && item.Done {
			t.Errorf("item %d unexpectedly done", i)
		}
	}
}

func TestMarkChecklistDoneEdgeCases(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	// No active checklist: the click is ignored.
	if err := te.engine.HandleEvent(ctx, models.Event{
		Type: models.EventTypeAction, UserID: "U1", ActionID: ActionChecklistDonePrefix + "0",
	}); err != nil {
		t.Fatalf("click without checklist failed: %v", err)
	}
	if len(te.msgr.prompts) != 0 {
		t.Error("click without an active checklist should not render anything")
	}

	te.ws.members = []string{"U1"}
	if err := te.engine.HandleEvent(ctx, models.Event{
		Type: models.EventTypeAction, UserID: "UADMIN", ActionID: ActionSendChecklist, Value: "C1",
	}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	promptsBefore := len(te.msgr.prompts)

	// Out-of-range index: ignored.
	if err := te.engine.HandleEvent(ctx, models.Event{
		Type: models.EventTypeAction, UserID: "U1", ActionID: ActionChecklistDonePrefix + "99",
	}); err != nil {
		t.Fatalf("out-of-range click failed: %v", err)
	}
	if len(te.msgr.prompts) != promptsBefore {
		t.Error("out-of-range index should not re-render")
	}

	// Malformed index: surfaced as an error.
	err := te.engine.HandleEvent(ctx, models.Event{
		Type: models.EventTypeAction, UserID: "U1", ActionID: ActionChecklistDonePrefix + "abc",
	})
	if err == nil {
		t.Error("expected an error for a malformed checklist action ID")
	}
}

func TestRenderChecklist(t *testing.T) {
	items := []models.ChecklistItem{
		{Text: "first", Done: true},
		{Text: "second"},
	}
	prompt := renderChecklist("Alpha", items)

	if !strings.Contains(prompt.Header, "Alpha") {
		t.Errorf("header should carry the team name, got %q", prompt.Header)
	}
	if !strings.Contains(prompt.Text, ":white_check_mark: 1. first") {
		t.Errorf("done item not rendered as checked: %q", prompt.Text)
	}
	if !strings.Contains(prompt.Text, ":white_large_square: 2. second") {
		t.Errorf("open item not rendered as unchecked: %q", prompt.Text)
	}
	// Only the open item keeps a button.
	if len(prompt.Buttons) != 1 || prompt.Buttons[0].ActionID != ActionChecklistDonePrefix+"1" {
		t.Errorf("unexpected buttons %+v", prompt.Buttons)
	}
	if err := prompt.Validate(); err != nil {
		t.Errorf("rendered checklist should validate: %v", err)
	}
}

func TestBroadcastChecklistWaitsForMemberHandlers(t *testing.T) {
	te := newTestEngine(t)
	te.ws.members = []string{"U1"}
	ctx := context.Background()

	// Simulate an in-flight handler for U1 by holding their lock.
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		te.engine.withUserLock("U1", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	done := make(chan error, 1)
	go func() {
		done <- te.engine.HandleEvent(ctx, models.Event{
			Type: models.EventTypeAction, UserID: "UADMIN", ActionID: ActionSendChecklist, Value: "C1",
		})
	}()

	// While U1's handler is running, the broadcast must not write U1's state.
	select {
	case <-done:
		t.Fatal("broadcast completed while a member's handler was still running")
	case <-time.After(50 * time.Millisecond):
	}
	te.mustNoState(t, "U1")

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	state := te.mustState(t, "U1")
	if state.CurrentState != string(models.StateChecklistInProgress) {
		t.Errorf("U1 state = %s, want %s", state.CurrentState, models.StateChecklistInProgress)
	}
}
