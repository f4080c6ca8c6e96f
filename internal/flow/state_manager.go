package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/OnboardPipe/internal/models"
	"github.com/BTreeMap/OnboardPipe/internal/store"
)

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store    store.Store
	flowType models.FlowType
}

// NewStoreBasedStateManager creates a StateManager for the onboarding flow
// backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st, flowType: models.FlowTypeOnboarding}
}

// GetState retrieves the current state for a user, or nil when absent.
func (sm *StoreBasedStateManager) GetState(ctx context.Context, userID string) (*models.UserState, error) {
	slog.Debug("StateManager GetState", "userID", userID, "flowType", sm.flowType)

	state, err := sm.store.GetUserState(userID, string(sm.flowType))
	if err != nil {
		slog.Error("StateManager GetState error", "error", err, "userID", userID)
		return nil, err
	}
	if state == nil {
		slog.Debug("StateManager GetState not found", "userID", userID)
		return nil, nil
	}
	slog.Debug("StateManager GetState found", "userID", userID, "state", state.CurrentState)
	return state, nil
}

// SetState replaces the user's state and state data. Entering a new phase
// discards whatever the prior phase stored.
func (sm *StoreBasedStateManager) SetState(ctx context.Context, userID string, state models.StateType, data map[models.DataKey]string) error {
	slog.Debug("StateManager SetState", "userID", userID, "state", state)

	existing, err := sm.store.GetUserState(userID, string(sm.flowType))
	if err != nil {
		slog.Error("StateManager SetState get error", "error", err, "userID", userID)
		return err
	}

	now := time.Now()
	created := now
	if existing != nil {
		created = existing.CreatedAt
	}

	stateData := make(map[string]string, len(data))
	for k, v := range data {
		stateData[string(k)] = v
	}

	err = sm.store.SaveUserState(models.UserState{
		UserID:       userID,
		FlowType:     string(sm.flowType),
		CurrentState: string(state),
		StateData:    stateData,
		CreatedAt:    created,
		UpdatedAt:    now,
	})
	if err != nil {
		slog.Error("StateManager SetState save error", "error", err, "userID", userID, "state", state)
		return err
	}
	slog.Debug("StateManager SetState succeeded", "userID", userID, "state", state)
	return nil
}

// SetStateData updates one data key without changing the current state.
func (sm *StoreBasedStateManager) SetStateData(ctx context.Context, userID string, key models.DataKey, value string) error {
	slog.Debug("StateManager SetStateData", "userID", userID, "key", key)

	existing, err := sm.store.GetUserState(userID, string(sm.flowType))
	if err != nil {
		slog.Error("StateManager SetStateData get error", "error", err, "userID", userID, "key", key)
		return err
	}

	now := time.Now()
	if existing == nil {
		existing = &models.UserState{
			UserID:    userID,
			FlowType:  string(sm.flowType),
			StateData: make(map[string]string),
			CreatedAt: now,
		}
	}
	if existing.StateData == nil {
		existing.StateData = make(map[string]string)
	}
	existing.StateData[string(key)] = value
	existing.UpdatedAt = now

	if err := sm.store.SaveUserState(*existing); err != nil {
		slog.Error("StateManager SetStateData save error", "error", err, "userID", userID, "key", key)
		return err
	}
	slog.Debug("StateManager SetStateData succeeded", "userID", userID, "key", key)
	return nil
}

// ResetState removes the user's state, ending the active flow.
func (sm *StoreBasedStateManager) ResetState(ctx context.Context, userID string) error {
	slog.Debug("StateManager ResetState", "userID", userID)

	if err := sm.store.DeleteUserState(userID, string(sm.flowType)); err != nil {
		slog.Error("StateManager ResetState error", "error", err, "userID", userID)
		return err
	}
	slog.Info("StateManager ResetState succeeded", "userID", userID)
	return nil
}
