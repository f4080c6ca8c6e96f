// Package models defines flow type definitions to avoid circular imports.
package models

// FlowType represents a specific type of conversational flow
type FlowType string

// StateType represents a specific state within a flow
type StateType string

// DataKey represents a key for storing state-specific data
type DataKey string

// Flow type constants.
const (
	FlowTypeOnboarding FlowType = "onboarding"
)

// State constants for the onboarding flow. The zero value (empty string)
// means the user has no active flow.
const (
	StateAwaitingInfoOrErrorChoice StateType = "AWAITING_INFO_OR_ERROR_CHOICE"
	StateAwaitingNewJoinerChoice   StateType = "AWAITING_NEW_JOINER_CHOICE"
	StateAwaitingTeamSelection     StateType = "AWAITING_TEAM_SELECTION"
	StateAwaitingSummarizeLink     StateType = "AWAITING_SUMMARIZE_LINK"
	StateAwaitingDoubtChoice       StateType = "AWAITING_DOUBT_CHOICE"
	StateAwaitingErrorReport       StateType = "AWAITING_ERROR_REPORT"
	StateChecklistInProgress       StateType = "CHECKLIST_IN_PROGRESS"
)

// Data key constants for the onboarding flow.
const (
	DataKeyCandidateLinks DataKey = "candidateLinks" // JSON array of link URLs offered for summarization
	DataKeySelectedTeams  DataKey = "selectedTeams"  // JSON array of team names the user selected
	DataKeyChecklistTeam  DataKey = "checklistTeam"  // Team whose checklist the user is working through
	DataKeyChecklistItems DataKey = "checklistItems" // JSON array of ChecklistItem
)
