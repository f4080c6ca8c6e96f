package flow

import (
	"context"
	"log/slog"
)

// ProvisionChannels invites the user to each channel and returns the IDs of
// the channels that succeeded. Per-channel failures are logged and skipped
// so a user who already belongs to some channels still joins the rest.
func (e *Engine) ProvisionChannels(ctx context.Context, userID string, channelIDs []string) []string {
	var invited []string
	for _, channelID := range channelIDs {
		if err := e.msgr.InviteToChannel(ctx, channelID, userID); err != nil {
			slog.Warn("Engine channel invite failed", "error", err, "user", userID, "channel", channelID)
			continue
		}
		invited = append(invited, channelID)
	}
	slog.Info("Engine channel provisioning complete", "user", userID,
		"attempted", len(channelIDs), "invited", len(invited))
	return invited
}
