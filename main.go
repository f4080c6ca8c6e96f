package main

import (
	"log"
	"os"

	"github.com/slack-go/slack"
)

func main() {
	// Create a Slack client from the environment (no Socket Mode, just for demonstration)
	client := slack.New(
		os.Getenv("SLACK_BOT_TOKEN"),
		slack.OptionAppLevelToken(os.Getenv("SLACK_APP_TOKEN")),
	)

	// Verify the credentials (this will not start the event loop, just a minimal example)
	resp, err := client.AuthTest()
	if err != nil {
		log.Fatalf("Failed to authenticate with Slack: %v", err)
	}

	// In production, use cmd/OnboardPipe, which wires the full bot
	log.Printf("Authenticated as %s (%s)", resp.User, resp.UserID)
}
