// Package notify sends optional Slack notifications for test-run
// lifecycle events, mirroring the notifySlackStart/notifySlackTerminal
// pattern the teacher uses for its own long-running jobs. Disabled
// (nil-safe) when no token is configured.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"
)

const postTimeout = 5 * time.Second

// Slack posts test-run start/terminal messages to one channel.
type Slack struct {
	api       *goslack.Client
	channelID string
}

// New returns nil if token or channelID is empty, so callers can treat
// a disabled notifier identically to a configured one (nil method
// calls on *Slack below are guarded).
func New(token, channelID string) *Slack {
	if token == "" || channelID == "" {
		return nil
	}
	return &Slack{api: goslack.New(token), channelID: channelID}
}

// NotifyTestStarted posts that a scenario run began.
func (s *Slack) NotifyTestStarted(ctx context.Context, runID, scenarioName string) {
	if s == nil {
		return
	}
	s.post(ctx, fmt.Sprintf(":arrow_forward: test run `%s` started (%s)", runID, scenarioName))
}

// NotifyTestTerminal posts the terminal status of a scenario run.
func (s *Slack) NotifyTestTerminal(ctx context.Context, runID, scenarioName, status string) {
	if s == nil {
		return
	}
	icon := ":white_check_mark:"
	if status != "passed" {
		icon = ":x:"
	}
	s.post(ctx, fmt.Sprintf("%s test run `%s` finished: %s (%s)", icon, runID, status, scenarioName))
}

func (s *Slack) post(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()
	if _, _, err := s.api.PostMessageContext(ctx, s.channelID, goslack.MsgOptionText(text, false)); err != nil {
		slog.Warn("failed to post slack notification", "error", err)
	}
}
