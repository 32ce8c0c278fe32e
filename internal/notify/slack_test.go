package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReturnsNilWhenUnconfigured(t *testing.T) {
	assert.Nil(t, New("", ""))
	assert.Nil(t, New("token", ""))
	assert.Nil(t, New("", "channel"))
}

func TestNilSlackMethodsAreNoops(t *testing.T) {
	var s *Slack
	assert.NotPanics(t, func() {
		s.NotifyTestStarted(context.Background(), "run-1", "scenario")
		s.NotifyTestTerminal(context.Background(), "run-1", "scenario", "passed")
	})
}

func TestNewReturnsConfiguredNotifier(t *testing.T) {
	s := New("xoxb-token", "C0123")
	assert.NotNil(t, s)
}
