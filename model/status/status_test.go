package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Predicates(t *testing.T) {
	testCases := []struct {
		status     Status
		running    bool
		paused     bool
		resumed    bool
		request    bool
		terminated bool
		final      bool
	}{
		{status: None},
		{status: Submitted},
		{status: Queued},
		{status: Running, running: true},
		{status: RequestPause, paused: true, request: true},
		{status: Paused, paused: true},
		{status: RequestResume, resumed: true, request: true},
		{status: Resumed, running: true, resumed: true},
		{status: RequestTerminate, request: true, terminated: true},
		{status: Terminated, terminated: true, final: true},
		{status: Complete, final: true},
		{status: Failed, final: true},
	}
	for _, tc := range testCases {
		t.Run(tc.status.String(), func(t *testing.T) {
			assert.True(t, tc.status.IsValid())
			assert.Equal(t, tc.running, tc.status.IsRunning())
			assert.Equal(t, tc.paused, tc.status.IsPaused())
			assert.Equal(t, tc.resumed, tc.status.IsResumed())
			assert.Equal(t, tc.request, tc.status.IsRequest())
			assert.Equal(t, tc.terminated, tc.status.IsTerminated())
			assert.Equal(t, tc.final, tc.status.IsFinal())
		})
	}
}

func TestStatus_CanTransitionTo(t *testing.T) {
	testCases := []struct {
		name     string
		from, to Status
		expect   bool
	}{
		{name: "submit", from: None, to: Submitted, expect: true},
		{name: "queue", from: Submitted, to: Queued, expect: true},
		{name: "run", from: Queued, to: Running, expect: true},
		{name: "pause", from: Running, to: RequestPause, expect: true},
		{name: "terminate from paused", from: Paused, to: RequestTerminate, expect: true},
		{name: "back to queued", from: Running, to: Queued, expect: false},
		{name: "out of complete", from: Complete, to: Running, expect: false},
		{name: "out of failed", from: Failed, to: Terminated, expect: false},
		{name: "unknown", from: Running, to: Status("BOGUS"), expect: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestParse(t *testing.T) {
	s, err := Parse("PAUSED")
	assert.NoError(t, err)
	assert.Equal(t, Paused, s)
	_, err = Parse("paused")
	assert.Error(t, err)
}
