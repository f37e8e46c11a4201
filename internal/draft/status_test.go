package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusStartsOffline(t *testing.T) {
	c := NewStatusController()
	assert.Equal(t, StatusOffline, c.Status())
	assert.Empty(t, c.Message())
}

func TestStatusHappyPath(t *testing.T) {
	c := NewStatusController()

	c.Resume()
	assert.Equal(t, StatusSyncing, c.Status())

	c.Succeed()
	assert.Equal(t, StatusSynced, c.Status())

	c.Begin()
	assert.Equal(t, StatusSyncing, c.Status())

	c.Fail("put failed: 502")
	assert.Equal(t, StatusError, c.Status())
	assert.Equal(t, "put failed: 502", c.Message())

	// manual retry clears the message on success
	c.Begin()
	c.Succeed()
	assert.Equal(t, StatusSynced, c.Status())
	assert.Empty(t, c.Message())
}

func TestOfflineSticksUntilResume(t *testing.T) {
	c := NewStatusController()
	c.Resume()
	c.Succeed()

	c.Offline()

	// a slow operation finishing after auth loss must not flip the state
	c.Succeed()
	assert.Equal(t, StatusOffline, c.Status())
	c.Fail("late failure")
	assert.Equal(t, StatusOffline, c.Status())
	assert.Empty(t, c.Message())

	c.Resume()
	assert.Equal(t, StatusSyncing, c.Status())
}

func TestResumeOnlyFromOffline(t *testing.T) {
	c := NewStatusController()
	c.Resume()
	c.Fail("boom")

	c.Resume()
	assert.Equal(t, StatusError, c.Status())
	assert.Equal(t, "boom", c.Message())
}

func TestOnChangeObserved(t *testing.T) {
	c := NewStatusController()

	var seen []Status
	c.OnChange(func(s Status, _ string) { seen = append(seen, s) })

	c.Resume()
	c.Fail("x")
	c.Begin()
	c.Succeed()

	assert.Equal(t, []Status{StatusSyncing, StatusError, StatusSyncing, StatusSynced}, seen)
}

func TestFailWithoutMessageGetsDefault(t *testing.T) {
	c := NewStatusController()
	c.Resume()
	c.Fail("")
	assert.Equal(t, "sync failed", c.Message())
}
