package draft

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQuiet = 20 * time.Millisecond

func newTestResolver(t *testing.T) (*Resolver, *Manager) {
	t.Helper()
	m, _ := newTestManager(t, 0)
	r := NewResolver("q", testQuiet, m, nil)
	t.Cleanup(r.Cancel)
	return r, m
}

func settle(t *testing.T, r *Resolver, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.CurrentKey() == want
	}, time.Second, 5*time.Millisecond)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "john-doe", slug("John Doe"))
	assert.Equal(t, "o-brien-co", slug("  O'Brien & Co. "))
	assert.Equal(t, "a1-b2", slug("A1_B2"))
	assert.Equal(t, "", slug("!!!"))
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "0700000000", digitsOnly("070-000 0000"))
	assert.Equal(t, "256700000000", digitsOnly("+256 700 000 000"))
}

func TestIdentityThreshold(t *testing.T) {
	assert.False(t, hasIdentity("Jo", "0700000000"))
	assert.False(t, hasIdentity("John", "070-00"))
	assert.True(t, hasIdentity("Jon", "07000000"))
	// phone length counts digits only
	assert.False(t, hasIdentity("John", "a-b-c-d-e-f-g-h"))
}

func TestMigrationMovesRecord(t *testing.T) {
	r, m := newTestResolver(t)

	require.NoError(t, m.Save("q", json.RawMessage(`{"step":1}`), "", "John Doe", "0700000000"))

	r.Observe("John Doe", "0700000000")
	settle(t, r, "q-john-doe-0700000000")
	assert.Equal(t, StateResolved, r.State())

	// zero records at the base key, exactly one at the identity key
	data, err := m.Load("q")
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = m.Load("q-john-doe-0700000000")
	require.NoError(t, err)
	assert.JSONEq(t, `{"step":1}`, string(data))
	require.Len(t, m.List(), 1)
}

func TestBelowThresholdStaysOnBaseKey(t *testing.T) {
	r, _ := newTestResolver(t)

	r.Observe("Jo", "07")
	time.Sleep(4 * testQuiet)

	assert.Equal(t, "q", r.CurrentKey())
	assert.Equal(t, StateResolving, r.State())
}

func TestObserveDebounces(t *testing.T) {
	r, m := newTestResolver(t)
	require.NoError(t, m.Save("q", json.RawMessage(`{}`), "", "", ""))

	// rapid keystrokes; only the final identity should win
	r.Observe("John D", "0700000000")
	r.Observe("John Do", "0700000000")
	r.Observe("John Doe", "0700000000")

	settle(t, r, "q-john-doe-0700000000")
}

func TestExistingTargetAdoptedWithoutCopy(t *testing.T) {
	r, m := newTestResolver(t)

	require.NoError(t, m.Save("q", json.RawMessage(`{"fresh":true}`), "", "John Doe", "0700000000"))
	require.NoError(t, m.Save("q-john-doe-0700000000", json.RawMessage(`{"old":true}`), "", "John Doe", "0700000000"))

	r.Observe("John Doe", "0700000000")
	settle(t, r, "q-john-doe-0700000000")

	// the existing draft for that identity took precedence: no overwrite,
	// and the in-progress base record was not copied over it
	data, err := m.Load("q-john-doe-0700000000")
	require.NoError(t, err)
	assert.JSONEq(t, `{"old":true}`, string(data))

	data, err = m.Load("q")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestResolvedKeyNeverMigratesAgain(t *testing.T) {
	r, m := newTestResolver(t)
	require.NoError(t, m.Save("q", json.RawMessage(`{}`), "", "", ""))

	r.Observe("John Doe", "0700000000")
	settle(t, r, "q-john-doe-0700000000")

	// editing the name afterwards must not move the key again
	r.Observe("Jane Roe", "0711111111")
	time.Sleep(4 * testQuiet)

	assert.Equal(t, "q-john-doe-0700000000", r.CurrentKey())
}

func TestAdoptSwitchesImmediately(t *testing.T) {
	r, _ := newTestResolver(t)

	var gotFrom, gotTo string
	r.OnSwitch(func(from, to string, adopted bool) {
		gotFrom, gotTo = from, to
		assert.True(t, adopted)
	})

	r.Adopt("q-jane-roe-0711111111")

	assert.Equal(t, "q-jane-roe-0711111111", r.CurrentKey())
	assert.Equal(t, StateResolved, r.State())
	assert.Equal(t, "q", gotFrom)
	assert.Equal(t, "q-jane-roe-0711111111", gotTo)
}

func TestCancelStopsPendingMigration(t *testing.T) {
	r, m := newTestResolver(t)
	require.NoError(t, m.Save("q", json.RawMessage(`{}`), "", "", ""))

	r.Observe("John Doe", "0700000000")
	r.Cancel()
	time.Sleep(4 * testQuiet)

	assert.Equal(t, "q", r.CurrentKey())
}
