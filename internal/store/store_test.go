package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBoth(t *testing.T, quota int64) map[string]Store {
	t.Helper()

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "drafts.db"), quota)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return map[string]Store{
		"sqlite": s,
		"memory": NewMemory(quota),
	}
}

func TestSetGetDelete(t *testing.T) {
	for name, s := range openBoth(t, 0) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set("quotation-create", `{"step":1}`))

			v, ok, err := s.Get("quotation-create")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `{"step":1}`, v)

			require.NoError(t, s.Set("quotation-create", `{"step":2}`))
			v, _, _ = s.Get("quotation-create")
			assert.Equal(t, `{"step":2}`, v)

			require.NoError(t, s.Delete("quotation-create"))
			_, ok, err = s.Get("quotation-create")
			require.NoError(t, err)
			assert.False(t, ok)

			// deleting a missing key is a no-op
			require.NoError(t, s.Delete("quotation-create"))
		})
	}
}

func TestKeysPrefix(t *testing.T) {
	for name, s := range openBoth(t, 0) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set("receipt-create", "a"))
			require.NoError(t, s.Set("receipt-create-john-doe-0700000000", "b"))
			require.NoError(t, s.Set("quotation-create", "c"))

			keys, err := s.Keys("receipt-create")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{
				"receipt-create",
				"receipt-create-john-doe-0700000000",
			}, keys)

			all, err := s.Keys("")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestQuotaExceeded(t *testing.T) {
	for name, s := range openBoth(t, 64) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set("a", "0123456789"))

			err := s.Set("b", strings.Repeat("x", 60))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrQuotaExceeded))

			// failed write must not land
			_, ok, _ := s.Get("b")
			assert.False(t, ok)

			// overwriting an existing key counts the delta, not the sum
			require.NoError(t, s.Set("a", strings.Repeat("x", 63)))
		})
	}
}

func TestSQLiteReopenKeepsUsage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.db")

	s, err := OpenSQLite(path, 40)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", strings.Repeat("x", 30)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, 40)
	require.NoError(t, err)
	defer s.Close()

	// accounting survives reopen, so the quota still binds
	err = s.Set("k2", strings.Repeat("x", 30))
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
}

func TestLikePrefixEscaping(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "drafts.db"), 0)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("form_a", "1"))
	require.NoError(t, s.Set("formxa", "2"))

	keys, err := s.Keys("form_")
	require.NoError(t, err)
	assert.Equal(t, []string{"form_a"}, keys)
}
