package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords(prefix string, n int) []json.RawMessage {
	records := make([]json.RawMessage, n)
	for i := range records {
		records[i] = json.RawMessage(fmt.Sprintf(`{"id":"%s-%d"}`, prefix, i))
	}
	return records
}

func TestSQLiteReplaceAndFetch(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	records := testRecords("dev", 5)
	require.NoError(t, s.Replace(t.Context(), "devices", records))

	got, err := s.Fetch(t.Context(), "devices")
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, rec := range got {
		assert.JSONEq(t, string(records[i]), string(rec), "record %d out of order", i)
	}
}

func TestSQLiteReplaceSwapsFullSet(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	require.NoError(t, s.Replace(t.Context(), "devices", testRecords("old", 10)))
	require.NoError(t, s.Replace(t.Context(), "devices", testRecords("new", 3)))

	got, err := s.Fetch(t.Context(), "devices")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.JSONEq(t, `{"id":"new-0"}`, string(got[0]))

	n, err := s.Count(t.Context(), "devices")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSQLiteEntityTypesAreIsolated(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	require.NoError(t, s.Replace(t.Context(), "devices", testRecords("dev", 2)))
	require.NoError(t, s.Replace(t.Context(), "groups", testRecords("grp", 4)))

	require.NoError(t, s.Replace(t.Context(), "devices", nil))

	devCount, err := s.Count(t.Context(), "devices")
	require.NoError(t, err)
	assert.Equal(t, 0, devCount)

	grpCount, err := s.Count(t.Context(), "groups")
	require.NoError(t, err)
	assert.Equal(t, 4, grpCount)
}

func TestSQLitePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Replace(t.Context(), "applications", testRecords("app", 6)))

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)

	got, err := reopened.Fetch(t.Context(), "applications")
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.JSONEq(t, `{"id":"app-5"}`, string(got[5]))
}

func TestMemoryStoreMatchesContract(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.Replace(t.Context(), "devices", testRecords("dev", 3)))

	got, err := s.Fetch(t.Context(), "devices")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Mutating the fetched slice must not leak into the store.
	got[0] = json.RawMessage(`{"id":"mutated"}`)
	again, err := s.Fetch(t.Context(), "devices")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"dev-0"}`, string(again[0]))

	n, err := s.Count(t.Context(), "devices")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
