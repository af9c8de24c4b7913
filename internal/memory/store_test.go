package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "memory.json"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Technology", "Life", "Work", "Study"}, s.Preferences().CategoryHierarchy)
	assert.Empty(t, s.Preferences().PreferredLevel3)
	assert.Equal(t, 0, s.Session().TotalProcessed)
	assert.Equal(t, "", s.Session().LastProcessed)
}

func TestLoadMalformedFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestUpdateSessionPersistsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	s, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, s.UpdateSession("a.txt"))
	require.NoError(t, s.UpdateSession("b.txt"))

	// A fresh load must see the durable state, not just the in-memory copy.
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", reloaded.Session().LastProcessed)
	assert.Equal(t, 2, reloaded.Session().TotalProcessed)
}

func TestUpdatePreferencesPersistsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	s, err := Load(path)
	require.NoError(t, err)

	prefs := s.Preferences()
	prefs.CategoryHierarchy = append(prefs.CategoryHierarchy, "Research")
	prefs.PreferredLevel3["Programming Languages"] = []string{"Python"}
	require.NoError(t, s.UpdatePreferences(prefs))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, reloaded.Preferences().CategoryHierarchy, "Research")
	assert.Equal(t, []string{"Python"}, reloaded.Preferences().PreferredLevel3["Programming Languages"])
}

func TestPreferredLevel3GrowsMonotonically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	s, err := Load(path)
	require.NoError(t, err)

	prefs := s.Preferences()
	prefs.PreferredLevel3["Programming Languages"] = []string{"Python"}
	require.NoError(t, s.UpdatePreferences(prefs))

	// Simulate a later run extending the same level2 bucket.
	s2, err := Load(path)
	require.NoError(t, err)
	prefs2 := s2.Preferences()
	prefs2.PreferredLevel3["Programming Languages"] = append(prefs2.PreferredLevel3["Programming Languages"], "Go")
	require.NoError(t, s2.UpdatePreferences(prefs2))

	final, err := Load(path)
	require.NoError(t, err)
	got := final.Preferences().PreferredLevel3["Programming Languages"]
	assert.Subset(t, got, []string{"Python"})
	assert.Equal(t, []string{"Python", "Go"}, got)
}
