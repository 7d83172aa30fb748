package resultlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSummary(t *testing.T, root, name string, s Summary) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, SummaryFile), data, 0644))
}

func TestListRunsNewestFirst(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	writeSummary(t, root, "old", Summary{RunID: "old", Start: base, Count: 3})
	writeSummary(t, root, "new", Summary{Start: base.Add(time.Hour), Count: 9})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "unfinished"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0644))

	runs, err := ListRuns(root)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].Summary.RunID, "run id falls back to the directory name")
	assert.Equal(t, int64(9), runs[0].Summary.Count)
	assert.Equal(t, filepath.Join(root, "old"), runs[1].Dir)
}

func TestListRunsMissingRoot(t *testing.T) {
	runs, err := ListRuns(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestListRunsBadSummary(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "broken")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SummaryFile), []byte("{"), 0644))

	_, err := ListRuns(root)
	assert.Error(t, err)
}
