package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionStart = time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

func TestOpenSessionLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "kilogs", "nested")

	path, f, err := OpenSessionLog(dir, "killindicator", sessionStart)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, filepath.Join(dir, "killindicator.20260212_213836.log"), path)
	assert.FileExists(t, path)
}

func TestOpenSessionLog_KeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "killindicator.20260212_213836.log")
	require.NoError(t, os.WriteFile(path, []byte("earlier run\n"), 0644))

	got, f, err := OpenSessionLog(dir, "killindicator", sessionStart)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, path, got)

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Equal(t, "earlier run\n", string(old))

	_, err = f.WriteString("this run\n")
	require.NoError(t, err)
	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "this run\n", string(cur))
}

func TestOpenSessionLog_DirIsFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "kilogs")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	path, f, err := OpenSessionLog(blocker, "killindicator", sessionStart)
	assert.Error(t, err)
	assert.Nil(t, f)
	assert.Equal(t, filepath.Join(blocker, "killindicator.20260212_213836.log"), path, "path is still reported")
}
