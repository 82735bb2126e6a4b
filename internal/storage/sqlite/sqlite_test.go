package sqlitestorage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/killindicator/extension/internal/model"
	gormstorage "github.com/killindicator/extension/internal/storage/gorm"
	"github.com/killindicator/extension/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deps() gormstorage.Dependencies {
	return gormstorage.Dependencies{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestBackend_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.sqlite")
	b := New(Config{Path: path}, deps())
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.SessionInfo{Role: core.RoleClient}))
	require.NoError(t, b.RecordIndicator(&core.IndicatorEvent{Entity: 2, Source: core.SourcePredicted}))
	require.NoError(t, b.EndSession())

	assert.Empty(t, b.DumpPath())

	var n int64
	require.NoError(t, b.DB().Model(&model.Indicator{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestBackend_MemoryDumpOnEndSession(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "feeds")
	b := New(Config{DumpDir: dir}, deps())
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.SessionInfo{Role: core.RoleAuthority}))
	require.NoError(t, b.RecordKill(&core.KillEvent{Entity: 5}))
	require.NoError(t, b.EndSession())

	require.NotEmpty(t, b.DumpPath())
	assert.Contains(t, filepath.Base(b.DumpPath()), "killfeed_authority_")
	info, err := os.Stat(b.DumpPath())
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
