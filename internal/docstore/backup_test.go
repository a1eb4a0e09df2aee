package docstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"salon/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	_, err := store.Create(ctx, "notes", note{Title: "keep"})
	require.NoError(t, err)

	storagePath := filepath.Join(t.TempDir(), "backups")
	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	logger := zerolog.Nop()
	s := NewBackupService(store, cfg, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(ctx)
		require.NoError(t, err)
		assert.FileExists(t, path)

		restored, err := Open(path, &logger)
		require.NoError(t, err)
		defer restored.Close()
		docs, err := restored.Query(ctx, "notes", NewQuery())
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "backup_old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

		foreign := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		s.CleanupOldBackups()

		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, foreign)
	})

	t.Run("Disabled", func(t *testing.T) {
		disabled := NewBackupService(store, config.BackupConfig{Enabled: false}, &logger)
		done := make(chan struct{})
		go func() {
			disabled.Start(ctx)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("disabled backup service should return immediately")
		}
	})
}
