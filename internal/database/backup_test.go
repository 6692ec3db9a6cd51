package database

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformBackupCopiesDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "habit.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("sqlite data"), 0o644))

	backupDir := filepath.Join(dir, "backups")
	logger := zerolog.New(io.Discard)
	svc := NewBackupService(dbPath, BackupConfig{
		Enabled:     true,
		StoragePath: backupDir,
	}, &logger)

	require.NoError(t, svc.PerformBackup())

	files, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(filepath.Join(backupDir, files[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "sqlite data", string(data))
}

func TestCleanupOldBackups(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))

	old := filepath.Join(backupDir, "backup_old.db")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o644))
	past := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(old, past, past))

	fresh := filepath.Join(backupDir, "backup_fresh.db")
	require.NoError(t, os.WriteFile(fresh, []byte("fresh"), 0o644))

	logger := zerolog.New(io.Discard)
	svc := NewBackupService(filepath.Join(dir, "habit.db"), BackupConfig{
		Enabled:       true,
		StoragePath:   backupDir,
		RetentionDays: 7,
	}, &logger)

	svc.CleanupOldBackups()

	files, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "backup_fresh.db", files[0].Name())
}
