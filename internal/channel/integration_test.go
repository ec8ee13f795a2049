// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package channel

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/diarykeeper/internal/api"
	"github.com/tomtom215/diarykeeper/internal/backup"
	"github.com/tomtom215/diarykeeper/internal/config"
	"github.com/tomtom215/diarykeeper/internal/database"
	"github.com/tomtom215/diarykeeper/internal/fault"
	"github.com/tomtom215/diarykeeper/internal/media"
	"github.com/tomtom215/diarykeeper/internal/slotserver"
)

// install is one device: its database, media store and backup components.
type install struct {
	db       *database.DB
	store    *media.Store
	resolver *media.Resolver
	cfg      backup.Config
}

func newInstall(t *testing.T) *install {
	t.Helper()
	base := t.TempDir()
	docs := filepath.Join(base, "Documents")

	db, err := database.Open(filepath.Join(docs, "SQLite", "diaryapp.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := media.NewStore(docs, ".jpg")
	require.NoError(t, store.InitializeDirectories())

	return &install{
		db:       db,
		store:    store,
		resolver: media.NewResolver(docs, filepath.Join(base, "Caches")),
		cfg:      backup.Config{WorkDir: filepath.Join(docs, "backup"), Workers: 2, CompressionLevel: 6},
	}
}

func (i *install) cloudChannel(cloud Cloud) *CloudChannel {
	return NewCloudChannel(cloud,
		backup.NewArchiver(i.db, i.resolver, i.cfg),
		backup.NewRestoreEngine(i.db, i.resolver, i.cfg),
		i.cfg.WorkDir)
}

// startSlotService runs slotd's router over a temp store and returns a
// client holding a token for account.
func startSlotService(t *testing.T, account string) (*SlotClient, *slotserver.Store) {
	t.Helper()
	store, err := slotserver.OpenStore(t.TempDir(), 1<<30)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := slotserver.NewTokenManager(config.SlotServerConfig{JWTSecret: "0123456789abcdef0123456789abcdef"})
	require.NoError(t, err)
	token, err := tokens.Issue(account)
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(store, tokens), api.RouterConfig{}))
	t.Cleanup(srv.Close)

	client, err := NewSlotClient(config.CloudConfig{URL: srv.URL, Token: token, Timeout: 10 * time.Second, MaxRetries: 1, RetryRate: 100})
	require.NoError(t, err)
	return client, store
}

func TestCloudBackupRestoreThroughSlotService(t *testing.T) {
	ctx := context.Background()
	client, slots := startSlotService(t, "family")

	phone := newInstall(t)
	ref, err := phone.store.StoreReader(ctx, strings.NewReader("first steps"), media.BucketImages, "")
	require.NoError(t, err)
	entryID, err := phone.db.InsertEntry(ctx, database.Entry{Content: "walked today"})
	require.NoError(t, err)
	_, err = phone.db.InsertPicture(ctx, database.Picture{DiaryEntryID: entryID, ImageURI: ref.String()})
	require.NoError(t, err)

	result, err := phone.cloudChannel(client).CloudBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Entries)
	assert.NoFileExists(t, result.ArchivePath)

	info, err := slots.Stat(ctx, "family", SlotName)
	require.NoError(t, err)
	assert.Equal(t, result.Size, info.Size)
	assert.Equal(t, result.Checksum, info.SHA256)

	tablet := newInstall(t)
	report, err := tablet.cloudChannel(client).CloudRestore(ctx)
	require.NoError(t, err)
	assert.True(t, report.RestartRequired)
	assert.Equal(t, 1, report.FilesRestored)
	assert.Empty(t, report.Failures)

	path, err := tablet.resolver.ResolveString(ref.String())
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first steps", string(data))

	entries, err := os.ReadDir(tablet.cfg.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "downloaded archive and staging must be cleaned up")
}

func TestCloudBackupServiceDownChangesNothing(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	client, err := NewSlotClient(config.CloudConfig{URL: url, Token: "t", Timeout: time.Second, RetryRate: 100})
	require.NoError(t, err)

	phone := newInstall(t)
	_, err = phone.cloudChannel(client).CloudBackup(context.Background())
	assert.ErrorIs(t, err, fault.ErrUnavailable)
	_, statErr := os.Stat(phone.cfg.WorkDir)
	assert.True(t, os.IsNotExist(statErr), "no archive work should have started")
}

func TestCloudRestoreEmptySlot(t *testing.T) {
	client, _ := startSlotService(t, "family")
	tablet := newInstall(t)

	_, err := tablet.cloudChannel(client).CloudRestore(context.Background())
	assert.ErrorIs(t, err, ErrSlotEmpty)

	entries, err := os.ReadDir(tablet.cfg.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
