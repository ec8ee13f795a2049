// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package slotserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, maxSize int64) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenStore(dir, maxSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func hexSHA(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestPutOpenRoundTrip(t *testing.T) {
	s, dir := openTestStore(t, 1<<20)
	ctx := context.Background()

	info, err := s.Put(ctx, "ada", "diary_app_backup.zip", strings.NewReader("first"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, hexSHA("first"), info.SHA256)

	info, err = s.Put(ctx, "ada", "diary_app_backup.zip", strings.NewReader("second upload"))
	require.NoError(t, err)
	assert.Equal(t, hexSHA("second upload"), info.SHA256)

	f, got, err := s.Open(ctx, "ada", "diary_app_backup.zip")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "second upload", string(data))
	assert.Equal(t, info.SHA256, got.SHA256)

	entries, err := os.ReadDir(filepath.Join(dir, "ada"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")
}

func TestPutTooLarge(t *testing.T) {
	s, dir := openTestStore(t, 4)
	ctx := context.Background()

	_, err := s.Put(ctx, "ada", "slot", strings.NewReader("12345"))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = s.Stat(ctx, "ada", "slot")
	assert.ErrorIs(t, err, ErrSlotNotFound)
	entries, err := os.ReadDir(filepath.Join(dir, "ada"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.Put(ctx, "ada", "slot", strings.NewReader("1234"))
	assert.NoError(t, err, "exactly the limit is accepted")
}

func TestInvalidNames(t *testing.T) {
	s, _ := openTestStore(t, 1<<20)
	ctx := context.Background()

	for _, tc := range [][2]string{{"ada", "../x"}, {"..", "slot"}, {"ada", ".hidden"}, {"a/b", "slot"}, {"ada", ""}} {
		_, err := s.Put(ctx, tc[0], tc[1], strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidName, "%q/%q", tc[0], tc[1])
	}
	_, err := s.List(ctx, "../")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestOpenMissing(t *testing.T) {
	s, _ := openTestStore(t, 1<<20)
	_, _, err := s.Open(context.Background(), "ada", "nothing")
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestListIsPerAccount(t *testing.T) {
	s, _ := openTestStore(t, 1<<20)
	ctx := context.Background()

	for _, put := range []struct{ account, name, data string }{
		{"ada", "b.zip", "bb"},
		{"ada", "a.zip", "a"},
		{"adam", "c.zip", "ccc"},
	} {
		_, err := s.Put(ctx, put.account, put.name, strings.NewReader(put.data))
		require.NoError(t, err)
	}

	slots, err := s.List(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "a.zip", slots[0].Name)
	assert.Equal(t, "b.zip", slots[1].Name)

	empty, err := s.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	total, err := s.StoredBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
}

func TestConcurrentPutsLeaveConsistentSlot(t *testing.T) {
	s, _ := openTestStore(t, 1<<20)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Put(ctx, "ada", "slot", strings.NewReader(strings.Repeat("x", i+1)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	f, info, err := s.Open(ctx, "ada", "slot")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, info.Size, int64(len(data)))
	assert.Equal(t, info.SHA256, hexSHA(string(data)))
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore(dir, 1<<20)
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "ada", "slot", strings.NewReader("kept"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenStore(dir, 1<<20)
	require.NoError(t, err)
	defer s.Close()
	info, err := s.Stat(context.Background(), "ada", "slot")
	require.NoError(t, err)
	assert.Equal(t, hexSHA("kept"), info.SHA256)
}
