// DiaryKeeper - Local-first Journal Media Storage and Backup
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/diarykeeper

package slotserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/diarykeeper/internal/logging"
	"github.com/tomtom215/diarykeeper/internal/models"
	"github.com/tomtom215/diarykeeper/internal/validation"
)

// Key prefix for slot metadata in BadgerDB
const slotKeyPrefix = "slot:"

const indexDir = ".index"

var (
	// ErrSlotNotFound means nothing was ever stored in the slot.
	ErrSlotNotFound = errors.New("slot not found")

	// ErrInvalidName rejects account or slot names that are not a single
	// safe file name.
	ErrInvalidName = errors.New("invalid account or slot name")

	// ErrTooLarge means the upload exceeded the configured size limit.
	ErrTooLarge = errors.New("slot exceeds size limit")
)

// Store keeps slot bytes on disk and their metadata in BadgerDB.
type Store struct {
	dir     string
	db      *badger.DB
	maxSize int64

	// mu orders the rename+index step of writers against readers opening
	// a slot.
	mu sync.RWMutex
}

// OpenStore opens (or creates) a store rooted at dataDir.
func OpenStore(dataDir string, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create slot data dir: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dataDir, indexDir))
	opts.Logger = nil // Suppress BadgerDB internal logs
	// Slot metadata is tiny
	opts.ValueLogFileSize = 16 << 20
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for slot index: %w", err)
	}

	return &Store{dir: dataDir, db: db, maxSize: maxSize}, nil
}

// Close closes the metadata index.
func (s *Store) Close() error {
	return s.db.Close()
}

// MaxSize returns the upload size limit in bytes.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

func slotKey(account, name string) []byte {
	return []byte(slotKeyPrefix + account + ":" + name)
}

func checkNames(account, name string) error {
	if !validation.ValidSlotName(account) || !validation.ValidSlotName(name) {
		return fmt.Errorf("%w: %q/%q", ErrInvalidName, account, name)
	}
	return nil
}

func (s *Store) slotPath(account, name string) string {
	return filepath.Join(s.dir, account, name)
}

// Put replaces the slot with the bytes read from r.
func (s *Store) Put(ctx context.Context, account, name string, r io.Reader) (*models.SlotInfo, error) {
	if err := checkNames(account, name); err != nil {
		return nil, err
	}
	accountDir := filepath.Join(s.dir, account)
	if err := os.MkdirAll(accountDir, 0o750); err != nil {
		return nil, fmt.Errorf("create account dir: %w", err)
	}

	tmp, err := os.CreateTemp(accountDir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, hasher), io.LimitReader(r, s.maxSize+1))
	if err == nil && n > s.maxSize {
		err = ErrTooLarge
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write slot %s/%s: %w", account, name, err)
	}

	info := &models.SlotInfo{
		Account:   account,
		Name:      name,
		Size:      n,
		SHA256:    hex.EncodeToString(hasher.Sum(nil)),
		UpdatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal slot info: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Rename(tmpName, s.slotPath(account, name)); err != nil {
		return nil, fmt.Errorf("replace slot %s/%s: %w", account, name, err)
	}
	committed = true

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(slotKey(account, name), data)
	})
	if err != nil {
		return nil, fmt.Errorf("index slot %s/%s: %w", account, name, err)
	}

	logging.Ctx(ctx).Info().
		Str("account", account).
		Str("slot", name).
		Int64("size", n).
		Msg("Slot stored")
	return info, nil
}

// Stat returns the slot's metadata.
func (s *Store) Stat(_ context.Context, account, name string) (*models.SlotInfo, error) {
	if err := checkNames(account, name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stat(account, name)
}

func (s *Store) stat(account, name string) (*models.SlotInfo, error) {
	var info models.SlotInfo
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(slotKey(account, name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSlotNotFound
		}
		if err != nil {
			return fmt.Errorf("get slot: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &info)
		})
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Open returns the slot's bytes and the metadata describing them. The caller
// closes the file.
func (s *Store) Open(_ context.Context, account, name string) (*os.File, *models.SlotInfo, error) {
	if err := checkNames(account, name); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := s.stat(account, name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.slotPath(account, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open slot %s/%s: %w", account, name, err)
	}
	return f, info, nil
}

// List returns every slot of the account, sorted by name.
func (s *Store) List(_ context.Context, account string) ([]models.SlotInfo, error) {
	if !validation.ValidSlotName(account) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, account)
	}

	slots := []models.SlotInfo{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(slotKeyPrefix + account + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var info models.SlotInfo
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			})
			if err != nil {
				return err
			}
			slots = append(slots, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Name < slots[j].Name })
	return slots, nil
}

// StoredBytes returns the total size of every indexed slot.
func (s *Store) StoredBytes() (int64, error) {
	var total int64
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(slotKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var info models.SlotInfo
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &info) }); err != nil {
				return err
			}
			total += info.Size
		}
		return nil
	})
	return total, err
}
