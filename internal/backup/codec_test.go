package backup

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/remindd/remindd/internal/clock"
	"github.com/remindd/remindd/internal/model"
	"github.com/remindd/remindd/internal/store"
)

type fakeSettings struct {
	exported map[string]any
	applied  map[string]any
}

func (f *fakeSettings) Map() map[string]any { return f.exported }

func (f *fakeSettings) ApplyMap(m map[string]any) error {
	f.applied = m
	return nil
}

func setupCodec(t *testing.T) (*Codec, *store.EventStore, *fakeSettings) {
	t.Helper()
	s := store.NewEventStore(filepath.Join(t.TempDir(), "events.db"), false)
	if err := s.Connect(); err != nil {
		t.Fatalf("connect store: %v", err)
	}
	t.Cleanup(func() { s.Disconnect() })

	settings := &fakeSettings{exported: map[string]any{"is_dark_theme": true, "max_backups": 3}}
	c := NewCodec(s, settings)
	c.clock = &clock.Fixed{Current: time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local)}
	return c, s, settings
}

func seedEvents(t *testing.T, s *store.EventStore) {
	t.Helper()
	if _, err := s.Create("Standup", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(0, 1, 1, 9, 30, 0, 0, time.UTC), "daily sync", true, false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Create("Dentist", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), time.Date(0, 1, 1, 15, 0, 0, 0, time.UTC), "", false, false); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestPrepareRecordShape(t *testing.T) {
	c, s, _ := setupCodec(t)
	seedEvents(t, s)

	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	record, err := c.PrepareFromStore(ts, true, "alice")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if record.Version != model.BackupFormatVersion {
		t.Errorf("version = %d, want %d", record.Version, model.BackupFormatVersion)
	}
	if record.Timestamp != "2026-03-02 10:00:00" {
		t.Errorf("timestamp = %q", record.Timestamp)
	}
	if record.EventCount != 2 {
		t.Errorf("events_count = %d, want 2", record.EventCount)
	}
	if !record.HasSettings {
		t.Error("contains_settings should be true")
	}
	if record.SizeBytes != int64(len(record.Backup)) {
		t.Errorf("size_bytes = %d, want %d", record.SizeBytes, len(record.Backup))
	}
	if len(record.Digest) != 128 {
		t.Errorf("digest length = %d, want 128 hex chars of SHA-512", len(record.Digest))
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	c, s, settings := setupCodec(t)
	seedEvents(t, s)

	before, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	record, err := c.PrepareFromStore(time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local), true, "")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	// Mutate the store; restore must fully replace, not merge.
	s.Create("Noise", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(0, 1, 1, 8, 0, 0, 0, time.UTC), "", false, false)

	if err := c.Restore(record); err != nil {
		t.Fatalf("restore: %v", err)
	}

	after, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot after restore: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("got %d events, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("event %d = %+v, want %+v", i, after[i], before[i])
		}
	}

	if settings.applied == nil {
		t.Fatal("settings were not applied on restore")
	}
	if v, ok := settings.applied["is_dark_theme"].(bool); !ok || !v {
		t.Errorf("applied is_dark_theme = %v, want true", settings.applied["is_dark_theme"])
	}
}

func TestRestoreTamperDetection(t *testing.T) {
	c, s, _ := setupCodec(t)
	seedEvents(t, s)

	record, err := c.PrepareFromStore(time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local), false, "")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	// Flip one payload byte behind the base64 encoding.
	raw, err := base64.StdEncoding.DecodeString(record.Backup)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[len(raw)/2] ^= 0x01
	record.Backup = base64.StdEncoding.EncodeToString(raw)

	if err := c.Restore(record); !errors.Is(err, ErrCorruptBackup) {
		t.Errorf("err = %v, want ErrCorruptBackup", err)
	}

	// The store must be untouched by the failed restore.
	events, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events after failed restore, want 2", len(events))
	}
}

func TestRestoreFutureTimestamp(t *testing.T) {
	c, s, _ := setupCodec(t)
	seedEvents(t, s)

	record, err := c.PrepareFromStore(time.Date(2027, 1, 1, 0, 0, 0, 0, time.Local), false, "")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if err := c.Restore(record); !errors.Is(err, ErrInvalidTimestamp) {
		t.Errorf("err = %v, want ErrInvalidTimestamp", err)
	}
}

func TestRestoreMissingFields(t *testing.T) {
	c, _, _ := setupCodec(t)

	cases := []struct {
		name   string
		record *model.BackupRecord
	}{
		{"nil record", nil},
		{"no digest", &model.BackupRecord{Version: 1, Timestamp: "2026-03-02 10:00:00", Backup: "eyJ9"}},
		{"no timestamp", &model.BackupRecord{Version: 1, Digest: "abc", Backup: "eyJ9"}},
		{"no payload", &model.BackupRecord{Version: 1, Digest: "abc", Timestamp: "2026-03-02 10:00:00"}},
	}
	for _, tc := range cases {
		if err := c.Restore(tc.record); !errors.Is(err, ErrInvalidBackupFile) {
			t.Errorf("%s: err = %v, want ErrInvalidBackupFile", tc.name, err)
		}
	}
}

func TestRestoreUnknownVersion(t *testing.T) {
	c, s, _ := setupCodec(t)
	seedEvents(t, s)

	record, err := c.PrepareFromStore(time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local), false, "")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	record.Version = 2

	if err := c.Restore(record); !errors.Is(err, ErrInvalidBackupFile) {
		t.Errorf("err = %v, want ErrInvalidBackupFile", err)
	}
}

func TestRestoreMissingEventsKey(t *testing.T) {
	c, _, _ := setupCodec(t)

	// A well-formed envelope whose payload lacks the events list.
	raw := []byte(`{"settings":{}}`)
	digest := sha512.Sum512(raw)
	record := &model.BackupRecord{
		Version:   model.BackupFormatVersion,
		Digest:    hex.EncodeToString(digest[:]),
		Timestamp: "2026-03-02 10:00:00",
		Backup:    base64.StdEncoding.EncodeToString(raw),
	}

	if err := c.Restore(record); !errors.Is(err, ErrInvalidBackupData) {
		t.Errorf("err = %v, want ErrInvalidBackupData", err)
	}
}

func TestPrepareEmptyStore(t *testing.T) {
	c, _, _ := setupCodec(t)

	record, err := c.PrepareFromStore(time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local), false, "")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if record.EventCount != 0 {
		t.Errorf("events_count = %d, want 0", record.EventCount)
	}
	if err := c.Restore(record); err != nil {
		t.Fatalf("restore empty backup: %v", err)
	}
}
