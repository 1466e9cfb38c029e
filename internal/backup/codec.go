package backup

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/remindd/remindd/internal/clock"
	"github.com/remindd/remindd/internal/model"
	"github.com/remindd/remindd/internal/store"
)

// SettingsSource is the settings collaborator: the subset of user
// settings eligible for backup inclusion, as a plain map.
type SettingsSource interface {
	Map() map[string]any
	ApplyMap(map[string]any) error
}

// payload is the canonical backup content. It is marshaled with fixed
// field order; the digest is computed over these bytes before base64
// encoding, so the integrity check also detects encoding corruption
// and stays stable if the encoding scheme ever changes.
type payload struct {
	Events   []model.EventSnapshot `json:"events"`
	Settings map[string]any        `json:"settings,omitempty"`
	Author   string                `json:"author,omitempty"`
}

// Codec produces and restores content-addressed backup records. It
// knows nothing about where records are stored; local files and the
// cloud client both consume its output.
type Codec struct {
	store    *store.EventStore
	settings SettingsSource
	clock    clock.Clock
}

// NewCodec creates a codec over the given store and settings
// collaborator. settings may be nil, in which case records never
// include settings and restores skip them.
func NewCodec(s *store.EventStore, settings SettingsSource) *Codec {
	return &Codec{store: s, settings: settings, clock: clock.System{}}
}

// Prepare builds an immutable backup record from the given events.
// The author is recorded only when non-empty (cloud uploads stamp the
// account username).
func (c *Codec) Prepare(events []model.EventSnapshot, timestamp time.Time, includeSettings bool, author string) (*model.BackupRecord, error) {
	if events == nil {
		events = []model.EventSnapshot{}
	}
	p := payload{Events: events, Author: author}
	if includeSettings && c.settings != nil {
		p.Settings = c.settings.Map()
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("serialize backup payload: %w", err)
	}

	digest := sha512.Sum512(raw)
	encoded := base64.StdEncoding.EncodeToString(raw)

	return &model.BackupRecord{
		Version:     model.BackupFormatVersion,
		Digest:      hex.EncodeToString(digest[:]),
		Timestamp:   timestamp.Format(model.TimestampLayout),
		Backup:      encoded,
		SizeBytes:   int64(len(encoded)),
		EventCount:  len(events),
		HasSettings: p.Settings != nil,
	}, nil
}

// PrepareFromStore snapshots the event store and builds a record from
// it.
func (c *Codec) PrepareFromStore(timestamp time.Time, includeSettings bool, author string) (*model.BackupRecord, error) {
	snaps, err := c.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return c.Prepare(snaps, timestamp, includeSettings, author)
}

// Restore validates the record and replaces the entire event store
// contents with its payload. The store is left untouched until every
// validation step has passed. Settings are applied last when present.
func (c *Codec) Restore(record *model.BackupRecord) error {
	if record == nil || record.Digest == "" || record.Timestamp == "" || record.Backup == "" {
		return ErrInvalidBackupFile
	}
	if record.Version != model.BackupFormatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidBackupFile, record.Version)
	}

	ts, err := time.ParseInLocation(model.TimestampLayout, record.Timestamp, time.Local)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestamp, record.Timestamp)
	}
	if c.clock.Now().Before(ts) {
		return ErrInvalidTimestamp
	}

	raw, err := base64.StdEncoding.DecodeString(record.Backup)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptBackup, err)
	}
	digest := sha512.Sum512(raw)
	if hex.EncodeToString(digest[:]) != record.Digest {
		return ErrCorruptBackup
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBackupData, err)
	}
	rawEvents, ok := fields["events"]
	if !ok {
		return ErrInvalidBackupData
	}
	var events []model.EventSnapshot
	if err := json.Unmarshal(rawEvents, &events); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBackupData, err)
	}

	var settings map[string]any
	if rawSettings, ok := fields["settings"]; ok {
		if err := json.Unmarshal(rawSettings, &settings); err != nil {
			return fmt.Errorf("%w: settings: %v", ErrInvalidBackupData, err)
		}
	}

	if err := c.store.RestoreSnapshot(events); err != nil {
		return fmt.Errorf("restore events: %w", err)
	}

	if settings != nil && c.settings != nil {
		if err := c.settings.ApplyMap(settings); err != nil {
			return fmt.Errorf("apply settings: %w", err)
		}
	}

	return nil
}
