package settings

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Remind time units. The stored value pairs a count with one of these;
// normalization converts to minutes for the scheduler.
const (
	UnitMinutes = 0
	UnitHours   = 1
	UnitDays    = 2
	UnitWeeks   = 3
)

// Data is the user settings file. The subset here is exactly what is
// eligible for inclusion in backups: display preferences plus the
// reminder and backup policies.
type Data struct {
	DarkTheme              bool   `koanf:"is_dark_theme"`
	Font                   int    `koanf:"font"`
	Lang                   string `koanf:"lang"`
	NotificationDuration   int    `koanf:"notification_duration"`
	RemindTime             int    `koanf:"remind_time_before_event"`
	RemindUnit             int    `koanf:"remind_time_unit"`
	RemoveEventAfterTimeUp bool   `koanf:"remove_event_after_time_up"`
	StartInTray            bool   `koanf:"start_in_tray"`
	AutoStart              bool   `koanf:"auto_start"`
	IncludeSettingsBackup  bool   `koanf:"backup_settings"`
	MaxBackups             int    `koanf:"max_backups"`
}

func defaults() Data {
	return Data{
		Font:                 10,
		Lang:                 "en_US",
		NotificationDuration: 5,
		RemindTime:           1,
		RemindUnit:           UnitMinutes,
		MaxBackups:           5,
	}
}

// Settings is the file-backed user settings store.
type Settings struct {
	mu   sync.RWMutex
	path string
	data Data
}

// Load reads settings from path, layering the file over defaults. A
// missing file is not an error; defaults apply until the first Save.
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load default settings: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load settings file: %w", err)
	}

	var data Data
	if err := k.Unmarshal("", &data); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return &Settings{path: path, data: data}, nil
}

// Save writes the current settings to the file as YAML.
func (s *Settings) Save() error {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()

	k := koanf.New(".")
	if err := k.Load(structs.Provider(data, "koanf"), nil); err != nil {
		return fmt.Errorf("collect settings: %w", err)
	}
	out, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(s.path, out, 0o600); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

// RemindTimeBeforeEvent returns the configured lead time. With
// toMinutes set, the unit is normalized away and the result is whole
// minutes, which is what the scheduler works in.
func (s *Settings) RemindTimeBeforeEvent(toMinutes bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !toMinutes {
		return s.data.RemindTime
	}
	switch s.data.RemindUnit {
	case UnitHours:
		return s.data.RemindTime * 60
	case UnitDays:
		return s.data.RemindTime * 24 * 60
	case UnitWeeks:
		return s.data.RemindTime * 7 * 24 * 60
	default:
		return s.data.RemindTime
	}
}

func (s *Settings) RemoveEventAfterTimeUp() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.RemoveEventAfterTimeUp
}

func (s *Settings) IncludeSettingsBackup() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.IncludeSettingsBackup
}

func (s *Settings) MaxBackups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.MaxBackups
}

// NotificationDuration is how long a notification stays on screen.
func (s *Settings) NotificationDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.data.NotificationDuration) * time.Second
}

func (s *Settings) SetRemindTime(value, unit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.RemindTime = value
	s.data.RemindUnit = unit
}

func (s *Settings) SetRemoveEventAfterTimeUp(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.RemoveEventAfterTimeUp = v
}

func (s *Settings) SetMaxBackups(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.MaxBackups = n
}

// Map exports the backup-eligible settings under their stable wire
// keys. The keys are part of the backup payload format.
func (s *Settings) Map() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"is_dark_theme":              s.data.DarkTheme,
		"font":                       s.data.Font,
		"lang":                       s.data.Lang,
		"notification_duration":      s.data.NotificationDuration,
		"remind_time_before_event":   s.data.RemindTime,
		"remind_time_unit":           s.data.RemindUnit,
		"remove_event_after_time_up": s.data.RemoveEventAfterTimeUp,
		"start_in_tray":              s.data.StartInTray,
		"auto_start":                 s.data.AutoStart,
		"backup_settings":            s.data.IncludeSettingsBackup,
		"max_backups":                s.data.MaxBackups,
	}
}

// ApplyMap restores settings from a backup payload and persists them.
// Unknown keys are ignored; missing keys keep their current value.
// Numeric values arrive as float64 from JSON decoding.
func (s *Settings) ApplyMap(m map[string]any) error {
	s.mu.Lock()
	if v, ok := asBool(m["is_dark_theme"]); ok {
		s.data.DarkTheme = v
	}
	if v, ok := asInt(m["font"]); ok {
		s.data.Font = v
	}
	if v, ok := m["lang"].(string); ok {
		s.data.Lang = v
	}
	if v, ok := asInt(m["notification_duration"]); ok {
		s.data.NotificationDuration = v
	}
	if v, ok := asInt(m["remind_time_before_event"]); ok {
		s.data.RemindTime = v
	}
	if v, ok := asInt(m["remind_time_unit"]); ok {
		s.data.RemindUnit = v
	}
	if v, ok := asBool(m["remove_event_after_time_up"]); ok {
		s.data.RemoveEventAfterTimeUp = v
	}
	if v, ok := asBool(m["start_in_tray"]); ok {
		s.data.StartInTray = v
	}
	if v, ok := asBool(m["auto_start"]); ok {
		s.data.AutoStart = v
	}
	if v, ok := asBool(m["backup_settings"]); ok {
		s.data.IncludeSettingsBackup = v
	}
	if v, ok := asInt(m["max_backups"]); ok {
		s.data.MaxBackups = v
	}
	s.mu.Unlock()

	return s.Save()
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		return b != 0, true
	case int:
		return b != 0, true
	}
	return false, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
