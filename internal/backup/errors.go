package backup

import "errors"

var (
	// ErrInvalidBackupFile marks a record missing required envelope
	// fields or carrying an unknown format version.
	ErrInvalidBackupFile = errors.New("backup: invalid backup file")

	// ErrInvalidTimestamp marks a record claiming to be from the
	// future, or one whose timestamp cannot be parsed. A sanity check,
	// not a security control.
	ErrInvalidTimestamp = errors.New("backup: incorrect timestamp")

	// ErrCorruptBackup marks a payload whose recomputed digest does not
	// match the recorded one.
	ErrCorruptBackup = errors.New("backup: backup is broken")

	// ErrInvalidBackupData marks a payload that decodes but lacks the
	// events list.
	ErrInvalidBackupData = errors.New("backup: invalid backup data")
)
