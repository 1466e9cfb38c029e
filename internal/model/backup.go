package model

// BackupFormatVersion is the envelope version written by the codec.
// The original desktop formats carried no version field; restores of
// records with any other value are rejected as invalid.
const BackupFormatVersion = 1

// TimestampLayout is the human-readable creation time embedded in
// backup records and file names. It compares lexicographically in
// chronological order.
const TimestampLayout = "2006-01-02 15:04:05"

// BackupRecord is the content-addressed envelope produced by the
// backup codec. Digest is the SHA-512 hex sum of the canonical payload
// bytes before base64 encoding, so the integrity check also catches
// encoding corruption. SizeBytes, EventCount and HasSettings are
// display metadata and not part of the integrity envelope.
type BackupRecord struct {
	Version     int    `json:"version"`
	Digest      string `json:"digest"`
	Timestamp   string `json:"timestamp"`
	Backup      string `json:"backup"`
	SizeBytes   int64  `json:"size_bytes"`
	EventCount  int    `json:"events_count"`
	HasSettings bool   `json:"contains_settings"`
}

// BackupMeta describes a backup stored on the sync server. The digest
// doubles as the remote identifier.
type BackupMeta struct {
	Digest      string `json:"digest"`
	Timestamp   string `json:"timestamp"`
	SizeBytes   int64  `json:"size_bytes"`
	EventCount  int    `json:"events_count"`
	HasSettings bool   `json:"contains_settings"`
}
