package bus

const (
	// EventsChanged fires when the reminder scheduler mutated event
	// state during a tick. Published once per tick, not once per
	// event; subscribers should refresh their view.
	EventsChanged EventType = "events.changed"

	// BackupRestored fires after a backup replaced the store contents.
	BackupRestored EventType = "backup.restored"
)

// EventsChangedData summarizes what a scheduler tick touched.
type EventsChangedData struct {
	Notified    int
	Rescheduled int
	Expired     int
	Deleted     int
}

// BackupRestoredData reports the size of the restored snapshot.
type BackupRestoredData struct {
	EventCount int
}
