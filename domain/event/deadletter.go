package event

import "time"

// DeadLetter is a ChangeEvent parked after its delivery attempts were
// exhausted. It keeps the full event so an operator can replay it once the
// downstream failure is resolved.
type DeadLetter struct {
	id         int64
	event      ChangeEvent
	lastError  string
	failedAt   time.Time
	replayedAt *time.Time
}

// NewDeadLetter creates a DeadLetter for a failed event.
func NewDeadLetter(ev ChangeEvent, lastError string, failedAt time.Time) DeadLetter {
	return DeadLetter{
		event:     ev,
		lastError: lastError,
		failedAt:  failedAt.UTC(),
	}
}

// NewDeadLetterFull creates a DeadLetter with all fields (used by the store).
func NewDeadLetterFull(id int64, ev ChangeEvent, lastError string, failedAt time.Time, replayedAt *time.Time) DeadLetter {
	return DeadLetter{
		id:         id,
		event:      ev,
		lastError:  lastError,
		failedAt:   failedAt,
		replayedAt: replayedAt,
	}
}

// ID returns the store-assigned identifier, zero before persistence.
func (d DeadLetter) ID() int64 { return d.id }

// Event returns the parked change event.
func (d DeadLetter) Event() ChangeEvent { return d.event }

// LastError returns the final delivery error message.
func (d DeadLetter) LastError() string { return d.lastError }

// FailedAt returns when the event was dead-lettered.
func (d DeadLetter) FailedAt() time.Time { return d.failedAt }

// ReplayedAt returns when the entry was replayed, or nil if it never was.
func (d DeadLetter) ReplayedAt() *time.Time { return d.replayedAt }

// IsReplayed reports whether this entry was already replayed.
func (d DeadLetter) IsReplayed() bool { return d.replayedAt != nil }

// Replay returns a copy marked as replayed at the given instant.
func (d DeadLetter) Replay(at time.Time) DeadLetter {
	at = at.UTC()
	d.replayedAt = &at
	return d
}
