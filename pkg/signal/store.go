package signal

import "errors"

// ErrDuplicate is returned by RecordNew when the message id is already
// tracked. New-message events are unique per id under normal operation, so
// hitting this after a restart means the message was already handled.
var ErrDuplicate = errors.New("signal: duplicate message id")

// Outcome classifies what an edit did to a stored message.
type Outcome int

const (
	// Untracked means the edited message was never stored, e.g. it was
	// filtered out before storage. Edits to untracked messages are ignored.
	Untracked Outcome = iota
	// Unchanged means the edit didn't alter the cleaned text.
	Unchanged
	// Revised means a new version was appended.
	Revised
)

func (o Outcome) String() string {
	switch o {
	case Untracked:
		return "untracked"
	case Unchanged:
		return "unchanged"
	case Revised:
		return "revised"
	}
	return "unknown"
}

// Store is an append-only log of cleaned message text keyed by message id.
// The version sequence encodes revision history in arrival order. Keys are
// never removed and every write must be synchronously durable: the store is
// what prevents duplicate order placement after a process restart.
type Store interface {
	// RecordNew creates the record with a single version. It returns
	// ErrDuplicate if the id is already tracked.
	RecordNew(id, text string) error
	// RecordEdit appends a new version when the text changed. When the
	// outcome is Revised, previous holds the superseded version.
	RecordEdit(id, text string) (outcome Outcome, previous string, err error)
	// Latest returns the most recent version, or ok=false for untracked ids.
	Latest(id string) (text string, ok bool, err error)
}
