package cart

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
)

type EventKind int

const (
	EventAdded EventKind = iota + 1
	EventRemovedOne
	EventLineRemoved
	EventCleared
	EventRestored
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventRemovedOne:
		return "removed_one"
	case EventLineRemoved:
		return "line_removed"
	case EventCleared:
		return "cleared"
	case EventRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// Event describes one committed mutation. Before and After are the quantities
// of the touched line (0 when it did not exist / no longer exists); for Cleared
// and Restored they are the cart item counts. Total, ItemCount and LineCount
// are the cart values right after the mutation.
type Event struct {
	Seq       uint64
	Kind      EventKind
	ProductID string
	Before    int
	After     int
	Total     decimal.Decimal
	ItemCount int
	LineCount int
}

// Listener is called synchronously for every committed mutation.
type Listener func(Event)

type subscription struct {
	fn     Listener
	since  uint64 // last Seq committed before the listener was registered
	active atomic.Bool
}
