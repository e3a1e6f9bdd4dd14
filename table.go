package originserver

import (
	"fmt"
	"time"
)

// TableSize is the connection table's fixed capacity: at most 64
// concurrent connections.
const TableSize = 64

// Table is the fixed-capacity array of connection slots, addressed by
// fd via linear scan: N is small enough that a hash map buys nothing.
// It is the exclusive owner of every slot's socket and messages;
// nothing else may close a socket it holds.
type Table struct {
	slots [TableSize]slot
}

// NewTable returns a table with every slot initialized empty.
func NewTable() *Table {
	t := &Table{}
	for i := range t.slots {
		t.slots[i].fd = emptyFD
		t.slots[i].state = stateInactive
	}
	return t
}

// Add finds the first empty slot and activates it for fd. Returns
// ErrAdmission if the table is already full.
func (t *Table) Add(fd int, now time.Time) (*slot, error) {
	for i := range t.slots {
		if !t.slots[i].occupied() {
			t.slots[i].reactivate(fd, now)
			return &t.slots[i], nil
		}
	}
	return nil, fmt.Errorf("%w: all %d slots occupied", ErrAdmission, TableSize)
}

// Get scans linearly for the slot owning fd.
func (t *Table) Get(fd int) (*slot, bool) {
	for i := range t.slots {
		if t.slots[i].occupied() && t.slots[i].fd == fd {
			return &t.slots[i], true
		}
	}
	return nil, false
}

// Remove tears the owning slot down (closing its socket and releasing
// its messages and buffer) and marks it empty. A no-op if fd is not
// present.
func (t *Table) Remove(fd int) {
	if sl, ok := t.Get(fd); ok {
		sl.deactivate()
	}
}

// Count returns the number of occupied slots.
func (t *Table) Count() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].occupied() {
			n++
		}
	}
	return n
}

// AllOccupied returns every currently-occupied slot, used to tear
// everything down on shutdown.
func (t *Table) AllOccupied() []*slot {
	var occupied []*slot
	for i := range t.slots {
		if t.slots[i].occupied() {
			occupied = append(occupied, &t.slots[i])
		}
	}
	return occupied
}

// ScanExpired returns every occupied slot whose idle time exceeds
// timeout or whose action count has reached actionLimit. Called once
// per event-loop batch, never concurrently with the loop's own
// dispatch.
func (t *Table) ScanExpired(now time.Time, timeout time.Duration, actionLimit int) []*slot {
	var expired []*slot
	for i := range t.slots {
		if t.slots[i].expired(now, timeout, actionLimit) {
			expired = append(expired, &t.slots[i])
		}
	}
	return expired
}
