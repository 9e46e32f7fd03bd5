package characteriser

import (
	pkgmath "github.com/pkg/math"
)

// A ledgerElement is one recorded memory access of a work-item. Timestep is
// always 0; the position within the slot is what orders accesses.
type ledgerElement struct {
	Address  uint64
	Timestep uint32
}

// A memoryLedger holds, per work-item of the running work-group, the ordered
// memory accesses observed since the last work-group barrier. Slot index is
// the flattened local ID.
type memoryLedger struct {
	slots [][]ledgerElement
}

// resize prepares the ledger for a work-group with n work-items.
func (l *memoryLedger) resize(n int) {
	if cap(l.slots) >= n {
		l.slots = l.slots[:n]
	} else {
		l.slots = make([][]ledgerElement, n)
	}
	for i := range l.slots {
		l.slots[i] = l.slots[i][:0]
	}
}

func (l *memoryLedger) append(slot int, address uint64) {
	l.slots[slot] = append(l.slots[slot],
		ledgerElement{Address: address, Timestep: 0})
}

// clearSlots empties every slot and returns the length of the longest slot
// before clearing.
func (l *memoryLedger) clearSlots() int {
	maxLen := 0
	for i := range l.slots {
		maxLen = pkgmath.MaxInt(maxLen, len(l.slots[i]))
		l.slots[i] = l.slots[i][:0]
	}
	return maxLen
}
