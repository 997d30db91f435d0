package workflow

import "math"

// Sentinel marks both ends of an IDList. It is never a valid id.
const Sentinel uint64 = math.MaxUint64

// IDList is an insertion-ordered set of ids stored as a doubly linked list
// whose head and tail both point at Sentinel. Insert and remove at a known
// position are O(1).
type IDList struct {
	next map[uint64]uint64
	prev map[uint64]uint64
}

// NewIDList creates an empty list.
func NewIDList() *IDList {
	return &IDList{
		next: map[uint64]uint64{Sentinel: Sentinel},
		prev: map[uint64]uint64{Sentinel: Sentinel},
	}
}

// Len returns the number of ids.
func (l *IDList) Len() int { return len(l.next) - 1 }

// Contains reports whether id is in the list.
func (l *IDList) Contains(id uint64) bool {
	if id == Sentinel {
		return false
	}
	_, ok := l.next[id]
	return ok
}

// Add appends id. It returns false if id is Sentinel or already present.
func (l *IDList) Add(id uint64) bool {
	if id == Sentinel || l.Contains(id) {
		return false
	}
	last := l.prev[Sentinel]
	l.next[last] = id
	l.prev[id] = last
	l.next[id] = Sentinel
	l.prev[Sentinel] = id
	return true
}

// Remove unlinks id. prevID must be its current predecessor (Sentinel for the
// first element), otherwise nothing changes and false is returned.
func (l *IDList) Remove(prevID, id uint64) bool {
	if !l.Contains(id) || l.next[prevID] != id {
		return false
	}
	after := l.next[id]
	l.next[prevID] = after
	l.prev[after] = prevID
	delete(l.next, id)
	delete(l.prev, id)
	return true
}

// Previous returns the predecessor of id, Sentinel for the first element.
func (l *IDList) Previous(id uint64) (uint64, bool) {
	if !l.Contains(id) {
		return 0, false
	}
	return l.prev[id], true
}

// Next returns the id following id. Passing Sentinel yields the first id.
// Sentinel is returned at the end of the list or for unknown ids.
func (l *IDList) Next(id uint64) uint64 {
	n, ok := l.next[id]
	if !ok {
		return Sentinel
	}
	return n
}

// First returns the first id or Sentinel when empty.
func (l *IDList) First() uint64 { return l.next[Sentinel] }

// Last returns the last id or Sentinel when empty.
func (l *IDList) Last() uint64 { return l.prev[Sentinel] }

// IDs returns the ids in insertion order.
func (l *IDList) IDs() []uint64 {
	out := make([]uint64, 0, l.Len())
	for id := l.First(); id != Sentinel; id = l.next[id] {
		out = append(out, id)
	}
	return out
}
