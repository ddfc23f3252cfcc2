// Package antientropy implements the bounded, insertion-ordered
// duplicate filter ("seen set") and its companion full-envelope store,
// which back the push-pull (IHAVE/IWANT) reconciliation done in
// internal/protocol.
package antientropy

import (
	"container/list"

	"github.com/Ap3pp3rs94/gossipd/internal/wire"
)

// DefaultCapacity is the fixed seen-set / store capacity from spec.
const DefaultCapacity = 10000

// SeenSet is a bounded, insertion-ordered set of message ids with an
// O(1) insert/evict companion message store. Not safe for concurrent
// use; owned by the node's single owner goroutine.
type SeenSet struct {
	capacity int
	order    *list.List                // front = oldest, back = newest
	index    map[string]*list.Element  // msg id -> node in order
	store    map[string]*wire.Envelope // msg id -> stored envelope (subset of index)
}

// New creates a seen set bounded at capacity (DefaultCapacity if <= 0).
func New(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SeenSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
		store:    make(map[string]*wire.Envelope, capacity),
	}
}

// Mark idempotently inserts msgID into the seen set. If envelope is
// non-nil, it is also captured in the store. On overflow, the oldest
// seen entry (and its store twin, if any) is evicted first. Returns
// true if msgID was newly inserted.
func (s *SeenSet) Mark(msgID string, envelope *wire.Envelope) bool {
	if _, ok := s.index[msgID]; ok {
		if envelope != nil {
			s.store[msgID] = envelope
		}
		return false
	}

	if s.order.Len() >= s.capacity {
		s.evictOldest()
	}

	el := s.order.PushBack(msgID)
	s.index[msgID] = el
	if envelope != nil {
		s.store[msgID] = envelope
	}
	return true
}

func (s *SeenSet) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	oldest := front.Value.(string)
	s.order.Remove(front)
	delete(s.index, oldest)
	delete(s.store, oldest)
}

// Contains reports whether msgID has been observed.
func (s *SeenSet) Contains(msgID string) bool {
	_, ok := s.index[msgID]
	return ok
}

// Get returns the stored envelope for msgID, if captured.
func (s *SeenSet) Get(msgID string) (*wire.Envelope, bool) {
	v, ok := s.store[msgID]
	return v, ok
}

// Len returns the current seen-set size.
func (s *SeenSet) Len() int { return s.order.Len() }

// StoreLen returns the current message-store size; always <= Len().
func (s *SeenSet) StoreLen() int { return len(s.store) }

// Recent returns the k most-recently-inserted message ids, newest
// first, for the IHAVE advertisement loop.
func (s *SeenSet) Recent(k int) []string {
	if k <= 0 {
		return nil
	}
	out := make([]string, 0, k)
	for el := s.order.Back(); el != nil && len(out) < k; el = el.Prev() {
		out = append(out, el.Value.(string))
	}
	return out
}
