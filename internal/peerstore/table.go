// Package peerstore holds the bounded peer table: the set of known
// neighbor addresses, their node identity, and freshness.
package peerstore

import (
	"math/rand"
	"sort"
	"time"
)

// Peer is one entry in the table.
type Peer struct {
	Addr     string
	NodeID   string
	LastSeen time.Time
}

// Table is the bounded, address-keyed peer set. Not safe for
// concurrent use by multiple goroutines; the node's single owner
// goroutine is the only caller, per the concurrency model.
type Table struct {
	self  string
	limit int
	rng   *rand.Rand

	peers map[string]*Peer
}

// New creates a table bounded at limit entries, excluding self,
// sampling with the given seeded generator.
func New(self string, limit int, rng *rand.Rand) *Table {
	if limit <= 0 {
		limit = 1
	}
	return &Table{
		self:  self,
		limit: limit,
		rng:   rng,
		peers: make(map[string]*Peer, limit),
	}
}

// Len returns the current peer count.
func (t *Table) Len() int { return len(t.peers) }

// Has reports whether addr is currently in the table.
func (t *Table) Has(addr string) bool {
	_, ok := t.peers[addr]
	return ok
}

// Touch refreshes or inserts addr. Self-address is always a no-op. At
// capacity, the least-recently-seen entry is evicted first (ties
// broken by address lexical order). Returns the evicted address (if
// any) and whether addr was newly added.
func (t *Table) Touch(addr, nodeID string, now time.Time) (evicted string, added bool) {
	if addr == "" || addr == t.self {
		return "", false
	}

	if p, ok := t.peers[addr]; ok {
		if p.LastSeen.Before(now) {
			p.LastSeen = now
		}
		if nodeID != "" {
			p.NodeID = nodeID
		}
		return "", false
	}

	if len(t.peers) >= t.limit {
		evicted = t.evictOldest()
	}

	t.peers[addr] = &Peer{Addr: addr, NodeID: nodeID, LastSeen: now}
	return evicted, true
}

// evictOldest removes the entry with the smallest last-seen timestamp,
// breaking ties by address lexical order, and returns its address.
func (t *Table) evictOldest() string {
	var oldestAddr string
	var oldestAt time.Time
	first := true
	for addr, p := range t.peers {
		if first || p.LastSeen.Before(oldestAt) ||
			(p.LastSeen.Equal(oldestAt) && addr < oldestAddr) {
			oldestAddr, oldestAt = addr, p.LastSeen
			first = false
		}
	}
	if oldestAddr != "" {
		delete(t.peers, oldestAddr)
	}
	return oldestAddr
}

// Remove deletes addr if present.
func (t *Table) Remove(addr string) {
	delete(t.peers, addr)
}

// Sweep removes every entry whose last-seen predates now-timeout,
// returning the removed addresses.
func (t *Table) Sweep(now time.Time, timeout time.Duration) []string {
	cutoff := now.Add(-timeout)
	var removed []string
	for addr, p := range t.peers {
		if p.LastSeen.Before(cutoff) {
			removed = append(removed, addr)
		}
	}
	sort.Strings(removed)
	for _, addr := range removed {
		delete(t.peers, addr)
	}
	return removed
}

// Sample returns up to k distinct addresses drawn uniformly without
// replacement from the table minus exclude, using the node's seeded
// PRNG stream. If fewer than k remain, returns all of them.
func (t *Table) Sample(k int, exclude string) []string {
	candidates := make([]string, 0, len(t.peers))
	for addr := range t.peers {
		if addr == exclude {
			continue
		}
		candidates = append(candidates, addr)
	}
	sort.Strings(candidates)

	if k >= len(candidates) {
		t.shuffle(candidates)
		return candidates
	}

	t.shuffle(candidates)
	return candidates[:k]
}

func (t *Table) shuffle(s []string) {
	rng := t.rng
	if rng == nil {
		return
	}
	rng.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

// Snapshot returns up to limit entries in address-sorted order, for
// embedding in a PEERS_LIST response.
func (t *Table) Snapshot(limit int) []Peer {
	addrs := make([]string, 0, len(t.peers))
	for addr := range t.peers {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	if limit > 0 && limit < len(addrs) {
		addrs = addrs[:limit]
	}

	out := make([]Peer, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, *t.peers[addr])
	}
	return out
}
