package machine

import "sync"

// Link is one row of the link table.
type Link struct {
	Peer string
	Up   bool
}

// LinkTable records which configured clients are currently linked.
// The state loop is the only writer; readers take a snapshot.
type LinkTable struct {
	mu    sync.RWMutex
	order []string
	up    map[string]bool
}

// NewLinkTable seeds the table with peers, all down. Duplicates are ignored.
func NewLinkTable(peers []string) *LinkTable {
	t := &LinkTable{up: make(map[string]bool, len(peers))}
	for _, p := range peers {
		if _, dup := t.up[p]; dup {
			continue
		}
		t.order = append(t.order, p)
		t.up[p] = false
	}
	return t
}

// Set marks peer up or down. It reports false for a peer not in the table.
func (t *LinkTable) Set(peer string, up bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.up[peer]; !ok {
		return false
	}
	t.up[peer] = up
	return true
}

// AllUp reports whether every peer is up.
func (t *LinkTable) AllUp() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, up := range t.up {
		if !up {
			return false
		}
	}
	return true
}

// Snapshot returns the table in configuration order.
func (t *LinkTable) Snapshot() []Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Link, len(t.order))
	for i, p := range t.order {
		out[i] = Link{Peer: p, Up: t.up[p]}
	}
	return out
}
