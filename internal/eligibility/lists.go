// internal/eligibility/lists.go
package eligibility

import (
	"sort"
	"strings"
	"sync"
)

// HandleList is a case-insensitive set of social handles, used for both
// the buylist and the blacklist. Handles are trimmed and deduplicated on
// the way in. A nil list contains nothing, so an unset config field is
// safe to query.
type HandleList struct {
	mu      sync.RWMutex
	handles map[string]struct{}
}

// NewHandleList builds a list from the given handles.
func NewHandleList(handles ...string) *HandleList {
	l := &HandleList{handles: make(map[string]struct{})}
	for _, h := range handles {
		l.Add(h)
	}
	return l
}

func normalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// Add inserts a handle. Empty handles are ignored.
func (l *HandleList) Add(handle string) {
	h := normalizeHandle(handle)
	if h == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handles[h] = struct{}{}
}

// Remove deletes a handle if present.
func (l *HandleList) Remove(handle string) {
	h := normalizeHandle(handle)
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handles, h)
}

// Contains reports membership, case-insensitively.
func (l *HandleList) Contains(handle string) bool {
	if l == nil {
		return false
	}
	h := normalizeHandle(handle)
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.handles[h]
	return ok
}

// Handles returns the normalized handles in sorted order.
func (l *HandleList) Handles() []string {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	out := make([]string, 0, len(l.handles))
	for h := range l.handles {
		out = append(out, h)
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out
}
