// internal/browser/tabs.go
package browser

import "sync"

// tabRecord is one tracked tab. Records reference each other by target id
// only, never by pointer, so a destroyed tab leaves no dangling references.
type tabRecord struct {
	targetID string
	openerID string
	page     Page
	seq      int
}

// tabArena tracks the open tabs of one session together with their
// activation history (most recently active first).
type tabArena struct {
	mu      sync.Mutex
	tabs    map[string]*tabRecord
	history []string
	nextSeq int
}

func newTabArena() *tabArena {
	return &tabArena{tabs: make(map[string]*tabRecord)}
}

// add registers a tab if it is not yet tracked and returns its record.
func (a *tabArena) add(targetID, openerID string, page Page) (*tabRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rec, ok := a.tabs[targetID]; ok {
		return rec, false
	}
	rec := &tabRecord{targetID: targetID, openerID: openerID, page: page, seq: a.nextSeq}
	a.nextSeq++
	a.tabs[targetID] = rec
	return rec, true
}

func (a *tabArena) remove(targetID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.tabs, targetID)
	for i, id := range a.history {
		if id == targetID {
			a.history = append(a.history[:i], a.history[i+1:]...)
			break
		}
	}
}

// activate moves the tab to the front of the activation history.
func (a *tabArena) activate(targetID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.tabs[targetID]; !ok {
		return
	}
	for i, id := range a.history {
		if id == targetID {
			a.history = append(a.history[:i], a.history[i+1:]...)
			break
		}
	}
	a.history = append([]string{targetID}, a.history...)
}

// activePage walks the activation history and returns the most recently
// active tab that is still open, or nil when none remains.
func (a *tabArena) activePage() Page {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range a.history {
		rec, ok := a.tabs[id]
		if ok && rec.page != nil && !rec.page.Closed() {
			return rec.page
		}
	}
	return nil
}

// pages returns the open tabs in creation order.
func (a *tabArena) pages() []Page {
	a.mu.Lock()
	defer a.mu.Unlock()

	recs := make([]*tabRecord, 0, len(a.tabs))
	for _, rec := range a.tabs {
		recs = append(recs, rec)
	}
	// Creation order is the insertion sequence.
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j-1].seq > recs[j].seq; j-- {
			recs[j-1], recs[j] = recs[j], recs[j-1]
		}
	}

	out := make([]Page, 0, len(recs))
	for _, rec := range recs {
		if rec.page != nil && !rec.page.Closed() {
			out = append(out, rec.page)
		}
	}
	return out
}

func (a *tabArena) has(targetID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.tabs[targetID]
	return ok
}
