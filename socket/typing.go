package socket

import (
	"sort"
	"sync"
	"time"
)

// DefaultTypingWindow is how long a typing indicator stays visible without
// a follow-up event. Senders debounce stop-typing at roughly 1.2s, so a few
// seconds of slack covers a lost stop event without lingering.
const DefaultTypingWindow = 5 * time.Second

// TypingSet tracks who is typing in a conversation on the receiving side.
// Typing events are fire-and-forget with no delivery guarantee, so entries
// expire after the window even when the stop-typing event never arrives.
type TypingSet struct {
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	deadlines map[string]time.Time
}

// NewTypingSet creates a TypingSet; window <= 0 uses DefaultTypingWindow.
func NewTypingSet(window time.Duration) *TypingSet {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	return &TypingSet{
		window:    window,
		now:       time.Now,
		deadlines: make(map[string]time.Time),
	}
}

// Start records that the user is typing, refreshing the expiry window.
func (t *TypingSet) Start(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadlines[userID] = t.now().Add(t.window)
}

// Stop clears the user's typing indicator immediately.
func (t *TypingSet) Stop(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.deadlines, userID)
}

// Active returns the users still considered typing, pruning expired
// entries.
func (t *TypingSet) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	users := make([]string, 0, len(t.deadlines))
	for userID, deadline := range t.deadlines {
		if now.After(deadline) {
			delete(t.deadlines, userID)
			continue
		}
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}
