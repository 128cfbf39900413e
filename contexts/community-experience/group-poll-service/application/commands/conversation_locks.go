package commands

import "sync"

// ConversationLocks serializes work per conversation. Entries are reference
// counted and dropped once no caller holds or waits on them, so the map only
// holds conversations with in-flight commands.
type ConversationLocks struct {
	mu      sync.Mutex
	entries map[string]*conversationLock
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

func NewConversationLocks() *ConversationLocks {
	return &ConversationLocks{entries: make(map[string]*conversationLock)}
}

// Lock blocks until the conversation is free and returns its unlock func.
func (l *ConversationLocks) Lock(conversationID string) func() {
	l.mu.Lock()
	if l.entries == nil {
		l.entries = make(map[string]*conversationLock)
	}
	entry, ok := l.entries[conversationID]
	if !ok {
		entry = &conversationLock{}
		l.entries[conversationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, conversationID)
		}
		l.mu.Unlock()
	}
}

func (l *ConversationLocks) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
