package botmaster

import "sync"

// Fleet is the set of managed bots, indexed by uuid.
type Fleet struct {
	mu     sync.RWMutex
	bots   []*Bot
	byUUID map[string]*Bot
}

// NewFleet returns an empty fleet.
func NewFleet() *Fleet {
	return &Fleet{byUUID: make(map[string]*Bot)}
}

// Add registers a bot. Adding a uuid twice replaces the old entry.
func (f *Fleet) Add(b *Bot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.byUUID[b.UUID]; ok {
		for i, v := range f.bots {
			if v == old {
				f.bots[i] = b
				f.byUUID[b.UUID] = b
				return
			}
		}
	}
	f.bots = append(f.bots, b)
	f.byUUID[b.UUID] = b
}

// Remove drops a bot by uuid and returns it, if present.
func (f *Fleet) Remove(uuid string) (*Bot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byUUID[uuid]
	if !ok {
		return nil, false
	}
	delete(f.byUUID, uuid)
	for i, v := range f.bots {
		if v == b {
			f.bots = append(f.bots[:i], f.bots[i+1:]...)
			break
		}
	}
	return b, true
}

// Get returns the bot with the given uuid.
func (f *Fleet) Get(uuid string) (*Bot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.byUUID[uuid]
	return b, ok
}

// GetByName returns the first bot with the given display name.
func (f *Fleet) GetByName(name string) (*Bot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, b := range f.bots {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// All returns a snapshot of the fleet.
func (f *Fleet) All() []*Bot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Bot, len(f.bots))
	copy(out, f.bots)
	return out
}

// Len returns the bot count.
func (f *Fleet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.bots)
}

// ConnectedCount returns how many bots finished the join handshake.
func (f *Fleet) ConnectedCount() int {
	f.mu.RLock()
	bots := append([]*Bot(nil), f.bots...)
	f.mu.RUnlock()
	n := 0
	for _, b := range bots {
		if b.Connected() {
			n++
		}
	}
	return n
}
