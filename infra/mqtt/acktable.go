package mqtt

import "sync"

// ackTable tracks one signal channel per in-flight command id.
type ackTable struct {
	mu    sync.Mutex
	chans map[string]chan struct{}
}

func newAckTable() *ackTable {
	return &ackTable{chans: make(map[string]chan struct{})}
}

func (t *ackTable) register(commandID string) {
	t.mu.Lock()
	t.chans[commandID] = make(chan struct{}, 1)
	t.mu.Unlock()
}

func (t *ackTable) channel(commandID string) (chan struct{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.chans[commandID]
	return ch, ok
}

func (t *ackTable) signal(commandID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.chans[commandID]
	if !ok {
		return false
	}
	select {
	case ch <- struct{}{}:
	default:
	}
	return true
}

func (t *ackTable) drop(commandID string) {
	t.mu.Lock()
	delete(t.chans, commandID)
	t.mu.Unlock()
}
