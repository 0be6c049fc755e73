package auth

import "sync"

const subscriberBuffer = 16

// broadcaster fans out auth-state changes to subscribers. A subscriber that
// falls behind loses its oldest pending change, never the newest.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Change
	next int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Change)}
}

func (b *broadcaster) add() (int, chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Change, subscriberBuffer)
	id := b.next
	b.next++
	b.subs[id] = ch
	return id, ch
}

func (b *broadcaster) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *broadcaster) sendTo(id int, c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		deliver(ch, c)
	}
}

func (b *broadcaster) publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		deliver(ch, c)
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// deliver must be called with b.mu held; it is the only sender on ch.
func deliver(ch chan Change, c Change) {
	select {
	case ch <- c:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- c
	}
}
