// Package session holds the process-wide authentication snapshot and the
// accessor handlers use to read it.
package session

import (
	"context"
	"errors"
	"sync"

	"pocketheist.org/internal/auth"
)

// ErrAlreadyStarted is returned by a second Start call.
var ErrAlreadyStarted = errors.New("session: holder already started")

// Source is the part of the identity provider the holder listens to.
type Source interface {
	Subscribe() (<-chan auth.Change, auth.Unsubscribe)
}

// State is the snapshot published to consumers. Every notification
// replaces it wholesale.
type State struct {
	Identity *auth.Identity
	Loading  bool
}

// SignedIn reports whether an identity is present.
func (s State) SignedIn() bool { return s.Identity != nil }

// Holder is the sole receiver of provider notifications. Construct one at
// start-up, Start it, and Close it on shutdown.
type Holder struct {
	src Source

	mu      sync.RWMutex
	state   State
	changed chan struct{}

	startOnce   sync.Once
	closeOnce   sync.Once
	unsubscribe auth.Unsubscribe
	done        chan struct{}
}

// NewHolder returns a holder in the initial {identity: none, loading: true} state.
func NewHolder(src Source) *Holder {
	return &Holder{
		src:     src,
		state:   State{Loading: true},
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start opens the single subscription for the holder's lifetime.
func (h *Holder) Start() error {
	started := false
	h.startOnce.Do(func() {
		started = true
		ch, unsubscribe := h.src.Subscribe()
		h.mu.Lock()
		h.unsubscribe = unsubscribe
		h.mu.Unlock()
		go h.run(ch)
	})
	if !started {
		return ErrAlreadyStarted
	}
	return nil
}

func (h *Holder) run(ch <-chan auth.Change) {
	defer close(h.done)
	for c := range ch {
		h.apply(c)
	}
}

func (h *Holder) apply(c auth.Change) {
	var id *auth.Identity
	if c.Identity != nil {
		cp := *c.Identity
		id = &cp
	}
	h.mu.Lock()
	h.state = State{Identity: id, Loading: false}
	close(h.changed)
	h.changed = make(chan struct{})
	h.mu.Unlock()
}

// State returns the latest snapshot.
func (h *Holder) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return copyState(h.state)
}

// Wait blocks until pred accepts the current snapshot or ctx ends.
func (h *Holder) Wait(ctx context.Context, pred func(State) bool) (State, error) {
	for {
		h.mu.RLock()
		st, changed := copyState(h.state), h.changed
		h.mu.RUnlock()
		if pred(st) {
			return st, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Close releases the provider subscription and waits for the receive loop
// to drain. Safe to call on a holder that was never started.
func (h *Holder) Close() {
	h.closeOnce.Do(func() {
		h.mu.RLock()
		unsubscribe := h.unsubscribe
		h.mu.RUnlock()
		if unsubscribe == nil {
			return
		}
		unsubscribe()
		<-h.done
	})
}

func copyState(s State) State {
	if s.Identity != nil {
		cp := *s.Identity
		s.Identity = &cp
	}
	return s
}
