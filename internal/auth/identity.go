package auth

import (
	"context"
	"errors"
	"sync"
)

// AnonymousLabel is used when a signed-in user has neither name nor email.
const AnonymousLabel = "Anonymous climber"

var ErrNoIdentity = errors.New("auth: no signed-in user")

type Identity struct {
	ID           string `json:"id"`
	DisplayLabel string `json:"display_label"`
}

// Provider is what the sync engine and feed publisher need from identity:
// a current-user lookup and auth-state-change notifications (nil = signed out).
type Provider interface {
	CurrentUser(ctx context.Context) (*Identity, error)
	Subscribe(fn func(*Identity)) (unsubscribe func())
}

// Session holds the device's signed-in user.
type Session struct {
	mu      sync.Mutex
	current *Identity
	subs    map[int]func(*Identity)
	nextSub int
}

func NewSession() *Session {
	return &Session{subs: map[int]func(*Identity){}}
}

func (s *Session) CurrentUser(_ context.Context) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, nil
	}
	id := *s.current
	return &id, nil
}

// Subscribe calls fn with the current state right away and on every change.
func (s *Session) Subscribe(fn func(*Identity)) func() {
	s.mu.Lock()
	key := s.nextSub
	s.nextSub++
	s.subs[key] = fn
	current := s.snapshotLocked()
	s.mu.Unlock()

	fn(current)
	return func() {
		s.mu.Lock()
		delete(s.subs, key)
		s.mu.Unlock()
	}
}

func (s *Session) SignIn(id Identity) {
	s.set(&id)
}

func (s *Session) SignOut() {
	s.set(nil)
}

func (s *Session) set(id *Identity) {
	s.mu.Lock()
	s.current = id
	current := s.snapshotLocked()
	subs := make([]func(*Identity), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(current)
	}
}

func (s *Session) snapshotLocked() *Identity {
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}
