package auth

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var _ Accounts = (*InMemoryAccounts)(nil)

// InMemoryAccounts keeps accounts in process memory.
type InMemoryAccounts struct {
	mu      sync.RWMutex
	byUID   map[string]*Account
	byEmail map[string]string
}

// NewInMemoryAccounts returns an empty account table.
func NewInMemoryAccounts() *InMemoryAccounts {
	return &InMemoryAccounts{
		byUID:   make(map[string]*Account),
		byEmail: make(map[string]string),
	}
}

func (s *InMemoryAccounts) Create(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[a.Email]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.byUID[a.UID]; ok {
		return ErrAlreadyExists
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	s.byUID[a.UID] = &cp
	s.byEmail[a.Email] = a.UID
	return nil
}

func (s *InMemoryAccounts) Find(ctx context.Context, uid string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byUID[uid]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.RLock()
	uid, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Find(ctx, uid)
}

func (s *InMemoryAccounts) UpdateDisplayName(ctx context.Context, uid, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byUID[uid]
	if !ok {
		return ErrNotFound
	}
	a.DisplayName = name
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// MemoryPersistence holds the session token for the life of the process.
type MemoryPersistence struct {
	mu    sync.Mutex
	token string
}

func (p *MemoryPersistence) Load() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token, nil
}

func (p *MemoryPersistence) Save(token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
	return nil
}

func (p *MemoryPersistence) Clear() error {
	return p.Save("")
}

// FilePersistence stores the session token in a single file readable only
// by the current user.
type FilePersistence struct {
	Path string
}

func (p FilePersistence) Load() (string, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (p FilePersistence) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.Path, []byte(token+"\n"), 0o600)
}

func (p FilePersistence) Clear() error {
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
