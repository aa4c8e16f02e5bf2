package memory

import (
	"context"
	"strings"
	"sync"
)

// Store keeps the token in process memory. It backs tests and throwaway
// sessions where nothing should outlive the process.
type Store struct {
	mu    sync.Mutex
	token string
}

func New(token string) *Store {
	return &Store{token: strings.TrimSpace(token)}
}

func (s *Store) Get(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != "", nil
}

func (s *Store) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
	return nil
}

func (s *Store) DeleteIf(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.token != strings.TrimSpace(token) {
		return false, nil
	}
	s.token = ""
	return true, nil
}

func (s *Store) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
