package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// fileTokenStore persists the session token pair across CLI invocations so
// every command does not require a fresh login. Writes are best-effort: a
// failed save keeps the in-memory pair and the session simply does not
// survive the process.
type fileTokenStore struct {
	mu      sync.RWMutex
	path    string
	access  string
	refresh string
}

type tokenFile struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func newFileTokenStore(path string) (*fileTokenStore, error) {
	s := &fileTokenStore{path: path}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("token store: read %s: %w", path, err)
	}
	var f tokenFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("token store: parse %s: %w", path, err)
	}
	s.access, s.refresh = f.Access, f.Refresh
	return s, nil
}

func (s *fileTokenStore) Tokens() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, s.refresh
}

func (s *fileTokenStore) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	if refresh != "" {
		s.refresh = refresh
	}
	s.save()
}

func (s *fileTokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = "", ""
	os.Remove(s.path)
}

func (s *fileTokenStore) save() {
	raw, err := json.Marshal(tokenFile{Access: s.access, Refresh: s.refresh})
	if err != nil {
		return
	}
	os.WriteFile(s.path, raw, 0o600)
}
