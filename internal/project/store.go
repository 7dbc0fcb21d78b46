// Package project implements a minimal filesystem-backed project registry:
// one directory per project, holding a project.json identity record
// alongside the phase artifacts the pipeline writes into it. The engine
// never inspects project state beyond Create/Get/List.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rohankatakam/strategos-engine/internal/model"
)

// Store is a filesystem-backed project registry rooted at one directory.
type Store struct {
	root string

	mu    sync.Mutex
	cache map[string]*model.Project
}

// NewStore creates a Store rooted at root, creating the directory if
// necessary.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create projects root: %w", err)
	}
	return &Store{root: root, cache: make(map[string]*model.Project)}, nil
}

// Create allocates a new project directory and identity record for topic.
func (s *Store) Create(topic string) (*model.Project, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}

	now := time.Now()
	p := &model.Project{
		ID:        id,
		Topic:     topic,
		Created:   now,
		Updated:   now,
		Status:    model.StatusPending,
		Directory: dir,
	}

	if err := s.persist(p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[id] = p
	s.mu.Unlock()

	return p, nil
}

// Get returns the project with the given id, loading it from disk on a
// cache miss.
func (s *Store) Get(id string) (*model.Project, bool) {
	s.mu.Lock()
	if p, ok := s.cache[id]; ok {
		s.mu.Unlock()
		return p, true
	}
	s.mu.Unlock()

	dir := filepath.Join(s.root, id)
	data, err := os.ReadFile(filepath.Join(dir, "project.json"))
	if err != nil {
		return nil, false
	}

	var p model.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false
	}
	p.Directory = dir

	s.mu.Lock()
	s.cache[id] = &p
	s.mu.Unlock()

	return &p, true
}

// Save persists the current in-memory state of p to disk. Callers invoke
// this after mutating p (e.g. via Project.Touch) to make the change
// durable.
func (s *Store) Save(p *model.Project) error {
	return s.persist(p)
}

func (s *Store) persist(p *model.Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}
	return os.WriteFile(filepath.Join(p.Directory, "project.json"), data, 0644)
}

// List returns every project id found under the store's root.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
