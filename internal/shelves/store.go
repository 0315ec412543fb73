// Package shelves is the bookshelf counterpart of the library store: an
// in-memory collection of the user's shelves with optimistic update and
// removal, non-optimistic create, and a durable best-effort cache seed.
package shelves

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tome/internal/api"
	"tome/internal/cache"
)

// Client is the slice of the backend API the shelf store uses.
type Client interface {
	ListShelves(ctx context.Context) ([]api.Shelf, error)
	CreateShelf(ctx context.Context, input api.ShelfInput, cover *api.Upload) (api.Shelf, error)
	UpdateShelf(ctx context.Context, id int64, input api.ShelfInput, cover *api.Upload) (api.Shelf, error)
	DeleteShelf(ctx context.Context, id int64) error
	ListShelfBooks(ctx context.Context, shelfID int64) ([]api.Book, error)
	AddShelfBook(ctx context.Context, shelfID, bookID int64) error
	RemoveShelfBook(ctx context.Context, shelfID, bookID int64) error
}

// Auth reports whether the session currently holds an accepted credential.
type Auth interface {
	IsAuthenticated() bool
}

// Snapshot is a point-in-time copy of the shelf state.
type Snapshot struct {
	Shelves     []api.Shelf
	Loading     bool
	Stale       bool
	LastFetched time.Time
	LastError   error
}

type cached struct {
	Shelves []api.Shelf `json:"shelves"`
}

// Store holds the user's bookshelves.
type Store struct {
	client Client
	auth   Auth
	cache  *cache.Store
	logger *zap.Logger

	mu          sync.Mutex
	shelves     []api.Shelf
	loading     bool
	stale       bool
	lastFetched time.Time
	lastError   error

	// Per-shelf mutation counters; see the library store for the stale
	// response discipline.
	seq map[int64]uint64
}

// New builds a shelf store.
func New(client Client, auth Auth, cacheStore *cache.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client: client,
		auth:   auth,
		cache:  cacheStore,
		logger: logger,
		seq:    make(map[int64]uint64),
	}
}

// LoadCached seeds the collection from the durable cache, marked stale
// until the first successful fetch.
func (s *Store) LoadCached() {
	if s.cache == nil {
		return
	}
	var saved cached
	fetched, ok := s.cache.Get(cache.KeyShelves, &saved)
	if !ok || len(saved.Shelves) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shelves = saved.Shelves
	s.stale = true
	s.lastFetched = fetched
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Shelves:     cloneShelves(s.shelves),
		Loading:     s.loading,
		Stale:       s.stale,
		LastFetched: s.lastFetched,
	}
	if s.lastError != nil {
		snap.LastError = fmt.Errorf("%w", s.lastError)
	}
	return snap
}

// FetchAll replaces the collection with the server's shelf list.
func (s *Store) FetchAll(ctx context.Context) error {
	if err := s.gate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.loading = true
	s.lastError = nil
	s.mu.Unlock()

	result, err := s.client.ListShelves(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastError = err
		s.logger.Warn("shelf fetch failed", zap.Error(err))
		return err
	}
	s.shelves = result
	s.stale = false
	s.lastFetched = time.Now()
	s.persistLocked()
	return nil
}

// Create makes a new shelf and appends the canonical server record; no
// optimistic placeholder is inserted.
func (s *Store) Create(ctx context.Context, input api.ShelfInput, cover *api.Upload) (api.Shelf, error) {
	if err := s.gate(); err != nil {
		return api.Shelf{}, err
	}

	created, err := s.client.CreateShelf(ctx, input, cover)
	if err != nil {
		s.setError(err)
		return api.Shelf{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shelves = append(s.shelves, created)
	s.lastError = nil
	s.persistLocked()
	return created, nil
}

// Update optimistically renames or re-describes a shelf. The server's
// response is canonical for every field it returns, including the stored
// cover URL after an upload.
func (s *Store) Update(ctx context.Context, id int64, input api.ShelfInput, cover *api.Upload) error {
	if err := s.gate(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return &api.Error{Kind: api.NotFound, Message: "shelf does not exist"}
	}
	before := cloneShelves(s.shelves)
	s.shelves[idx].Name = input.Name
	s.shelves[idx].Description = input.Description
	s.shelves[idx].IsPublic = input.IsPublic
	s.seq[id]++
	token := s.seq[id]
	s.mu.Unlock()

	updated, err := s.client.UpdateShelf(ctx, id, input, cover)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.seq[id] == token {
			s.shelves = before
			s.lastError = err
		}
		s.logger.Warn("shelf update rolled back", zap.Int64("id", id), zap.Error(err))
		return err
	}
	if s.seq[id] == token {
		if idx := s.indexLocked(id); idx >= 0 {
			s.shelves[idx] = updated
		}
		s.lastError = nil
		s.persistLocked()
	}
	return nil
}

// Remove optimistically deletes a shelf and restores the collection when
// the backend rejects the delete.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if err := s.gate(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return &api.Error{Kind: api.NotFound, Message: "shelf does not exist"}
	}
	before := cloneShelves(s.shelves)
	s.shelves = append(s.shelves[:idx:idx], s.shelves[idx+1:]...)
	s.seq[id]++
	token := s.seq[id]
	s.mu.Unlock()

	err := s.client.DeleteShelf(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.seq[id] == token {
			s.shelves = before
			s.lastError = err
		}
		s.logger.Warn("shelf remove rolled back", zap.Int64("id", id), zap.Error(err))
		return err
	}
	delete(s.seq, id)
	s.lastError = nil
	s.persistLocked()
	return nil
}

// AddBook optimistically places a book on a shelf; only the shelf's book
// count is visible at collection level, so that is what mutates.
func (s *Store) AddBook(ctx context.Context, shelfID, bookID int64) error {
	return s.adjustCount(ctx, shelfID, 1, func(ctx context.Context) error {
		return s.client.AddShelfBook(ctx, shelfID, bookID)
	})
}

// RemoveBook optimistically takes a book off a shelf.
func (s *Store) RemoveBook(ctx context.Context, shelfID, bookID int64) error {
	return s.adjustCount(ctx, shelfID, -1, func(ctx context.Context) error {
		return s.client.RemoveShelfBook(ctx, shelfID, bookID)
	})
}

// Books fetches a shelf's contents. Shelf contents are not cached at the
// store level; the detail view refetches on entry.
func (s *Store) Books(ctx context.Context, shelfID int64) ([]api.Book, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	books, err := s.client.ListShelfBooks(ctx, shelfID)
	if err != nil {
		s.setError(err)
		return nil, err
	}
	return books, nil
}

// ClearError drops the last surfaced error.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = nil
}

func (s *Store) adjustCount(ctx context.Context, shelfID int64, delta int, send func(context.Context) error) error {
	if err := s.gate(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.indexLocked(shelfID)
	if idx < 0 {
		s.mu.Unlock()
		return &api.Error{Kind: api.NotFound, Message: "shelf does not exist"}
	}
	before := cloneShelves(s.shelves)
	s.shelves[idx].BookCount += delta
	if s.shelves[idx].BookCount < 0 {
		s.shelves[idx].BookCount = 0
	}
	s.seq[shelfID]++
	token := s.seq[shelfID]
	s.mu.Unlock()

	err := send(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.seq[shelfID] == token {
			s.shelves = before
			s.lastError = err
		}
		return err
	}
	s.lastError = nil
	s.persistLocked()
	return nil
}

func (s *Store) gate() error {
	if s.auth != nil && !s.auth.IsAuthenticated() {
		err := &api.Error{Kind: api.Unauthenticated, Message: "not signed in"}
		s.setError(err)
		return err
	}
	return nil
}

func (s *Store) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
}

func (s *Store) indexLocked(id int64) int {
	for i := range s.shelves {
		if s.shelves[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persistLocked() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(cache.KeyShelves, cached{Shelves: s.shelves}); err != nil {
		s.logger.Warn("persist shelves failed", zap.Error(err))
	}
}

func cloneShelves(shelves []api.Shelf) []api.Shelf {
	if len(shelves) == 0 {
		return nil
	}
	dup := make([]api.Shelf, len(shelves))
	copy(dup, shelves)
	return dup
}
