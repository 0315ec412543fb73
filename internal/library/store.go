package library

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tome/internal/api"
	"tome/internal/cache"
)

// Client is the slice of the backend API the library store uses.
// Implemented by *api.Client; tests substitute a fake.
type Client interface {
	ListReadingStatuses(ctx context.Context, page int) (api.ReadingStatusPage, error)
	CreateReadingStatus(ctx context.Context, input api.CreateReadingStatusInput) (api.ReadingStatus, error)
	UpdateReadingStatus(ctx context.Context, id int64, patch api.ReadingStatusPatch) (api.ReadingStatus, error)
	DeleteReadingStatus(ctx context.Context, id int64) error
}

// Auth reports whether the session currently holds an accepted credential.
type Auth interface {
	IsAuthenticated() bool
}

// PageInfo carries the server-reported pagination state for the current page.
type PageInfo struct {
	Current     int  `json:"current"`
	Total       int  `json:"total"`
	Count       int  `json:"count"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// Snapshot is a point-in-time copy of the library state.
type Snapshot struct {
	Entries     []api.ReadingStatus
	Page        PageInfo
	Loading     bool
	Stale       bool // seeded from the local cache, not yet confirmed remotely
	LastFetched time.Time
	LastError   error
}

// cached is the durable representation written after each successful fetch.
type cached struct {
	Entries []api.ReadingStatus `json:"entries"`
	Page    PageInfo            `json:"page"`
}

// Store is the in-memory authoritative cache of the user's library, mutated
// optimistically against the backend. Each page fetch replaces the whole
// collection; mutations snapshot the collection first and restore it when
// the backend rejects the change.
type Store struct {
	client Client
	auth   Auth
	cache  *cache.Store
	logger *zap.Logger

	mu          sync.Mutex
	entries     []api.ReadingStatus
	page        PageInfo
	loading     bool
	stale       bool
	lastFetched time.Time
	lastError   error

	// seq holds a monotonic mutation counter per reading-status id. A
	// network response is reconciled or rolled back only while its counter
	// is still current; stale responses are discarded so a slow reply can
	// never overwrite a newer optimistic state.
	seq map[int64]uint64
}

// memento captures the collection state before an optimistic mutation.
type memento struct {
	entries []api.ReadingStatus
	page    PageInfo
}

// New builds a library store.
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

// LoadCached seeds the collection from the durable cache. The seed is
// marked stale until the first successful fetch supersedes it.
func (s *Store) LoadCached() {
	if s.cache == nil {
		return
	}
	var saved cached
	fetched, ok := s.cache.Get(cache.KeyLibrary, &saved)
	if !ok || len(saved.Entries) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = saved.Entries
	s.page = saved.Page
	s.stale = true
	s.lastFetched = fetched
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Entries:     cloneEntries(s.entries),
		Page:        s.page,
		Loading:     s.loading,
		Stale:       s.stale,
		LastFetched: s.lastFetched,
	}
	if s.lastError != nil {
		snap.LastError = fmt.Errorf("%w", s.lastError)
	}
	return snap
}

// FetchAll replaces the collection with one server page. On failure the
// collection is left exactly as it was before the call.
func (s *Store) FetchAll(ctx context.Context, page int) error {
	if err := s.gate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.loading = true
	s.lastError = nil
	s.mu.Unlock()

	result, err := s.client.ListReadingStatuses(ctx, page)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastError = err
		s.logger.Warn("library fetch failed", zap.Int("page", page), zap.Error(err))
		return err
	}

	s.entries = result.Results
	s.page = PageInfo{
		Current:     result.CurrentPage,
		Total:       result.TotalPages,
		Count:       result.Count,
		HasNext:     result.HasNext,
		HasPrevious: result.HasPrevious,
	}
	if s.page.Current == 0 {
		s.page.Current = 1
	}
	s.stale = false
	s.lastFetched = time.Now()
	s.persistLocked()
	return nil
}

// Add creates a reading status for a book and appends the server-returned
// canonical record. There is no optimistic placeholder: the server owns id
// assignment, so the collection changes only after the create succeeds.
func (s *Store) Add(ctx context.Context, bookID int64, status string) (api.ReadingStatus, error) {
	if err := s.gate(); err != nil {
		return api.ReadingStatus{}, err
	}

	created, err := s.client.CreateReadingStatus(ctx, api.CreateReadingStatusInput{
		BookID: bookID,
		Status: status,
	})
	if err != nil {
		s.setError(err)
		return api.ReadingStatus{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, created)
	s.page.Count++
	s.lastError = nil
	s.persistLocked()
	return created, nil
}

// SetRating optimistically rates an entry. Ratings at or below zero are
// clamped to 0.5, and rating a book implies Completed status; the entry and
// its denormalized book card fields change together and roll back together.
func (s *Store) SetRating(ctx context.Context, id int64, rating float64) error {
	clamped := ClampRating(rating)
	return s.mutate(ctx, id, func(entry *api.ReadingStatus) {
		entry.Rating = clamped
		entry.Status = api.StatusCompleted
		entry.Book.Rating = clamped
		entry.Book.Status = api.StatusCompleted
	}, func(ctx context.Context) (api.ReadingStatus, error) {
		return s.client.UpdateReadingStatus(ctx, id, api.ReadingStatusPatch{Rating: &clamped})
	})
}

// SetStatus optimistically moves an entry to another reading status.
func (s *Store) SetStatus(ctx context.Context, id int64, status string) error {
	return s.mutate(ctx, id, func(entry *api.ReadingStatus) {
		entry.Status = status
		entry.Book.Status = status
	}, func(ctx context.Context) (api.ReadingStatus, error) {
		return s.client.UpdateReadingStatus(ctx, id, api.ReadingStatusPatch{Status: &status})
	})
}

// Remove optimistically deletes an entry; the backend rejecting the delete
// restores the pre-mutation collection.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if err := s.gate(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return &api.Error{Kind: api.NotFound, Message: "book is not in the library"}
	}
	before := s.captureLocked()
	s.entries = append(s.entries[:idx:idx], s.entries[idx+1:]...)
	s.page.Count--
	s.seq[id]++
	token := s.seq[id]
	s.mu.Unlock()

	err := s.client.DeleteReadingStatus(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.seq[id] == token {
			s.restoreLocked(before)
			s.lastError = err
		}
		s.logger.Warn("remove rolled back", zap.Int64("id", id), zap.Error(err))
		return err
	}
	delete(s.seq, id)
	s.lastError = nil
	s.persistLocked()
	return nil
}

// ClearError drops the last surfaced error, typically after the UI has
// shown it.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = nil
}

// mutate runs one optimistic transaction: capture a memento, apply the
// local patch, issue the request, then reconcile with the canonical server
// record or restore the memento. Both outcomes are skipped when a newer
// mutation on the same entry has been applied in the meantime.
func (s *Store) mutate(ctx context.Context, id int64, apply func(*api.ReadingStatus), send func(context.Context) (api.ReadingStatus, error)) error {
	if err := s.gate(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return &api.Error{Kind: api.NotFound, Message: "book is not in the library"}
	}
	before := s.captureLocked()
	apply(&s.entries[idx])
	s.seq[id]++
	token := s.seq[id]
	s.mu.Unlock()

	updated, err := send(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.seq[id] == token {
			s.restoreLocked(before)
			s.lastError = err
		}
		s.logger.Warn("update rolled back", zap.Int64("id", id), zap.Error(err))
		return err
	}
	if s.seq[id] == token {
		if idx := s.indexLocked(id); idx >= 0 {
			s.entries[idx] = updated
		}
		s.lastError = nil
		s.persistLocked()
	}
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
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) captureLocked() memento {
	return memento{entries: cloneEntries(s.entries), page: s.page}
}

func (s *Store) restoreLocked(before memento) {
	s.entries = before.entries
	s.page = before.page
}

func (s *Store) persistLocked() {
	if s.cache == nil {
		return
	}
	err := s.cache.Put(cache.KeyLibrary, cached{Entries: s.entries, Page: s.page})
	if err != nil {
		s.logger.Warn("persist library failed", zap.Error(err))
	}
}

// ClampRating enforces the backend's rating floor: rating a book always
// yields at least half a star.
func ClampRating(rating float64) float64 {
	if rating <= 0 {
		return api.MinRating
	}
	return rating
}

func cloneEntries(entries []api.ReadingStatus) []api.ReadingStatus {
	if len(entries) == 0 {
		return nil
	}
	dup := make([]api.ReadingStatus, len(entries))
	copy(dup, entries)
	return dup
}
