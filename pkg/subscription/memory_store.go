package subscription

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded Store for tests and single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[int64]*Record
	defaults Defaults
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(defaults Defaults) *MemoryStore {
	return &MemoryStore{
		records:  make(map[int64]*Record),
		defaults: defaults,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source and returns the store.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Upsert(_ context.Context, userID int64, p Patch) (*Record, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[userID]
	if !ok {
		r := s.defaults.record(userID)
		r.CreatedAt = now
		rec = &r
		s.records[userID] = rec
	}
	p.applyTo(rec)
	rec.UpdatedAt = now
	return rec.Clone(), nil
}

func (s *MemoryStore) CreateIfAbsent(_ context.Context, userID int64, p Patch) (*Record, bool, error) {
	if err := validUserID(userID); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[userID]; ok {
		return rec.Clone(), false, nil
	}

	now := s.now()
	rec := s.defaults.record(userID)
	p.applyTo(&rec)
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.records[userID] = &rec
	return rec.Clone(), true, nil
}

func (s *MemoryStore) FindByCustomerID(_ context.Context, customerID string) (int64, error) {
	return s.find(func(r *Record) bool { return r.CustomerID == customerID }, customerID)
}

func (s *MemoryStore) FindBySubscriptionID(_ context.Context, subscriptionID string) (int64, error) {
	return s.find(func(r *Record) bool { return r.SubscriptionID == subscriptionID }, subscriptionID)
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (int64, error) {
	return s.find(func(r *Record) bool { return r.Email == email }, email)
}

// find returns the most recently updated match, mirroring the SQL store's ordering.
func (s *MemoryStore) find(match func(*Record) bool, id string) (int64, error) {
	if id == "" {
		return 0, ErrRecordNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Record
	for _, rec := range s.records {
		if !match(rec) {
			continue
		}
		if found == nil || rec.UpdatedAt.After(found.UpdatedAt) ||
			(rec.UpdatedAt.Equal(found.UpdatedAt) && rec.UserID > found.UserID) {
			found = rec
		}
	}
	if found == nil {
		return 0, ErrRecordNotFound
	}
	return found.UserID, nil
}

func (s *MemoryStore) ResetTrial(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return ErrRecordNotFound
	}
	rec.TrialUsed = false
	rec.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
