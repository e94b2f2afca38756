package subscription

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/subsync/pkg/logger"
)

// SecondaryIndex caches gateway id to user mappings outside the primary store.
// Lookups return ErrRecordNotFound on a miss.
type SecondaryIndex interface {
	Remember(ctx context.Context, rec *Record) error
	LookupCustomer(ctx context.Context, customerID string) (int64, error)
	LookupSubscription(ctx context.Context, subscriptionID string) (int64, error)
	Forget(ctx context.Context, rec *Record) error
}

// IndexedStore wraps a Store with a SecondaryIndex. Writes go to the store
// first, then to the index. Find* try the index and confirm the hit with a
// primary key read: the hit is trusted when the user's record carries the same
// gateway id or none at all (the primary store has not caught up yet), and
// rejected when the record holds a different id or is gone. Misses and
// rejected hits fall back to the store's own lookup.
type IndexedStore struct {
	Store
	index SecondaryIndex
	log   *slog.Logger
}

func NewIndexedStore(store Store, index SecondaryIndex, log *slog.Logger) *IndexedStore {
	if store == nil {
		panic("subscription: store is required")
	}
	if index == nil {
		panic("subscription: secondary index is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &IndexedStore{Store: store, index: index, log: log.With(logger.Component("secondary_index"))}
}

func (s *IndexedStore) Upsert(ctx context.Context, userID int64, p Patch) (*Record, error) {
	rec, err := s.Store.Upsert(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	if p.clearsGatewayID() {
		// Drop mappings the record no longer carries before remembering the rest.
		s.forget(ctx, rec)
	}
	s.remember(ctx, rec)
	return rec, nil
}

func (s *IndexedStore) CreateIfAbsent(ctx context.Context, userID int64, p Patch) (*Record, bool, error) {
	rec, created, err := s.Store.CreateIfAbsent(ctx, userID, p)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.remember(ctx, rec)
	}
	return rec, created, nil
}

// The primary write already committed, so an index failure is only logged.
func (s *IndexedStore) remember(ctx context.Context, rec *Record) {
	if err := s.index.Remember(ctx, rec); err != nil {
		s.log.WarnContext(ctx, "failed to update secondary index", logger.UserID(rec.UserID), logger.Error(err))
	}
}

func (s *IndexedStore) forget(ctx context.Context, rec *Record) {
	if err := s.index.Forget(ctx, rec); err != nil {
		s.log.WarnContext(ctx, "failed to clear secondary index", logger.UserID(rec.UserID), logger.Error(err))
	}
}

func (s *IndexedStore) FindByCustomerID(ctx context.Context, customerID string) (int64, error) {
	return s.find(ctx, customerID, s.index.LookupCustomer, s.Store.FindByCustomerID,
		func(r *Record) string { return r.CustomerID })
}

func (s *IndexedStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (int64, error) {
	return s.find(ctx, subscriptionID, s.index.LookupSubscription, s.Store.FindBySubscriptionID,
		func(r *Record) string { return r.SubscriptionID })
}

type lookupFunc func(context.Context, string) (int64, error)

func (s *IndexedStore) find(ctx context.Context, id string, cached, primary lookupFunc, column func(*Record) string) (int64, error) {
	if id == "" {
		return 0, ErrRecordNotFound
	}

	userID, err := cached(ctx, id)
	switch {
	case err == nil:
		rec, err := s.Store.Get(ctx, userID)
		if err == nil {
			if held := column(rec); held == id || held == "" {
				return userID, nil
			}
		}
		if err != nil && !errors.Is(err, ErrRecordNotFound) {
			return 0, err
		}
	case !errors.Is(err, ErrRecordNotFound):
		s.log.WarnContext(ctx, "secondary index lookup failed", logger.Error(err))
	}

	userID, err = primary(ctx, id)
	if err != nil {
		return 0, err
	}
	if rec, err := s.Store.Get(ctx, userID); err == nil {
		s.remember(ctx, rec)
	}
	return userID, nil
}

func (s *IndexedStore) Delete(ctx context.Context, userID int64) error {
	rec, err := s.Store.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return err
	}
	if err := s.Store.Delete(ctx, userID); err != nil {
		return err
	}
	if rec != nil {
		s.forget(ctx, rec)
	}
	return nil
}

// MemoryIndex is an in-process SecondaryIndex.
type MemoryIndex struct {
	mu            sync.RWMutex
	customers     map[string]int64
	subscriptions map[string]int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		customers:     make(map[string]int64),
		subscriptions: make(map[string]int64),
	}
}

func (m *MemoryIndex) Remember(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.CustomerID != "" {
		m.customers[rec.CustomerID] = rec.UserID
	}
	if rec.SubscriptionID != "" {
		m.subscriptions[rec.SubscriptionID] = rec.UserID
	}
	return nil
}

func (m *MemoryIndex) LookupCustomer(_ context.Context, customerID string) (int64, error) {
	return m.lookup(m.customers, customerID)
}

func (m *MemoryIndex) LookupSubscription(_ context.Context, subscriptionID string) (int64, error) {
	return m.lookup(m.subscriptions, subscriptionID)
}

func (m *MemoryIndex) lookup(idx map[string]int64, id string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if userID, ok := idx[id]; ok {
		return userID, nil
	}
	return 0, ErrRecordNotFound
}

func (m *MemoryIndex) Forget(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, userID := range m.customers {
		if userID == rec.UserID {
			delete(m.customers, id)
		}
	}
	for id, userID := range m.subscriptions {
		if userID == rec.UserID {
			delete(m.subscriptions, id)
		}
	}
	return nil
}
