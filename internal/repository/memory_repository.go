package repository

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/bag-service/internal/domain"
)

type memorySession struct {
	bag      map[string]domain.Record
	purchase *domain.Purchase
}

// MemoryRepository keeps sessions in process memory. Bags are stored in their
// persisted shape so callers never share a map with the store.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*memorySession),
	}
}

func (s *MemoryRepository) Load(_ context.Context, sessionID string) (*domain.Bag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.NewBag(), nil
	}
	return domain.BagFromRecords(sess.bag)
}

func (s *MemoryRepository) Save(_ context.Context, sessionID string, bag *domain.Bag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session(sessionID).bag = bag.Records()
	return nil
}

func (s *MemoryRepository) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		sess.bag = nil
	}
	return nil
}

func (s *MemoryRepository) Purchase(_ context.Context, sessionID string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.purchase == nil {
		return nil, nil
	}
	p := *sess.purchase
	return &p, nil
}

func (s *MemoryRepository) SetPurchase(_ context.Context, sessionID string, purchase domain.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session(sessionID).purchase = &purchase
	return nil
}

// session must be called with mu held for writing.
func (s *MemoryRepository) session(sessionID string) *memorySession {
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}
	return sess
}
