package ratings

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"animeranker/pkg/models"
)

type pairKey struct {
	animeID int
	userID  string
}

// MemoryStore keeps ratings in-process for the lifetime of the server.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]models.Rating
	byPair map[pairKey]string
	order  []string
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]models.Rating),
		byPair: make(map[pairKey]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]models.Rating, error) {
	userID = normalizeUser(userID)
	return s.filter(func(r models.Rating) bool { return r.UserID == userID }), nil
}

func (s *MemoryStore) ListBySubject(_ context.Context, animeID int) ([]models.Rating, error) {
	return s.filter(func(r models.Rating) bool { return r.AnimeID == animeID }), nil
}

func (s *MemoryStore) Get(_ context.Context, animeID int, userID string) (*models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[pairKey{animeID, normalizeUser(userID)}]
	if !ok {
		return nil, nil
	}
	r := s.byID[id]
	return &r, nil
}

func (s *MemoryStore) Create(_ context.Context, animeID int, userID string, value int) (*models.Rating, error) {
	if !models.ValidRating(value) {
		return nil, ErrInvalidValue
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{animeID, normalizeUser(userID)}
	if _, exists := s.byPair[key]; exists {
		return nil, ErrDuplicate
	}
	r := s.insertLocked(key, value)
	return &r, nil
}

func (s *MemoryStore) Update(_ context.Context, animeID int, userID string, value int) (*models.Rating, error) {
	if !models.ValidRating(value) {
		return nil, ErrInvalidValue
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPair[pairKey{animeID, normalizeUser(userID)}]
	if !ok {
		return nil, ErrNotFound
	}
	r := s.updateLocked(id, value)
	return &r, nil
}

func (s *MemoryStore) Upsert(_ context.Context, animeID int, userID string, value int) (*models.Rating, bool, error) {
	if !models.ValidRating(value) {
		return nil, false, ErrInvalidValue
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{animeID, normalizeUser(userID)}
	if id, ok := s.byPair[key]; ok {
		r := s.updateLocked(id, value)
		return &r, false, nil
	}
	r := s.insertLocked(key, value)
	return &r, true, nil
}

func (s *MemoryStore) insertLocked(key pairKey, value int) models.Rating {
	now := s.now()
	r := models.Rating{
		ID:        uuid.NewString(),
		AnimeID:   key.animeID,
		UserID:    key.userID,
		Rating:    value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[r.ID] = r
	s.byPair[key] = r.ID
	s.order = append(s.order, r.ID)
	return r
}

func (s *MemoryStore) updateLocked(id string, value int) models.Rating {
	r := s.byID[id]
	r.Rating = value
	r.UpdatedAt = s.now()
	s.byID[id] = r
	return r
}

func (s *MemoryStore) filter(keep func(models.Rating) bool) []models.Rating {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Rating, 0)
	for _, id := range s.order {
		if r := s.byID[id]; keep(r) {
			out = append(out, r)
		}
	}
	return out
}
