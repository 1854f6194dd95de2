package catalogue

import (
	"errors"
	"sync"
	"time"

	"animeranker/pkg/models"
)

var ErrNotFound = errors.New("anime not found")

// Cache keeps every anime observed from the upstream catalogue in memory,
// keyed by a synthetic sequential id. It is safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	nextID int
	byID   map[int]models.Anime
	byMal  map[int]int // mal id -> synthetic id
	order  []int
	now    func() time.Time
}

func New() *Cache {
	return &Cache{
		nextID: 1,
		byID:   make(map[int]models.Anime),
		byMal:  make(map[int]int),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Upsert stores a when its MalID has not been seen yet and returns the
// stored entry. An existing entry is returned unchanged; use Update to merge.
func (c *Cache) Upsert(a models.Anime) models.Anime {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.byMal[a.MalID]; ok {
		return clone(c.byID[id])
	}

	a = clone(a)
	if a.Genres == nil {
		a.Genres = []string{}
	}
	a.ID = c.nextID
	a.CreatedAt = c.now()
	c.nextID++

	c.byID[a.ID] = a
	c.byMal[a.MalID] = a.ID
	c.order = append(c.order, a.ID)
	return clone(a)
}

// UpsertAll upserts every entry and returns the stored versions in input order.
func (c *Cache) UpsertAll(list []models.Anime) []models.Anime {
	out := make([]models.Anime, 0, len(list))
	for _, a := range list {
		out = append(out, c.Upsert(a))
	}
	return out
}

func (c *Cache) Update(id int, patch models.AnimePatch) (models.Anime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.byID[id]
	if !ok {
		return models.Anime{}, ErrNotFound
	}
	updated := patch.Apply(existing)
	c.byID[id] = updated
	return clone(updated), nil
}

func (c *Cache) GetByID(id int) (models.Anime, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.byID[id]
	if !ok {
		return models.Anime{}, false
	}
	return clone(a), true
}

func (c *Cache) GetByMalID(malID int) (models.Anime, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byMal[malID]
	if !ok {
		return models.Anime{}, false
	}
	return clone(c.byID[id]), true
}

// List returns all entries in insertion order.
func (c *Cache) List() []models.Anime {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Anime, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, clone(c.byID[id]))
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// clone copies the genre slice so callers cannot mutate cached state.
// Pointer fields are replaced wholesale on update, never written through.
func clone(a models.Anime) models.Anime {
	if a.Genres != nil {
		a.Genres = append([]string{}, a.Genres...)
	}
	return a
}
