package execution

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("execution not found")

type Entry struct {
	ID        string
	Cell      *Cell
	CreatedAt time.Time
}

// Registry keeps cells addressable by id. When full, creating a cell evicts
// the oldest entry whose latest outcome is terminal; running cells are never
// evicted.
type Registry struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]Entry
	order      []string
	now        func() time.Time
}

func NewRegistry(maxEntries int) *Registry {
	return &Registry{
		maxEntries: maxEntries,
		entries:    map[string]Entry{},
		now:        time.Now,
	}
}

func (r *Registry) Create() Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxEntries > 0 && len(r.entries) >= r.maxEntries {
		r.evictLocked()
	}
	entry := Entry{ID: uuid.NewString(), Cell: NewCell(), CreatedAt: r.now().UTC()}
	r.entries[entry.ID] = entry
	r.order = append(r.order, entry.ID)
	return entry
}

func (r *Registry) Get(id string) (Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Entry{}, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return ErrNotFound
	}
	r.removeLocked(id)
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) evictLocked() {
	for _, id := range r.order {
		if r.entries[id].Cell.Snapshot().Status().Terminal() {
			r.removeLocked(id)
			return
		}
	}
}

func (r *Registry) removeLocked(id string) {
	delete(r.entries, id)
	for i, candidate := range r.order {
		if candidate == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
