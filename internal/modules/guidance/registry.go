// README: Concurrent route store with one writer per route at a time.
package guidance

import (
	"sync"

	"livenav/internal/types"
)

type entry struct {
	mu    sync.Mutex
	route *Route
	// dead is set on removal so holders of a stale entry pointer cannot write.
	dead bool
}

// Registry maps route ids to routes. The map lock only guards structure;
// every entry has its own lock so updates to different routes never contend.
type Registry struct {
	mu     sync.RWMutex
	routes map[types.ID]*entry
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[types.ID]*entry)}
}

// Create stores route, assigning a random id when route.ID is empty.
func (r *Registry) Create(route *Route) (types.ID, error) {
	if route.ID == "" {
		route.ID = types.NewID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[route.ID]; ok {
		return "", &ValidationError{Field: "route_id", Reason: "already exists"}
	}
	r.routes[route.ID] = &entry{route: route}
	return route.ID, nil
}

func (r *Registry) lookup(id types.ID) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.routes[id]
	return e, ok
}

// Get returns a copy of the route.
func (r *Registry) Get(id types.ID) (*Route, error) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return nil, &NotFoundError{ID: id}
	}
	cp := *e.route
	return &cp, nil
}

// Update runs fn on the live route while holding that route's lock.
func (r *Registry) Update(id types.ID, fn func(*Route) error) error {
	e, ok := r.lookup(id)
	if !ok {
		return &NotFoundError{ID: id}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return &NotFoundError{ID: id}
	}
	return fn(e.route)
}

func (r *Registry) Remove(id types.ID) error {
	r.mu.Lock()
	e, ok := r.routes[id]
	delete(r.routes, id)
	r.mu.Unlock()
	if !ok {
		return &NotFoundError{ID: id}
	}
	e.mu.Lock()
	e.dead = true
	e.mu.Unlock()
	return nil
}

// Clear removes every route and returns how many were stored.
func (r *Registry) Clear() int {
	r.mu.Lock()
	old := r.routes
	r.routes = make(map[types.ID]*entry)
	r.mu.Unlock()

	for _, e := range old {
		e.mu.Lock()
		e.dead = true
		e.mu.Unlock()
	}
	return len(old)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}
