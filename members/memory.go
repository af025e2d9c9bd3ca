package members

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// InMemoryStore is a process-local Store. Safe for concurrent use.
type InMemoryStore struct {
	mu      sync.RWMutex
	members map[string]Member
}

// NewInMemoryStore creates a store holding rows. With no rows it is seeded
// with SeedMembers.
func NewInMemoryStore(rows ...Member) *InMemoryStore {
	if len(rows) == 0 {
		rows = SeedMembers()
	}

	s := &InMemoryStore{members: make(map[string]Member, len(rows))}
	for _, m := range rows {
		s.members[m.ID] = m
	}

	return s
}

// Put inserts or replaces a member.
func (s *InMemoryStore) Put(m Member) error {
	if m.ID == "" {
		return fmt.Errorf("member id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m

	return nil
}

// FindByName implements Store.
func (s *InMemoryStore) FindByName(ctx context.Context, name string) ([]Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(name))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Member
	for _, m := range s.members {
		if strings.Contains(strings.ToLower(m.Name), needle) {
			out = append(out, m)
		}
	}

	sortByID(out)

	return out, nil
}

// FindByID implements Store.
func (s *InMemoryStore) FindByID(ctx context.Context, id string) (Member, error) {
	if err := ctx.Err(); err != nil {
		return Member{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return Member{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return m, nil
}

// List implements Store.
func (s *InMemoryStore) List(ctx context.Context) ([]Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}

	sortByID(out)

	return out, nil
}

func sortByID(ms []Member) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}
