package stubapi

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemStore is the default in-memory Store. Entities keep insertion order so
// repeated list requests paginate deterministically.
type MemStore struct {
	mu    sync.RWMutex
	order map[string][]string
	docs  map[string]map[string]map[string]any // resource -> id -> doc
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	s := &MemStore{
		order: make(map[string][]string),
		docs:  make(map[string]map[string]map[string]any),
	}
	for _, r := range []string{ResourceFoods, ResourceRestaurants, ResourceUsers} {
		s.docs[r] = make(map[string]map[string]any)
	}
	return s
}

func (s *MemStore) List(ctx context.Context, resource string, p ListParams) ([]map[string]any, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]map[string]any, 0)
	for _, id := range s.order[resource] {
		doc := s.docs[resource][id]
		if matchesFilters(doc, p) {
			matched = append(matched, copyDoc(doc))
		}
	}

	total := len(matched)
	start := (p.Page - 1) * p.PerPage
	if start >= total {
		return []map[string]any{}, total, nil
	}
	end := start + p.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *MemStore) Get(ctx context.Context, resource, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[resource][id]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	return copyDoc(doc), nil
}

func (s *MemStore) Create(ctx context.Context, resource string, doc map[string]any) (map[string]any, error) {
	stored := copyDoc(doc)
	id, _ := stored["id"].(string)
	if id == "" {
		id = uuid.New().String()
		stored["id"] = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[resource][id]; !exists {
		s.order[resource] = append(s.order[resource], id)
	}
	s.docs[resource][id] = stored
	return copyDoc(stored), nil
}

func (s *MemStore) Update(ctx context.Context, resource, id string, changes map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[resource][id]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	for k, v := range changes {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
	return copyDoc(doc), nil
}

func (s *MemStore) Delete(ctx context.Context, resource, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[resource][id]; !ok {
		return ErrNoSuchEntity
	}
	delete(s.docs[resource], id)
	for i, oid := range s.order[resource] {
		if oid == id {
			s.order[resource] = append(s.order[resource][:i], s.order[resource][i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemStore) FindUserByEmail(ctx context.Context, email string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order[ResourceUsers] {
		doc := s.docs[ResourceUsers][id]
		if e, _ := doc["email"].(string); strings.EqualFold(e, email) {
			return copyDoc(doc), nil
		}
	}
	return nil, ErrNoSuchEntity
}

func matchesFilters(doc map[string]any, p ListParams) bool {
	if p.Search != "" {
		name, _ := doc["name"].(string)
		if !strings.Contains(strings.ToLower(name), strings.ToLower(p.Search)) {
			return false
		}
	}
	if p.Status != "" {
		if status, _ := doc["status"].(string); status != p.Status {
			return false
		}
	}
	if p.Category != "" {
		if cat, _ := doc["category"].(string); cat != p.Category {
			return false
		}
	}
	return true
}

func copyDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Seed loads a deterministic development dataset: a handful of restaurants
// with menus, plus an admin account (admin@savor.dev / admin, dev only).
func (s *MemStore) Seed() {
	ctx := context.Background()

	restaurants := []map[string]any{
		{"id": "r-1", "name": "Bamboo Garden", "address": "12 Willow Ln", "status": "active", "category": "asian", "cuisines": []any{"chinese", "thai"}, "rating": 4.5},
		{"id": "r-2", "name": "Trattoria Sole", "address": "3 Via Roma", "status": "active", "category": "italian", "cuisines": []any{"italian"}, "rating": 4.2},
		{"id": "r-3", "name": "El Fuego", "address": "77 Mission St", "status": "closed", "category": "mexican", "cuisines": []any{"mexican"}, "rating": 3.9},
	}
	foods := []map[string]any{
		{"id": "f-1", "name": "Pad Thai", "price": 11.5, "category": "noodles", "status": "active", "restaurant_id": "r-1", "tags": []any{"spicy", "peanut"}},
		{"id": "f-2", "name": "Dumpling Basket", "price": 8.0, "category": "starters", "status": "active", "restaurant_id": "r-1", "tags": []any{"steamed"}},
		{"id": "f-3", "name": "Margherita", "price": 12.0, "category": "pizza", "status": "active", "restaurant_id": "r-2", "tags": []any{"vegetarian"}},
		{"id": "f-4", "name": "Carbonara", "price": 13.5, "category": "pasta", "status": "active", "restaurant_id": "r-2", "tags": []any{}},
		{"id": "f-5", "name": "Tacos al Pastor", "price": 9.0, "category": "tacos", "status": "inactive", "restaurant_id": "r-3", "tags": []any{"pork", "spicy"}},
	}
	users := []map[string]any{
		{"id": "u-1", "name": "Dev Admin", "email": "admin@savor.dev", "password": "admin", "role": "admin", "status": "active"},
		{"id": "u-2", "name": "Casual Eater", "email": "eater@savor.dev", "password": "eater", "role": "user", "status": "active"},
	}

	for _, doc := range restaurants {
		s.Create(ctx, ResourceRestaurants, doc)
	}
	for _, doc := range foods {
		s.Create(ctx, ResourceFoods, doc)
	}
	for _, doc := range users {
		s.Create(ctx, ResourceUsers, doc)
	}
}
