package tree_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/taskgrove/taskgrove/internal/domain"
)

// memStore is an in-memory TaskStore with real transaction semantics: InTx
// snapshots the table and restores it when the callback fails, so rollback
// behavior is observable in tests.
type memStore struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]*domain.Task
	calls  map[string]int
	failAt map[string]int // method -> 1-based call number that fails
}

var errInjected = errors.New("injected storage error")

func newMemStore() *memStore {
	return &memStore{
		rows:   make(map[uuid.UUID]*domain.Task),
		calls:  make(map[string]int),
		failAt: make(map[string]int),
	}
}

func (s *memStore) Tasks() domain.TaskRepository { return &memRepo{s: s} }

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tasks domain.TaskRepository) error) error {
	s.mu.Lock()
	snapshot := make(map[uuid.UUID]*domain.Task, len(s.rows))
	for id, t := range s.rows {
		cp := *t
		snapshot[id] = &cp
	}
	s.mu.Unlock()

	err := fn(ctx, &memRepo{s: s})

	s.mu.Lock()
	if err != nil {
		s.rows = snapshot
	}
	s.mu.Unlock()

	return err
}

// get returns a copy so mutations only land via explicit updates.
func (s *memStore) get(ownerID, id uuid.UUID) (*domain.Task, error) {
	t, ok := s.rows[id]
	if !ok || t.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// task fetches the live row for direct assertions outside transactions.
func (s *memStore) task(id uuid.UUID) *domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type memRepo struct {
	s *memStore
}

func (r *memRepo) fail(method string) error {
	r.s.calls[method]++
	if n, ok := r.s.failAt[method]; ok && r.s.calls[method] == n {
		return fmt.Errorf("%s: %w", method, errInjected)
	}
	return nil
}

func (r *memRepo) Create(_ context.Context, t *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.fail("Create"); err != nil {
		return err
	}
	cp := *t
	r.s.rows[t.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, ownerID, id uuid.UUID) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.get(ownerID, id)
}

func (r *memRepo) GetForUpdate(_ context.Context, ownerID, id uuid.UUID) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.fail("GetForUpdate"); err != nil {
		return nil, err
	}
	return r.s.get(ownerID, id)
}

func (r *memRepo) ListRoots(_ context.Context, ownerID uuid.UUID) ([]*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Task
	for _, t := range r.s.rows {
		if t.OwnerID == ownerID && t.ParentTaskID == nil {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortSiblings(out)
	return out, nil
}

func (r *memRepo) ListChildren(_ context.Context, ownerID, parentID uuid.UUID) ([]*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.fail("ListChildren"); err != nil {
		return nil, err
	}
	var out []*domain.Task
	for _, t := range r.s.rows {
		if t.OwnerID == ownerID && t.ParentTaskID != nil && *t.ParentTaskID == parentID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortSiblings(out)
	return out, nil
}

func (r *memRepo) ListDescendants(_ context.Context, ownerID uuid.UUID, pathPrefix string, maxLevel int) ([]*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Task
	for _, t := range r.s.rows {
		if t.OwnerID == ownerID && strings.HasPrefix(t.HierarchyPath, pathPrefix) && t.HierarchyLevel <= maxLevel {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HierarchyLevel != out[j].HierarchyLevel {
			return out[i].HierarchyLevel < out[j].HierarchyLevel
		}
		return out[i].SubtaskOrder < out[j].SubtaskOrder
	})
	return out, nil
}

func (r *memRepo) MaxSiblingOrder(_ context.Context, ownerID uuid.UUID, parentID *uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	max := -1
	for _, t := range r.s.rows {
		if t.OwnerID != ownerID {
			continue
		}
		sameParent := (t.ParentTaskID == nil && parentID == nil) ||
			(t.ParentTaskID != nil && parentID != nil && *t.ParentTaskID == *parentID)
		if sameParent && t.SubtaskOrder > max {
			max = t.SubtaskOrder
		}
	}
	return max, nil
}

func (r *memRepo) Update(_ context.Context, t *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, err := r.s.get(t.OwnerID, t.ID)
	if err != nil {
		return err
	}
	if cur.Version != t.Version {
		return domain.ErrConflict
	}
	t.Version++
	cp := *t
	r.s.rows[t.ID] = &cp
	return nil
}

func (r *memRepo) UpdateHierarchy(_ context.Context, t *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.fail("UpdateHierarchy"); err != nil {
		return err
	}
	cur, err := r.s.get(t.OwnerID, t.ID)
	if err != nil {
		return err
	}
	if cur.Version != t.Version {
		return domain.ErrConflict
	}
	t.Version++
	cur.ParentTaskID = t.ParentTaskID
	cur.HierarchyLevel = t.HierarchyLevel
	cur.HierarchyPath = t.HierarchyPath
	cur.SubtaskOrder = t.SubtaskOrder
	cur.Version = t.Version
	r.s.rows[t.ID] = cur
	return nil
}

func (r *memRepo) UpdateAggregates(_ context.Context, t *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, err := r.s.get(t.OwnerID, t.ID)
	if err != nil {
		return err
	}
	cur.SubtaskCount = t.SubtaskCount
	cur.CompletedSubtaskCount = t.CompletedSubtaskCount
	cur.Progress = t.Progress
	cur.Status = t.Status
	cur.CompletedAt = t.CompletedAt
	r.s.rows[t.ID] = cur
	return nil
}

func (r *memRepo) UpdateOrder(_ context.Context, ownerID, id uuid.UUID, order int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.fail("UpdateOrder"); err != nil {
		return err
	}
	cur, err := r.s.get(ownerID, id)
	if err != nil {
		return err
	}
	cur.SubtaskOrder = order
	cur.Version++
	r.s.rows[id] = cur
	return nil
}

func (r *memRepo) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := r.s.get(ownerID, id); err != nil {
		return err
	}
	delete(r.s.rows, id)
	return nil
}

func (r *memRepo) DeleteSubtree(_ context.Context, ownerID, id uuid.UUID, pathPrefix string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var removed int64
	for rid, t := range r.s.rows {
		if t.OwnerID != ownerID {
			continue
		}
		if rid == id || strings.HasPrefix(t.HierarchyPath, pathPrefix) {
			delete(r.s.rows, rid)
			removed++
		}
	}
	if removed == 0 {
		return 0, domain.ErrNotFound
	}
	return removed, nil
}

func sortSiblings(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].SubtaskOrder != tasks[j].SubtaskOrder {
			return tasks[i].SubtaskOrder < tasks[j].SubtaskOrder
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
