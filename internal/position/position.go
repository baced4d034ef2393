// Package position keeps sibling groups densely ordered.
//
// A sibling group is every entity sharing one parent (boards of a project,
// columns of a board, tasks of a column). Positions in a group are always
// exactly 0..n-1. Manager methods must run inside one storage transaction;
// Lock additionally serializes writers of the same group in this process.
package position

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"workboard/internal/apperr"
	"workboard/internal/repository"
)

// Group kinds used to build lock keys.
const (
	KindProjectBoards = "project-boards"
	KindBoardColumns  = "board-columns"
	KindColumnTasks   = "column-tasks"
)

// Key names the sibling group of kind under parentID.
func Key(kind, parentID string) string {
	return kind + ":" + parentID
}

// Manager applies position changes to sibling groups.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*groupLock
}

type groupLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager returns a Manager with no held locks.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*groupLock)}
}

// Lock acquires the in-process locks of every given group and returns the
// release function. Keys are locked in sorted order so two moves between
// the same pair of groups cannot deadlock.
func (m *Manager) Lock(keys ...string) func() {
	uniq := make(map[string]struct{}, len(keys))
	ordered := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, seen := uniq[k]; seen {
			continue
		}
		uniq[k] = struct{}{}
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	held := make([]*groupLock, 0, len(ordered))
	for _, k := range ordered {
		l := m.acquire(k)
		l.mu.Lock()
		held = append(held, l)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				m.release(ordered[i])
			}
		})
	}
}

func (m *Manager) acquire(key string) *groupLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &groupLock{}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Append returns the position after the last sibling under parentID.
func (m *Manager) Append(ctx context.Context, s repository.Siblings, parentID string) (int, error) {
	last, err := s.GetMaxPosition(ctx, parentID)
	if err != nil {
		return 0, apperr.Storage("read max position", err)
	}
	return last + 1, nil
}

// Insert reserves a position for a new sibling. With a nil target the
// entity is appended; otherwise every sibling at or after target moves up
// by one.
func (m *Manager) Insert(ctx context.Context, s repository.Siblings, parentID string, target *int) (int, error) {
	if target == nil {
		return m.Append(ctx, s, parentID)
	}

	count, err := s.CountByParent(ctx, parentID)
	if err != nil {
		return 0, apperr.Storage("count siblings", err)
	}
	if err := checkRange(*target, count); err != nil {
		return 0, err
	}
	if *target < count {
		if err := s.ShiftPositions(ctx, parentID, *target, 1); err != nil {
			return 0, apperr.Storage("shift siblings", err)
		}
	}
	return *target, nil
}

// Move describes relocating one entity, possibly to another parent.
type Move struct {
	ID           string
	FromParent   string
	FromPosition int
	ToParent     string
	ToPosition   int
}

// SameGroup reports whether the move stays inside one sibling group.
func (mv Move) SameGroup() bool {
	return mv.FromParent == mv.ToParent
}

// Move removes the entity from its old group, opens a slot in the new group
// and stores the new parent and position.
func (m *Manager) Move(ctx context.Context, s repository.Siblings, mv Move) error {
	count, err := s.CountByParent(ctx, mv.ToParent)
	if err != nil {
		return apperr.Storage("count siblings", err)
	}
	if mv.SameGroup() {
		count--
	}
	if err := checkRange(mv.ToPosition, count); err != nil {
		return err
	}
	if mv.SameGroup() && mv.FromPosition == mv.ToPosition {
		return nil
	}

	steps := []struct {
		op  string
		run func() error
	}{
		{"detach entity", func() error { return s.UpdatePosition(ctx, mv.ID, mv.FromParent, -1) }},
		{"close gap", func() error { return s.ShiftPositions(ctx, mv.FromParent, mv.FromPosition+1, -1) }},
		{"open slot", func() error { return s.ShiftPositions(ctx, mv.ToParent, mv.ToPosition, 1) }},
		{"store position", func() error { return s.UpdatePosition(ctx, mv.ID, mv.ToParent, mv.ToPosition) }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return apperr.Storage(step.op, err)
		}
		if err := step.run(); err != nil {
			return apperr.Storage(step.op, err)
		}
	}
	return nil
}

// Remove closes the gap left by a deleted sibling at position.
func (m *Manager) Remove(ctx context.Context, s repository.Siblings, parentID string, position int) error {
	if err := s.ShiftPositions(ctx, parentID, position+1, -1); err != nil {
		return apperr.Storage("close gap", err)
	}
	return nil
}

func checkRange(target, count int) error {
	if target < 0 || target > count {
		return apperr.Validation(apperr.Field{
			Field:   "position",
			Message: fmt.Sprintf("must be between 0 and %d", count),
			Code:    "OUT_OF_RANGE",
		})
	}
	return nil
}

// Dense reports whether positions are exactly 0..len-1 in any order.
func Dense(positions []int) bool {
	seen := make([]bool, len(positions))
	for _, p := range positions {
		if p < 0 || p >= len(positions) || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}
