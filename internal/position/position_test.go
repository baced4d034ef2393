package position

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workboard/internal/apperr"
)

type slot struct {
	parent string
	pos    int
}

// fakeSiblings is an in-memory sibling store.
type fakeSiblings struct {
	items   map[string]slot
	failOn  string
	failErr error
}

func newFake() *fakeSiblings {
	return &fakeSiblings{items: make(map[string]slot)}
}

func (f *fakeSiblings) GetMaxPosition(_ context.Context, parentID string) (int, error) {
	last := -1
	for _, s := range f.items {
		if s.parent == parentID && s.pos > last {
			last = s.pos
		}
	}
	return last, nil
}

func (f *fakeSiblings) CountByParent(_ context.Context, parentID string) (int, error) {
	n := 0
	for _, s := range f.items {
		if s.parent == parentID {
			n++
		}
	}
	return n, nil
}

func (f *fakeSiblings) ShiftPositions(_ context.Context, parentID string, from, delta int) error {
	if f.failOn == "shift" {
		return f.failErr
	}
	for id, s := range f.items {
		if s.parent == parentID && s.pos >= from {
			s.pos += delta
			f.items[id] = s
		}
	}
	return nil
}

func (f *fakeSiblings) UpdatePosition(_ context.Context, id, parentID string, position int) error {
	f.items[id] = slot{parent: parentID, pos: position}
	return nil
}

func (f *fakeSiblings) order(parent string) []string {
	type kv struct {
		id  string
		pos int
	}
	var list []kv
	for id, s := range f.items {
		if s.parent == parent {
			list = append(list, kv{id, s.pos})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].pos < list[j].pos })
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.id
	}
	return out
}

func (f *fakeSiblings) positions(parent string) []int {
	var out []int
	for _, s := range f.items {
		if s.parent == parent {
			out = append(out, s.pos)
		}
	}
	return out
}

func (f *fakeSiblings) add(t *testing.T, m *Manager, parent, id string, target *int) {
	t.Helper()
	pos, err := m.Insert(context.Background(), f, parent, target)
	require.NoError(t, err)
	f.items[id] = slot{parent: parent, pos: pos}
}

func intp(v int) *int { return &v }

func TestInsert(t *testing.T) {
	m := NewManager()
	f := newFake()

	f.add(t, m, "p", "a", nil)
	f.add(t, m, "p", "b", nil)
	f.add(t, m, "p", "c", intp(0))
	f.add(t, m, "p", "d", intp(3))

	assert.Equal(t, []string{"c", "a", "b", "d"}, f.order("p"))
	assert.True(t, Dense(f.positions("p")))

	_, err := m.Insert(context.Background(), f, "p", intp(5))
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestMoveWithinGroup(t *testing.T) {
	m := NewManager()
	f := newFake()
	for _, id := range []string{"b1", "b2"} {
		f.add(t, m, "p", id, nil)
	}

	err := m.Move(context.Background(), f, Move{ID: "b1", FromParent: "p", FromPosition: 0, ToParent: "p", ToPosition: 1})
	require.NoError(t, err)

	assert.Equal(t, slot{"p", 1}, f.items["b1"])
	assert.Equal(t, slot{"p", 0}, f.items["b2"])
}

func TestMoveAcrossGroups(t *testing.T) {
	m := NewManager()
	f := newFake()
	for _, id := range []string{"a", "b", "c"} {
		f.add(t, m, "col1", id, nil)
	}
	for _, id := range []string{"x", "y"} {
		f.add(t, m, "col2", id, nil)
	}

	err := m.Move(context.Background(), f, Move{ID: "b", FromParent: "col1", FromPosition: 1, ToParent: "col2", ToPosition: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, f.order("col1"))
	assert.Equal(t, []string{"x", "b", "y"}, f.order("col2"))
	assert.True(t, Dense(f.positions("col1")))
	assert.True(t, Dense(f.positions("col2")))

	// appending at the end of the target group is allowed
	err = m.Move(context.Background(), f, Move{ID: "a", FromParent: "col1", FromPosition: 0, ToParent: "col2", ToPosition: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "b", "y", "a"}, f.order("col2"))
}

func TestMoveOutOfRange(t *testing.T) {
	m := NewManager()
	f := newFake()
	f.add(t, m, "p", "a", nil)
	f.add(t, m, "p", "b", nil)

	err := m.Move(context.Background(), f, Move{ID: "a", FromParent: "p", FromPosition: 0, ToParent: "p", ToPosition: 2})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, []string{"a", "b"}, f.order("p"))
}

func TestMoveEscalatesStorageFailure(t *testing.T) {
	m := NewManager()
	f := newFake()
	f.add(t, m, "p", "a", nil)
	f.add(t, m, "p", "b", nil)
	f.failOn = "shift"
	f.failErr = errors.New("disk full")

	err := m.Move(context.Background(), f, Move{ID: "a", FromParent: "p", FromPosition: 0, ToParent: "p", ToPosition: 1})
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))
	assert.ErrorIs(t, err, f.failErr)
}

func TestMoveHonorsCancellation(t *testing.T) {
	m := NewManager()
	f := newFake()
	f.add(t, m, "p", "a", nil)
	f.add(t, m, "p", "b", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Move(ctx, f, Move{ID: "a", FromParent: "p", FromPosition: 0, ToParent: "p", ToPosition: 1})
	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a", "b"}, f.order("p"))
}

func TestRemove(t *testing.T) {
	m := NewManager()
	f := newFake()
	for _, id := range []string{"a", "b", "c"} {
		f.add(t, m, "p", id, nil)
	}

	delete(f.items, "b")
	require.NoError(t, m.Remove(context.Background(), f, "p", 1))
	assert.Equal(t, []string{"a", "c"}, f.order("p"))
	assert.True(t, Dense(f.positions("p")))
}

func TestRandomOperationsStayDense(t *testing.T) {
	m := NewManager()
	f := newFake()
	rng := rand.New(rand.NewSource(42))
	parents := []string{"g1", "g2", "g3"}
	ids := 0

	for i := 0; i < 500; i++ {
		switch rng.Intn(3) {
		case 0:
			parent := parents[rng.Intn(len(parents))]
			count, _ := f.CountByParent(context.Background(), parent)
			ids++
			f.add(t, m, parent, fmt.Sprintf("t%d", ids), intp(rng.Intn(count+1)))
		case 1:
			if len(f.items) == 0 {
				continue
			}
			var id string
			for k := range f.items {
				id = k
				break
			}
			from := f.items[id]
			to := parents[rng.Intn(len(parents))]
			count, _ := f.CountByParent(context.Background(), to)
			if to == from.parent {
				count--
			}
			require.NoError(t, m.Move(context.Background(), f, Move{
				ID: id, FromParent: from.parent, FromPosition: from.pos,
				ToParent: to, ToPosition: rng.Intn(count + 1),
			}))
		case 2:
			for id, s := range f.items {
				delete(f.items, id)
				require.NoError(t, m.Remove(context.Background(), f, s.parent, s.pos))
				break
			}
		}

		for _, p := range parents {
			require.True(t, Dense(f.positions(p)), "group %s lost density after op %d", p, i)
		}
	}
}

func TestLockSerializesGroup(t *testing.T) {
	m := NewManager()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		overlap bool
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []string{Key(KindColumnTasks, "c1"), Key(KindColumnTasks, "c2")}
			if i%2 == 0 {
				keys[0], keys[1] = keys[1], keys[0]
			}
			unlock := m.Lock(keys...)
			defer unlock()

			mu.Lock()
			active++
			if active > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.False(t, overlap)
	assert.Empty(t, m.locks)
}

func TestDense(t *testing.T) {
	assert.True(t, Dense(nil))
	assert.True(t, Dense([]int{2, 0, 1}))
	assert.False(t, Dense([]int{0, 2}))
	assert.False(t, Dense([]int{0, 0}))
	assert.False(t, Dense([]int{-1, 0}))
}
