package batch

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

type child struct {
	ID       int64
	ParentID int64
}

func parentOf(c child) int64 { return c.ParentID }

func TestGroupByMatchesPerParentFilter(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		parents := make([]int64, 1+rng.Intn(15))
		for i := range parents {
			parents[i] = int64(i + 1)
		}
		children := make([]child, rng.Intn(60))
		for i := range children {
			// some children point at parents that do not exist
			children[i] = child{ID: int64(i + 1), ParentID: int64(rng.Intn(len(parents)+3) + 1)}
		}

		groups := GroupBy(children, parentOf)
		for _, p := range parents {
			var want []child
			for _, c := range children {
				if c.ParentID == p {
					want = append(want, c)
				}
			}
			if !reflect.DeepEqual(groups[p], want) {
				t.Fatalf("round %d parent %d: GroupBy = %v, per-parent filter = %v", round, p, groups[p], want)
			}
		}
	}
}

func TestFromAllReadsOnce(t *testing.T) {
	reads := 0
	loader := FromAll(func(ctx context.Context) ([]child, error) {
		reads++
		return []child{{1, 10}, {2, 10}, {3, 20}, {4, 30}}, nil
	}, parentOf)

	t.Run("nil keys returns every group", func(t *testing.T) {
		got, err := loader.Load(context.Background(), nil)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(got) != 3 {
			t.Errorf("Load() groups = %d, want 3", len(got))
		}
	})

	t.Run("keys filter groups", func(t *testing.T) {
		got, err := loader.Load(context.Background(), []int64{10, 99})
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(got) != 1 || len(got[10]) != 2 {
			t.Errorf("Load() = %v, want only parent 10 with two children", got)
		}
	})

	if reads != 2 {
		t.Errorf("reads = %d, want one per Load call", reads)
	}
}

func TestFromKeysDeduplicatesAndShortCircuits(t *testing.T) {
	var seen [][]int64
	loader := FromKeys(func(ctx context.Context, keys []int64) ([]child, error) {
		seen = append(seen, keys)
		var out []child
		for _, k := range keys {
			out = append(out, child{ID: k * 100, ParentID: k})
		}
		return out, nil
	}, parentOf)

	got, err := loader.Load(context.Background(), []int64{5, 7, 5, 5})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(seen, [][]int64{{5, 7}}) {
		t.Errorf("reads = %v, want a single read of [5 7]", seen)
	}
	if len(got[5]) != 1 || len(got[7]) != 1 {
		t.Errorf("Load() = %v", got)
	}

	empty, err := loader.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load(nil) error = %v", err)
	}
	if len(empty) != 0 || len(seen) != 1 {
		t.Errorf("Load(nil) should not read, reads = %d", len(seen))
	}
}

func TestLoaderPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	loader := FromAll(func(ctx context.Context) ([]child, error) { return nil, boom }, parentOf)
	if _, err := loader.Load(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("Load() error = %v, want %v", err, boom)
	}
}

func TestIndexByAndFirst(t *testing.T) {
	items := []child{{1, 10}, {2, 20}}
	index := IndexBy(items, func(c child) int64 { return c.ID })
	if index[2].ParentID != 20 {
		t.Errorf("IndexBy()[2] = %v", index[2])
	}

	groups := GroupBy(items, parentOf)
	if c, ok := First(groups, 10); !ok || c.ID != 1 {
		t.Errorf("First(10) = %v, %v", c, ok)
	}
	if _, ok := First(groups, 30); ok {
		t.Error("First(30) should report a miss")
	}
}

func TestUniqueKeysKeepsFirstSeenOrder(t *testing.T) {
	got := UniqueKeys([]child{{1, 3}, {2, 1}, {3, 3}, {4, 2}}, parentOf)
	want := []int64{3, 1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UniqueKeys() = %v, want %v", got, want)
	}
}
