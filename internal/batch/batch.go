// Package batch turns per-parent lookups into a single backing-store read
// followed by an in-memory hash join.
//
// A Loader answers "which children belong to each of these parents" with one
// read, however many parents are asked about:
//
//	members := batch.FromAll(repo.ListMembers, func(m models.Member) int64 { return m.FamilyID })
//	byFamily, err := members.Load(ctx, familyIDs)
//
// FromAll reads the whole child table once and is the right choice when the
// caller is listing every parent anyway. FromKeys issues one filtered read
// for the requested keys and is the right choice for a handful of parents.
package batch

import "context"

// Loader resolves parent keys to their children.
type Loader[K comparable, V any] interface {
	// Load returns children grouped by key. Keys without children are absent
	// from the map. For loaders built with FromAll a nil keys slice returns
	// every group.
	Load(ctx context.Context, keys []K) (map[K][]V, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K][]V, error)

func (f LoaderFunc[K, V]) Load(ctx context.Context, keys []K) (map[K][]V, error) {
	return f(ctx, keys)
}

// FromAll builds a loader over a whole-table read
func FromAll[K comparable, V any](list func(ctx context.Context) ([]V, error), key func(V) K) Loader[K, V] {
	return LoaderFunc[K, V](func(ctx context.Context, keys []K) (map[K][]V, error) {
		items, err := list(ctx)
		if err != nil {
			return nil, err
		}
		groups := GroupBy(items, key)
		if keys == nil {
			return groups, nil
		}
		wanted := make(map[K][]V, len(keys))
		for _, k := range keys {
			if g, ok := groups[k]; ok {
				wanted[k] = g
			}
		}
		return wanted, nil
	})
}

// FromKeys builds a loader over a read restricted to the requested keys.
// Duplicate keys are collapsed and an empty request skips the read.
func FromKeys[K comparable, V any](list func(ctx context.Context, keys []K) ([]V, error), key func(V) K) Loader[K, V] {
	return LoaderFunc[K, V](func(ctx context.Context, keys []K) (map[K][]V, error) {
		unique := UniqueKeys(keys, func(k K) K { return k })
		if len(unique) == 0 {
			return map[K][]V{}, nil
		}
		items, err := list(ctx, unique)
		if err != nil {
			return nil, err
		}
		return GroupBy(items, key), nil
	})
}

// GroupBy buckets items by key, preserving input order within each bucket
func GroupBy[K comparable, V any](items []V, key func(V) K) map[K][]V {
	groups := make(map[K][]V)
	for _, item := range items {
		k := key(item)
		groups[k] = append(groups[k], item)
	}
	return groups
}

// IndexBy maps each item to its key. Later items win on duplicate keys.
func IndexBy[K comparable, V any](items []V, key func(V) K) map[K]V {
	index := make(map[K]V, len(items))
	for _, item := range items {
		index[key(item)] = item
	}
	return index
}

// UniqueKeys extracts the distinct keys of items in first-seen order
func UniqueKeys[K comparable, V any](items []V, key func(V) K) []K {
	seen := make(map[K]struct{}, len(items))
	keys := make([]K, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// First returns the first child loaded for k, for one-to-one relations
func First[K comparable, V any](groups map[K][]V, k K) (V, bool) {
	g := groups[k]
	if len(g) == 0 {
		var zero V
		return zero, false
	}
	return g[0], true
}
