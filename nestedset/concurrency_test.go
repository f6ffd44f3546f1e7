package nestedset

import (
	"sync"
	"testing"
)

// TestConcurrentToListIsRaceFree builds one shared node and flattens it
// from many goroutines simultaneously, exercising the lock-guarded,
// write-once memo. Every goroutine must observe the same
// flattened content regardless of which one actually computes the memo.
func TestConcurrentToListIsRaceFree(t *testing.T) {
	leafA, _ := NewBuilder[int](Stable).AddDirect(1, 2, 3).Build()
	leafB, _ := NewBuilder[int](Stable).AddDirect(3, 4, 5).Build()
	bld := NewBuilder[int](Stable)
	bld.AddDirect(6)
	if _, err := bld.AddTransitive(leafA, leafB); err != nil {
		t.Fatalf("AddTransitive: %v", err)
	}
	shared, err := bld.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	const goroutines = 200
	var wg sync.WaitGroup
	wg.Add(goroutines)
	results := make([][]int, goroutines)

	for i := 0; i < goroutines; i++ {
		go func(idx int) {
			defer wg.Done()
			results[idx] = shared.ToList()
		}(i)
	}
	wg.Wait()

	want := results[0]
	for i, got := range results {
		assertElementsEqual(t, got, want)
		_ = i
	}
}

// TestConcurrentBuildFromSharedChild builds many independent parent
// nodes that all reference the same child node as a transitive
// successor, concurrently, then flattens every parent. The shared
// child's own memo must be computed safely exactly once regardless of
// how many parents race to flatten it first.
func TestConcurrentBuildFromSharedChild(t *testing.T) {
	child, _ := NewBuilder[string](Stable).AddDirect("shared1", "shared2").Build()

	const parents = 100
	var wg sync.WaitGroup
	wg.Add(parents)
	lists := make([][]string, parents)

	for i := 0; i < parents; i++ {
		go func(idx int) {
			defer wg.Done()
			bld := NewBuilder[string](Stable)
			bld.AddDirect("own")
			if _, err := bld.AddTransitive(child); err != nil {
				t.Errorf("AddTransitive: %v", err)
				return
			}
			n, err := bld.Build()
			if err != nil {
				t.Errorf("Build: %v", err)
				return
			}
			lists[idx] = n.ToList()
		}(i)
	}
	wg.Wait()

	for _, got := range lists {
		assertElementsEqual(t, got, []string{"shared1", "shared2", "own"})
	}
}

// TestConcurrentForEachElementPruned exercises the non-memoizing,
// predicate-driven traversal under concurrent readers of a shared node.
func TestConcurrentForEachElementPruned(t *testing.T) {
	child, _ := NewBuilder[int](Stable).AddDirect(100, 200).Build()
	bld := NewBuilder[int](Stable)
	bld.AddDirect(1, 2, 3)
	if _, err := bld.AddTransitive(child); err != nil {
		t.Fatalf("AddTransitive: %v", err)
	}
	shared, err := bld.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	const readers = 100
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			var mu sync.Mutex
			var seen []int
			shared.ForEachElement(func(*Node[int]) bool { return true }, func(e int) {
				mu.Lock()
				seen = append(seen, e)
				mu.Unlock()
			})
			if len(seen) != 5 {
				t.Errorf("visited %d elements, want 5", len(seen))
			}
		}()
	}
	wg.Wait()
}
