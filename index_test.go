package annoydb

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	base := []Option{
		WithStoragePath(filepath.Join(t.TempDir(), "annoydb.bolt")),
		WithSeed(42),
	}
	idx, err := Open(append(base, opts...)...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

// TestLifecycleMatchesScenarioS1 reproduces spec.md §8 scenario S1 through
// the public façade: a single item [0, 1, 2] under Angular, one tree.
func TestLifecycleMatchesScenarioS1(t *testing.T) {
	idx := openTestIndex(t, WithMetric("angular"), WithNTrees(1))

	if err := idx.Prepare(3); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := idx.AddItem(0, []float32{0, 1, 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := idx.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := idx.ItemVector(0)
	if err != nil {
		t.Fatalf("ItemVector: %v", err)
	}
	want := []float32{0, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ItemVector[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	results, err := idx.NnsByVector([]float32{0, 1, 2}, 1, -1)
	if err != nil {
		t.Fatalf("NnsByVector: %v", err)
	}
	if len(results) != 1 || results[0].ItemID != 0 {
		t.Fatalf("results = %v, want [{ItemID:0}]", results)
	}
}

func TestMultiItemBuildAndQueryRoundTrip(t *testing.T) {
	idx := openTestIndex(t, WithMetric("euclidean"), WithNTrees(4))

	if err := idx.Prepare(2); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	items := map[uint32][]float32{
		0: {0, 0},
		1: {0.1, 0.1},
		2: {10, 10},
		3: {10.1, 10.1},
		4: {5, 5},
	}
	for id, vec := range items {
		if err := idx.AddItem(id, vec); err != nil {
			t.Fatalf("AddItem(%d): %v", id, err)
		}
	}
	if err := idx.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	results, err := idx.NnsByVector([]float32{0, 0}, 2, -1)
	if err != nil {
		t.Fatalf("NnsByVector: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	found := map[uint32]bool{}
	for _, r := range results {
		found[r.ItemID] = true
	}
	if !found[0] || !found[1] {
		t.Errorf("results = %v, want items 0 and 1 as the closest pair to (0,0)", results)
	}

	byItem, err := idx.NnsByItem(0, 2, -1)
	if err != nil {
		t.Fatalf("NnsByItem: %v", err)
	}
	if len(byItem) == 0 || byItem[0].ItemID != 0 {
		t.Errorf("NnsByItem(0) first result = %v, want item 0 itself", byItem)
	}
}

func TestAddItemRejectsDimensionMismatch(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Prepare(3); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := idx.AddItem(0, []float32{1, 2})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("AddItem err = %v, want ErrDimensionMismatch", err)
	}
}

func TestBuildWithoutPrepareFails(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Build(); !errors.Is(err, ErrMetadataMissing) {
		t.Fatalf("Build err = %v, want ErrMetadataMissing", err)
	}
}

func TestNnsByVectorBeforeBuildFails(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Prepare(2); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	_, err := idx.NnsByVector([]float32{0, 0}, 1, -1)
	if !errors.Is(err, ErrMetadataMissing) {
		t.Fatalf("NnsByVector err = %v, want ErrMetadataMissing", err)
	}
}

func TestDelItemReportsMissingItem(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Prepare(2); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := idx.DelItem(42)
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("DelItem err = %v, want ErrItemNotFound", err)
	}
}

func TestClearResetsPreparedState(t *testing.T) {
	idx := openTestIndex(t, WithNTrees(1))
	if err := idx.Prepare(3); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := idx.AddItem(0, []float32{0, 1, 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := idx.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	if err := idx.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if _, err := idx.ItemVector(0); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("ItemVector after Clear err = %v, want ErrItemNotFound", err)
	}
	if _, err := idx.NnsByVector([]float32{0, 1, 2}, 1, -1); !errors.Is(err, ErrMetadataMissing) {
		t.Fatalf("NnsByVector after Clear err = %v, want ErrMetadataMissing", err)
	}
}

func TestReopenLoadsExistingForest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annoydb.bolt")

	idx, err := Open(WithStoragePath(path), WithMetric("angular"), WithNTrees(1), WithSeed(1))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := idx.Prepare(3); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := idx.AddItem(0, []float32{0, 1, 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := idx.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(WithStoragePath(path), WithMetric("angular"), WithNTrees(1), WithSeed(1))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	results, err := reopened.NnsByVector([]float32{0, 1, 2}, 1, -1)
	if err != nil {
		t.Fatalf("NnsByVector after reopen: %v", err)
	}
	if len(results) != 1 || results[0].ItemID != 0 {
		t.Fatalf("results after reopen = %v, want [{ItemID:0}]", results)
	}
}
