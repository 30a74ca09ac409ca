package memoryhub

import (
	"path/filepath"
	"testing"

	"github.com/MycelicMemory/memoryhub/internal/record"
	"github.com/MycelicMemory/memoryhub/internal/tagindex"
	"github.com/MycelicMemory/memoryhub/pkg/config"
)

func openTest(t *testing.T) *Hub {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "store")
	cfg.Store.FlushThreshold = 3

	h, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestRememberRoutesByClassification(t *testing.T) {
	h := openTest(t)

	core, err := h.Remember("working on task_id 42", nil, "/proj")
	if err != nil {
		t.Fatalf("Remember core: %v", err)
	}
	if core.Tier != "core" {
		t.Errorf("expected core tier, got %s", core.Tier)
	}

	app, err := h.Remember("request log entry", nil, "/proj")
	if err != nil {
		t.Fatalf("Remember application: %v", err)
	}
	if app.Tier != "application" {
		t.Errorf("expected application tier, got %s", app.Tier)
	}

	archived, err := h.Remember("long term note", []string{"archive"}, "/proj")
	if err != nil {
		t.Fatalf("Remember archive: %v", err)
	}
	if archived.Tier != "archive" {
		t.Errorf("expected archive tier, got %s", archived.Tier)
	}

	session, err := h.Remember("just chatting", nil, "/proj")
	if err != nil {
		t.Fatalf("Remember session: %v", err)
	}
	if session.Tier != "session" {
		t.Errorf("expected session tier, got %s", session.Tier)
	}
}

func TestRecallPriorityOrderAndCounts(t *testing.T) {
	h := openTest(t)

	if _, err := h.Remember("task_id 1 about widgets", nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Remember("trace widgets request", nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Remember("widgets shipped", []string{"archive"}, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Remember("thinking about widgets", nil, ""); err != nil {
		t.Fatal(err)
	}

	results, err := h.Recall("widgets", 10)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if r.RecalledCount != 1 {
			t.Errorf("expected RecalledCount=1 for %s, got %d", r.ID, r.RecalledCount)
		}
	}
}

func TestRecallLimitStopsAcrossTiers(t *testing.T) {
	h := openTest(t)

	if _, err := h.Remember("task_id 1 widgets", nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Remember("task_id 2 widgets", nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Remember("log widgets", nil, ""); err != nil {
		t.Fatal(err)
	}

	results, err := h.Recall("widgets", 1)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Tier != "core" {
		t.Errorf("expected the single result to come from the priority tier core, got %s", results[0].Tier)
	}
}

func TestRecallByTagsIntersectionAndUnion(t *testing.T) {
	h := openTest(t)

	a, err := h.Remember("task_id 1", []string{"red", "alpha"}, "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Remember("task_id 2", []string{"red", "beta"}, "")
	if err != nil {
		t.Fatal(err)
	}
	c, err := h.Remember("task_id 3", []string{"blue"}, "")
	if err != nil {
		t.Fatal(err)
	}

	inter, err := h.RecallByTags([]string{"red", "alpha"}, tagindex.Intersection, 10)
	if err != nil {
		t.Fatalf("RecallByTags intersection: %v", err)
	}
	if len(inter) != 1 || inter[0].ID != a.ID {
		t.Errorf("expected only %s, got %v", a.ID, idsOf(inter))
	}

	union, err := h.RecallByTags([]string{"red", "blue"}, tagindex.Union, 10)
	if err != nil {
		t.Fatalf("RecallByTags union: %v", err)
	}
	gotIDs := idsOf(union)
	for _, want := range []string{a.ID, b.ID, c.ID} {
		found := false
		for _, got := range gotIDs {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %s in union result %v", want, gotIDs)
		}
	}
}

func idsOf(rs []*record.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestCoreWriteFailureDoesNotFallBackToSession(t *testing.T) {
	h := openTest(t)

	h.core.Close()

	_, err := h.Remember("task_id 99 broken db", nil, "")
	if err == nil {
		t.Fatal("expected an error when the core tier is closed")
	}
	if got := h.session.Count(); got != 0 {
		t.Errorf("expected no fallback write into session, found %d records", got)
	}
}

func TestFlushPendingUpdatesAndStats(t *testing.T) {
	h := openTest(t)

	if _, err := h.Remember("trace one", nil, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Remember("trace two", nil, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := h.Recall("trace", 10); err != nil {
		t.Fatal(err)
	}

	if err := h.FlushPendingUpdates(); err != nil {
		t.Fatalf("FlushPendingUpdates: %v", err)
	}

	stats, err := h.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.MemoriesStored != 2 {
		t.Errorf("expected MemoriesStored=2, got %d", stats.MemoriesStored)
	}
	if stats.MemoriesRecalled != 2 {
		t.Errorf("expected MemoriesRecalled=2, got %d", stats.MemoriesRecalled)
	}
	if stats.Performance.RecallCount != 1 {
		t.Errorf("expected one recall latency sample, got %d", stats.Performance.RecallCount)
	}
}

func TestLoadTierReportsCounts(t *testing.T) {
	h := openTest(t)

	r, err := h.Remember("task_id 1", nil, "")
	if err != nil {
		t.Fatal(err)
	}

	info, err := h.LoadTier("core", true)
	if err != nil {
		t.Fatalf("LoadTier: %v", err)
	}
	if info.Count != 1 || !info.Loaded {
		t.Errorf("unexpected TierInfo: %+v", info)
	}
	if len(info.IDs) != 1 || info.IDs[0] != r.ID {
		t.Errorf("expected IDs=[%s], got %v", r.ID, info.IDs)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h := openTest(t)
	if err := h.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close should not error: %v", err)
	}
}
