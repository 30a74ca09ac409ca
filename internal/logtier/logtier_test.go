package logtier

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MycelicMemory/memoryhub/internal/record"
)

func openTest(t *testing.T, flushThreshold, cacheSize int) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "application.jsonl")
	s, err := Open("application", path, flushThreshold, cacheSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(id, content string, tags []string, createdAt time.Time) *record.Record {
	return &record.Record{ID: id, Content: content, Tags: tags, Tier: "application", CreatedAt: createdAt}
}

func TestAppendAndLoadTier(t *testing.T) {
	s := openTest(t, 10, 500)
	base := time.Now().UTC().Truncate(time.Second)
	if err := s.Append(rec("m1", "a log line", []string{"sys"}, base)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(rec("m2", "another log line", nil, base.Add(time.Minute))); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.LoadTier()
	if err != nil {
		t.Fatalf("LoadTier: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("expected [m1 m2] in log order, got %v", idsOf(got))
	}
}

func TestSearchContentAndTag(t *testing.T) {
	s := openTest(t, 10, 500)
	base := time.Now().UTC().Truncate(time.Second)
	s.Append(rec("m1", "trace: request started", []string{"perf"}, base))
	s.Append(rec("m2", "trace: request finished", nil, base.Add(time.Minute)))

	got, err := s.Search("started", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("expected [m1], got %v", idsOf(got))
	}

	got, err = s.Search("perf", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("expected tag match [m1], got %v", idsOf(got))
	}
}

func TestSearchLimit(t *testing.T) {
	s := openTest(t, 10, 500)
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		s.Append(rec(string(rune('a'+i)), "trace entry", nil, base.Add(time.Duration(i)*time.Minute)))
	}
	got, err := s.Search("trace", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
}

func TestIncrementRecallBelowThresholdDoesNotPersist(t *testing.T) {
	s := openTest(t, 10, 500)
	s.Append(rec("m1", "trace entry", nil, time.Now().UTC().Truncate(time.Second)))

	for i := 0; i < 7; i++ {
		if err := s.IncrementRecall("m1"); err != nil {
			t.Fatalf("IncrementRecall: %v", err)
		}
	}

	onDisk, err := s.LoadTier()
	if err != nil {
		t.Fatalf("LoadTier: %v", err)
	}
	// LoadTier overlays pending updates, so recalled_count already
	// reflects the 7 buffered increments even though nothing has been
	// written to the log file yet.
	if onDisk[0].RecalledCount != 7 {
		t.Fatalf("expected overlayed recalled_count 7, got %d", onDisk[0].RecalledCount)
	}

	stats := s.Stats()
	if stats.PendingUpdates != 1 {
		t.Fatalf("expected 1 pending id, got %d", stats.PendingUpdates)
	}
}

func TestIncrementRecallFlushesAtThreshold(t *testing.T) {
	s := openTest(t, 2, 500)
	s.Append(rec("m1", "trace a", nil, time.Now().UTC().Truncate(time.Second)))
	s.Append(rec("m2", "trace b", nil, time.Now().UTC().Truncate(time.Second)))

	s.IncrementRecall("m1")
	if s.Stats().PendingUpdates != 1 {
		t.Fatalf("expected 1 pending before threshold")
	}
	s.IncrementRecall("m2") // reaching flushThreshold=2 triggers a flush

	if s.Stats().PendingUpdates != 0 {
		t.Fatalf("expected pending cleared after auto-flush")
	}

	got, err := s.LoadTier()
	if err != nil {
		t.Fatalf("LoadTier: %v", err)
	}
	byID := map[string]*record.Record{}
	for _, r := range got {
		byID[r.ID] = r
	}
	if byID["m1"].RecalledCount != 1 || byID["m2"].RecalledCount != 1 {
		t.Fatalf("expected both records flushed with recalled_count 1, got %+v", byID)
	}
}

func TestFlushPendingUpdatesManual(t *testing.T) {
	s := openTest(t, 100, 500)
	s.Append(rec("m1", "trace a", nil, time.Now().UTC().Truncate(time.Second)))
	s.IncrementRecall("m1")
	s.IncrementRecall("m1")

	if err := s.FlushPendingUpdates(); err != nil {
		t.Fatalf("FlushPendingUpdates: %v", err)
	}
	if s.Stats().PendingUpdates != 0 {
		t.Fatalf("expected pending cleared")
	}
	got, _ := s.LoadTier()
	if got[0].RecalledCount != 2 {
		t.Fatalf("expected recalled_count 2, got %d", got[0].RecalledCount)
	}
}

func TestBuildIndexRebuildsAfterSidecarLoss(t *testing.T) {
	s := openTest(t, 10, 500)
	s.Append(rec("m1", "trace a", []string{"x"}, time.Now().UTC().Truncate(time.Second)))
	s.Append(rec("m2", "trace b", nil, time.Now().UTC().Truncate(time.Second)))

	// Delete the sidecar, then force a rebuild from the log only.
	os.Remove(s.idxPath)
	if err := s.BuildIndex(true); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	got, err := s.LoadTier()
	if err != nil {
		t.Fatalf("LoadTier: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records after rebuild, got %d", len(got))
	}

	matches, err := s.Search("x", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "m1" {
		t.Fatalf("expected tag index rebuilt, got %v", idsOf(matches))
	}
}

func TestCrashRecoveryReopenWithoutSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "application.jsonl")

	s1, err := Open("application", path, 10, 500)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s1.Append(rec("m1", "trace a", nil, time.Now().UTC().Truncate(time.Second)))
	s1.Close()

	// Delete the sidecar to simulate a crash between the log write and
	// the sidecar write.
	os.Remove(path + ".idx")

	s2, err := Open("application", path, 10, 500)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer s2.Close()

	got, err := s2.LoadTier()
	if err != nil {
		t.Fatalf("LoadTier: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("expected recovered record m1, got %v", idsOf(got))
	}
}

func TestSearchZeroLimit(t *testing.T) {
	s := openTest(t, 10, 500)
	s.Append(rec("m1", "trace a", nil, time.Now().UTC().Truncate(time.Second)))
	got, err := s.Search("trace", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for zero limit, got %v", got)
	}
}

func idsOf(rs []*record.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
