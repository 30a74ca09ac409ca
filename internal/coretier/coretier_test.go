package coretier

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MycelicMemory/memoryhub/internal/errors"
	"github.com/MycelicMemory/memoryhub/internal/record"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(id, content string, tags []string, createdAt time.Time) *record.Record {
	return &record.Record{ID: id, Content: content, Tags: tags, Tier: "core", CreatedAt: createdAt}
}

func TestPutAndLoadTier(t *testing.T) {
	s := openTest(t)
	base := time.Now().UTC().Truncate(time.Second)
	if err := s.Put(rec("r1", "task_id: A", []string{"x"}, base)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(rec("r2", "window_id: B", nil, base.Add(time.Minute))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.LoadTier()
	if err != nil {
		t.Fatalf("LoadTier: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r2" || got[1].ID != "r1" {
		t.Fatalf("expected [r2 r1] newest-first, got %v", idsOf(got))
	}
}

func TestPutUpsertsById(t *testing.T) {
	s := openTest(t)
	base := time.Now().UTC().Truncate(time.Second)
	if err := s.Put(rec("r1", "first", nil, base)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(rec("r1", "second", nil, base)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.LoadTier()
	if err != nil {
		t.Fatalf("LoadTier: %v", err)
	}
	if len(got) != 1 || got[0].Content != "second" {
		t.Fatalf("expected single upserted row, got %v", got)
	}
}

func TestSearch(t *testing.T) {
	s := openTest(t)
	base := time.Now().UTC().Truncate(time.Second)
	s.Put(rec("r1", "task_id: apples", []string{"fruit"}, base))
	s.Put(rec("r2", "task_id: bananas", nil, base.Add(time.Minute)))

	got, err := s.Search("apples", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("expected [r1], got %v", idsOf(got))
	}

	got, err = s.Search("task_id", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected limit of 1, got %d", len(got))
	}
}

func TestSearchTagMatch(t *testing.T) {
	s := openTest(t)
	s.Put(rec("r1", "task_id: x", []string{"golang"}, time.Now().UTC().Truncate(time.Second)))

	got, err := s.Search("golang", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected tag match, got %d results", len(got))
	}
}

func TestIncrementRecall(t *testing.T) {
	s := openTest(t)
	s.Put(rec("r1", "task_id: x", nil, time.Now().UTC().Truncate(time.Second)))

	if err := s.IncrementRecall("r1"); err != nil {
		t.Fatalf("IncrementRecall: %v", err)
	}
	got, _ := s.LoadTier()
	if got[0].RecalledCount != 1 {
		t.Fatalf("expected recalled_count 1, got %d", got[0].RecalledCount)
	}

	err := s.IncrementRecall("missing")
	if errors.KindOf(err) != errors.InvalidInput {
		t.Fatalf("expected InvalidInput for missing id, got %v", err)
	}
}

func TestStats(t *testing.T) {
	s := openTest(t)
	s.Put(rec("r1", "task_id: x", nil, time.Now().UTC().Truncate(time.Second)))
	s.Put(rec("r2", "task_id: y", nil, time.Now().UTC().Truncate(time.Second)))
	s.IncrementRecall("r1")
	s.IncrementRecall("r1")

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.RecordCount != 2 {
		t.Fatalf("expected RecordCount 2, got %d", st.RecordCount)
	}
	if st.TotalRecalls != 2 {
		t.Fatalf("expected TotalRecalls 2, got %d", st.TotalRecalls)
	}
}

func idsOf(rs []*record.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
