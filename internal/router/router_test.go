package router

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		content string
		tags    []string
		want    Tier
	}{
		{"task id", "task_id: ABC123", []string{"task"}, Core},
		{"window id mixed case", "Window_ID active", nil, Core},
		{"log lowercase", "Log: started", []string{"sys"}, Application},
		{"trace word", "saw a trace of the request", nil, Application},
		{"archive tag", "historical note", []string{"archive"}, Archive},
		{"archive tag mixed case", "historical note", []string{"Archive"}, Archive},
		{"fallthrough session", "hello", []string{"x"}, Session},
		{"empty everything", "", nil, Session},
		{"task_id wins over log", "task_id and a log entry", nil, Core},
		{"log wins over archive tag", "a log line", []string{"archive"}, Application},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Classify(c.content, c.tags)
			if got != c.want {
				t.Errorf("Classify(%q, %v) = %q, want %q", c.content, c.tags, got, c.want)
			}
		})
	}
}

func TestClassifyIgnoresContextPath(t *testing.T) {
	// Classify takes no context_path argument, so a path containing
	// "task_id" cannot reach it; content without a rule keyword stays
	// Session.
	got := Classify("hello", nil)
	if got != Session {
		t.Fatalf("expected Session, got %q", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		if got := Classify("task_id: X", []string{"archive"}); got != Core {
			t.Fatalf("classification not deterministic: got %q on iteration %d", got, i)
		}
	}
}
