// Package record defines the logical Record shared by every storage tier
// and the memoryhub façade.
package record

import (
	"strings"
	"time"
)

// Record is the indivisible unit of storage. See spec §3 for field
// semantics and invariants.
type Record struct {
	ID            string     `json:"id"`
	Content       string     `json:"content"`
	Tags          []string   `json:"tags"`
	ContextPath   string     `json:"context_path"`
	Tier          string     `json:"tier"`
	CreatedAt     time.Time  `json:"created_at"`
	RecalledCount int        `json:"recalled_count"`
	LastRecalled  *time.Time `json:"last_recalled,omitempty"`
	StoredAt      *time.Time `json:"stored_at,omitempty"`

	// Extra carries any JSONL keys this implementation does not model
	// explicitly, so a rewrite (flush, build-index) preserves them.
	Extra map[string]any `json:"-"`
}

// Clone returns a deep-enough copy of r: the Tags slice and Extra map are
// copied so callers can mutate the clone (e.g. apply a pending recall-count
// overlay) without affecting the stored record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	if r.LastRecalled != nil {
		lr := *r.LastRecalled
		c.LastRecalled = &lr
	}
	if r.StoredAt != nil {
		sa := *r.StoredAt
		c.StoredAt = &sa
	}
	if r.Extra != nil {
		c.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// MatchesSubstring reports whether the lowercased query is a substring of
// content, any tag, or context_path — the one search contract this store
// implements (no tokenization, no stemming).
func (r *Record) MatchesSubstring(lowerQuery string) bool {
	if lowerQuery == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.Content), lowerQuery) {
		return true
	}
	if strings.Contains(strings.ToLower(r.ContextPath), lowerQuery) {
		return true
	}
	for _, t := range r.Tags {
		if strings.Contains(strings.ToLower(t), lowerQuery) {
			return true
		}
	}
	return false
}

// ByCreatedAtDesc sorts records newest-first. Ties are broken by ID so the
// ordering is stable for records created in the same instant (sub-second
// resolution in tests).
type ByCreatedAtDesc []*Record

func (s ByCreatedAtDesc) Len() int      { return len(s) }
func (s ByCreatedAtDesc) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s ByCreatedAtDesc) Less(i, j int) bool {
	if s[i].CreatedAt.Equal(s[j].CreatedAt) {
		return s[i].ID > s[j].ID
	}
	return s[i].CreatedAt.After(s[j].CreatedAt)
}
