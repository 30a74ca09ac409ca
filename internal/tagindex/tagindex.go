// Package tagindex implements the cross-tier compressed bitmap index over
// integer record IDs described in spec §4.5: add/remove/query by tag, with
// a functionally identical plain-set fallback chosen explicitly through
// NewFallback, both exercised behind a single interface.
package tagindex

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/MycelicMemory/memoryhub/internal/logging"
)

var log = logging.GetLogger("tagindex")

// Op selects the set operation a Query performs across the requested tags.
type Op string

const (
	// Intersection requires every requested tag; if any requested tag is
	// absent from the index, the result is empty.
	Intersection Op = "intersection"
	// Union matches any requested tag; tags absent from the index
	// contribute nothing (not an error).
	Union Op = "union"
)

// TagStats reports the cardinality of a single tag's bitmap.
type TagStats struct {
	Tag   string
	Count int
}

// Stats summarizes the index: per-tag cardinality and totals.
type Stats struct {
	Tags       []TagStats
	TotalTags  int
	TotalIDs   int // distinct ids known to the index
}

// Index is the capability set both the roaring-backed and the fallback
// implementation satisfy.
type Index interface {
	// Add records that id carries tags (lowercased for indexing; the
	// caller's original casing is not retained here — that's the
	// substore's job).
	Add(id uint32, tags []string)

	// Remove drops id from every bitmap it appears in, pruning any
	// bitmap that becomes empty.
	Remove(id uint32)

	// Query returns the set of ids matching tags under op. An empty tags
	// slice always returns empty, regardless of op.
	Query(tags []string, op Op) []uint32

	// Stats reports per-tag cardinality and totals.
	Stats() Stats

	// Backend names the concrete implementation ("roaring" or
	// "fallback"), mostly useful for diagnostics and tests that must
	// exercise both paths.
	Backend() string
}

// HashID hashes an opaque string record id into the 32-bit space this
// index operates over. Collisions are possible (the id space is 2^32 and
// the hash is truncated from a 64-bit digest); callers that need exact
// identity should keep id -> uint32 "hashed to" a side table, which
// memoryhub's façade does.
func HashID(id string) uint32 {
	return uint32(xxhash.Sum64String(id))
}

func normalize(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// sortedUint32 sorts a []uint32 in place and returns it, used by both
// backends so Query results have a stable, testable order.
func sortedUint32(ids []uint32) []uint32 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
