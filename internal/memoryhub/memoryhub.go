// Package memoryhub implements the memory manager façade (spec §4.6):
// the single entry point that owns the four storage tiers and the tag
// bitmap index, classifies and routes every stored record, and fans
// queries out across tiers in priority order. Grounded on
// memory_manager.py's remember/recall/stats/load_layer method set and on
// internal/memory/service.go's "validate, delegate, return a result"
// shape.
package memoryhub

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MycelicMemory/memoryhub/internal/coretier"
	errs "github.com/MycelicMemory/memoryhub/internal/errors"
	"github.com/MycelicMemory/memoryhub/internal/logging"
	"github.com/MycelicMemory/memoryhub/internal/logtier"
	"github.com/MycelicMemory/memoryhub/internal/record"
	"github.com/MycelicMemory/memoryhub/internal/router"
	"github.com/MycelicMemory/memoryhub/internal/sessiontier"
	"github.com/MycelicMemory/memoryhub/internal/tagindex"
	"github.com/MycelicMemory/memoryhub/pkg/config"
)

var log = logging.GetLogger("memoryhub")

// Hub is the memory manager façade. The zero value is not usable; build
// one with Open. A Hub guards its calls with one coarse read/write lock:
// Recall, RecallByTags and Stats take it in shared mode; Remember,
// LoadTier, FlushPendingUpdates and Close take it in exclusive mode,
// with no upgrade path.
type Hub struct {
	cfg *config.Config

	mu          sync.RWMutex
	session     *sessiontier.Store
	core        *coretier.Store
	application *logtier.Store
	archive     *logtier.Store
	tags        tagindex.Index

	idByHash   map[uint32]string
	recordTier map[string]router.Tier

	counter          atomic.Int64
	createdAt        time.Time
	memoriesStored   int64
	memoriesRecalled int64
	recallLatencies  []time.Duration
}

// maxLatencySamples bounds the in-memory recall-latency history so a
// long-lived process doesn't grow this slice unboundedly.
const maxLatencySamples = 10000

// Open builds a Hub rooted at cfg.Store.Path, opening (or creating) the
// core database and the two log files.
func Open(cfg *config.Config) (*Hub, error) {
	if err := cfg.EnsureStoreDir(); err != nil {
		return nil, errs.Write("memoryhub.Open", err)
	}

	core, err := coretier.Open(config.CoreDBPath(cfg.Store.Path))
	if err != nil {
		return nil, err
	}
	application, err := logtier.Open("application", config.ApplicationLogPath(cfg.Store.Path), cfg.Store.FlushThreshold, cfg.Store.CacheSize)
	if err != nil {
		core.Close()
		return nil, err
	}
	archive, err := logtier.Open("archive", config.ArchiveLogPath(cfg.Store.Path), cfg.Store.FlushThreshold, cfg.Store.CacheSize)
	if err != nil {
		core.Close()
		application.Close()
		return nil, err
	}

	h := &Hub{
		cfg:         cfg,
		session:     sessiontier.New(),
		core:        core,
		application: application,
		archive:     archive,
		tags:        tagindex.New(),
		idByHash:    make(map[uint32]string),
		recordTier:  make(map[string]router.Tier),
		createdAt:   time.Now().UTC(),
	}
	if err := h.reindexFromDisk(); err != nil {
		h.Close()
		return nil, err
	}
	log.Info("memoryhub ready", "path", cfg.Store.Path)
	return h, nil
}

// reindexFromDisk populates the tag bitmap index and the id->tier map
// from whatever the core and log tiers already hold on disk, so a
// reopened store supports RecallByTags and tier attribution immediately.
func (h *Hub) reindexFromDisk() error {
	coreRecords, err := h.core.LoadTier()
	if err != nil {
		return err
	}
	appRecords, err := h.application.LoadTier()
	if err != nil {
		return err
	}
	archiveRecords, err := h.archive.LoadTier()
	if err != nil {
		return err
	}

	for _, r := range coreRecords {
		h.indexRecord(r, router.Core)
	}
	for _, r := range appRecords {
		h.indexRecord(r, router.Application)
	}
	for _, r := range archiveRecords {
		h.indexRecord(r, router.Archive)
	}
	return nil
}

func (h *Hub) indexRecord(r *record.Record, tier router.Tier) {
	hash := tagindex.HashID(r.ID)
	h.tags.Add(hash, r.Tags)
	h.idByHash[hash] = r.ID
	h.recordTier[r.ID] = tier
}

// Remember stores content, classifies its tier, and mirrors it into the
// tag bitmap index. A failed core-tier write is surfaced as a
// StorageWrite error to the caller — it is never silently rerouted to
// another tier (see spec §9 on the original's fallback bug).
func (h *Hub) Remember(content string, tags []string, contextPath string) (*record.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tier := router.Classify(content, tags)
	r := &record.Record{
		ID:          fmt.Sprintf("mem_%d", h.counter.Add(1)),
		Content:     content,
		Tags:        tags,
		ContextPath: contextPath,
		Tier:        string(tier),
		CreatedAt:   time.Now().UTC(),
	}

	var err error
	switch tier {
	case router.Session:
		h.session.Put(r)
	case router.Core:
		err = h.core.Put(r)
	case router.Application:
		err = h.application.Append(r)
	case router.Archive:
		err = h.archive.Append(r)
	}
	if err != nil {
		log.Error("remember failed", "error", err, "tier", tier)
		return nil, err
	}

	h.indexRecord(r, tier)
	h.memoriesStored++
	log.Debug("record stored", "id", r.ID, "tier", tier)
	return r.Clone(), nil
}

// Recall queries tiers in priority order core -> application -> archive
// -> session, collecting up to limit results and incrementing
// recalled_count on every record returned. A limit <= 0 uses the
// configured default.
func (h *Hub) Recall(query string, limit int) ([]*record.Record, error) {
	if limit <= 0 {
		limit = h.cfg.Store.DefaultRecallLimit
	}
	start := time.Now()

	h.mu.RLock()
	defer h.mu.RUnlock()

	results := make([]*record.Record, 0, limit)

	type tierSearch struct {
		tier   router.Tier
		search func(string, int) ([]*record.Record, error)
	}
	searches := []tierSearch{
		{router.Core, h.core.Search},
		{router.Application, h.application.Search},
		{router.Archive, h.archive.Search},
		{router.Session, func(q string, n int) ([]*record.Record, error) { return h.session.Search(q, n), nil }},
	}

	for _, ts := range searches {
		remaining := limit - len(results)
		if remaining <= 0 {
			break
		}
		matches, err := ts.search(query, remaining)
		if err != nil {
			log.Warn("recall search failed, skipping tier", "tier", ts.tier, "error", err)
			continue
		}
		for _, r := range matches {
			results = append(results, h.incrementRecall(ts.tier, r))
			if len(results) >= limit {
				break
			}
		}
	}

	sort.Sort(record.ByCreatedAtDesc(results))

	h.memoriesRecalled += int64(len(results))
	h.recordLatency(time.Since(start))
	return results, nil
}

// incrementRecall bumps recalled_count for r in the substore that owns
// it, returning the record the caller should see (post-increment).
func (h *Hub) incrementRecall(tier router.Tier, r *record.Record) *record.Record {
	switch tier {
	case router.Core:
		if err := h.core.IncrementRecall(r.ID); err != nil {
			log.Warn("failed to persist core recall count", "id", r.ID, "error", err)
			return r
		}
		r.RecalledCount++
	case router.Application:
		if err := h.application.IncrementRecall(r.ID); err != nil {
			log.Warn("failed to buffer application recall count", "id", r.ID, "error", err)
			return r
		}
		r.RecalledCount++
		now := time.Now().UTC()
		r.LastRecalled = &now
	case router.Archive:
		if err := h.archive.IncrementRecall(r.ID); err != nil {
			log.Warn("failed to buffer archive recall count", "id", r.ID, "error", err)
			return r
		}
		r.RecalledCount++
		now := time.Now().UTC()
		r.LastRecalled = &now
	case router.Session:
		if updated := h.session.IncrementRecall(r.ID); updated != nil {
			return updated
		}
	}
	return r
}

// RecallByTags consults the tag bitmap index for candidate ids, then
// materializes each from whichever tier owns it.
func (h *Hub) RecallByTags(tags []string, op tagindex.Op, limit int) ([]*record.Record, error) {
	if limit <= 0 {
		limit = h.cfg.Store.DefaultRecallLimit
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	hashes := h.tags.Query(tags, op)
	out := make([]*record.Record, 0, len(hashes))
	for _, hash := range hashes {
		id, ok := h.idByHash[hash]
		if !ok {
			continue
		}
		tier, ok := h.recordTier[id]
		if !ok {
			continue
		}
		r, err := h.materialize(tier, id)
		if err != nil {
			log.Warn("failed to materialize recall-by-tags candidate", "id", id, "error", err)
			continue
		}
		if r != nil {
			out = append(out, r)
		}
	}

	sort.Sort(record.ByCreatedAtDesc(out))
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (h *Hub) materialize(tier router.Tier, id string) (*record.Record, error) {
	switch tier {
	case router.Core:
		return h.core.Get(id)
	case router.Application:
		return h.application.Get(id)
	case router.Archive:
		return h.archive.Get(id)
	case router.Session:
		return h.session.Get(id), nil
	default:
		return nil, nil
	}
}

// TierInfo is the diagnostic result of LoadTier.
type TierInfo struct {
	Tier   string
	Count  int
	Loaded bool
	IDs    []string
}

// LoadTier ensures the named tier's in-memory structures are populated,
// optionally forcing a reload from disk, and reports its cardinality and
// member ids.
func (h *Hub) LoadTier(name string, forceReload bool) (TierInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch router.Tier(name) {
	case router.Session:
		records := h.session.LoadTier()
		return TierInfo{Tier: name, Count: len(records), Loaded: true, IDs: idsOf(records)}, nil
	case router.Core:
		if forceReload {
			if err := h.reloadCoreLocked(); err != nil {
				return TierInfo{}, err
			}
		}
		records, err := h.core.LoadTier()
		if err != nil {
			return TierInfo{}, err
		}
		return TierInfo{Tier: name, Count: len(records), Loaded: true, IDs: idsOf(records)}, nil
	case router.Application:
		if forceReload {
			if err := h.application.BuildIndex(true); err != nil {
				return TierInfo{}, errs.Inconsistent("memoryhub.LoadTier", err)
			}
		}
		records, err := h.application.LoadTier()
		if err != nil {
			return TierInfo{}, err
		}
		return TierInfo{Tier: name, Count: len(records), Loaded: true, IDs: idsOf(records)}, nil
	case router.Archive:
		if forceReload {
			if err := h.archive.BuildIndex(true); err != nil {
				return TierInfo{}, errs.Inconsistent("memoryhub.LoadTier", err)
			}
		}
		records, err := h.archive.LoadTier()
		if err != nil {
			return TierInfo{}, err
		}
		return TierInfo{Tier: name, Count: len(records), Loaded: true, IDs: idsOf(records)}, nil
	default:
		return TierInfo{Tier: name, Count: 0, Loaded: false}, errs.Invalidf("memoryhub.LoadTier", "unknown tier %q", name)
	}
}

func idsOf(records []*record.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func (h *Hub) reloadCoreLocked() error {
	// The core tier's own query path is always current (SQLite is the
	// source of truth); nothing to reload beyond re-deriving tag index
	// membership for any record added out of band.
	records, err := h.core.LoadTier()
	if err != nil {
		return err
	}
	for _, r := range records {
		h.indexRecord(r, router.Core)
	}
	return nil
}

func (h *Hub) recordLatency(d time.Duration) {
	h.recallLatencies = append(h.recallLatencies, d)
	if len(h.recallLatencies) > maxLatencySamples {
		h.recallLatencies = h.recallLatencies[len(h.recallLatencies)-maxLatencySamples:]
	}
}

// PerformanceStats summarizes recall latency over the process lifetime.
type PerformanceStats struct {
	MeanMs      float64
	MinMs       float64
	MaxMs       float64
	TotalMs     float64
	RecallCount int
}

// Stats is the aggregate counters and substats returned by Stats().
type Stats struct {
	MemoriesStored   int64
	MemoriesRecalled int64
	SessionCount     int
	CoreCount        int
	ApplicationCount int
	ArchiveCount     int
	TotalMemories    int
	Performance      PerformanceStats
	TagIndex         tagindex.Stats
	TagIndexBackend  string
	CreatedAt        time.Time
}

// Stats returns the manager's aggregate counters, recall-latency
// aggregates, and per-tier substats.
func (h *Hub) Stats() (Stats, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	coreStats, err := h.core.Stats()
	if err != nil {
		return Stats{}, err
	}
	appStats := h.application.Stats()
	archiveStats := h.archive.Stats()
	sessionCount := h.session.Count()

	var perf PerformanceStats
	if n := len(h.recallLatencies); n > 0 {
		var total, min, max time.Duration
		min = h.recallLatencies[0]
		for _, d := range h.recallLatencies {
			total += d
			if d < min {
				min = d
			}
			if d > max {
				max = d
			}
		}
		perf = PerformanceStats{
			MeanMs:      msOf(total) / float64(n),
			MinMs:       msOf(min),
			MaxMs:       msOf(max),
			TotalMs:     msOf(total),
			RecallCount: n,
		}
	}

	return Stats{
		MemoriesStored:   h.memoriesStored,
		MemoriesRecalled: h.memoriesRecalled,
		SessionCount:     sessionCount,
		CoreCount:        coreStats.RecordCount,
		ApplicationCount: appStats.RecordCount,
		ArchiveCount:     archiveStats.RecordCount,
		TotalMemories:    sessionCount + coreStats.RecordCount + appStats.RecordCount + archiveStats.RecordCount,
		Performance:      perf,
		TagIndex:         h.tags.Stats(),
		TagIndexBackend:  h.tags.Backend(),
		CreatedAt:        h.createdAt,
	}, nil
}

func msOf(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// FlushPendingUpdates force-flushes both log tiers' pending recall-count
// buffers.
func (h *Hub) FlushPendingUpdates() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.application.FlushPendingUpdates(); err != nil {
		return err
	}
	if err := h.archive.FlushPendingUpdates(); err != nil {
		return err
	}
	return nil
}

// Close flushes pending updates and releases every tier's handles. Safe
// to call more than once.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	note(h.application.Close())
	note(h.archive.Close())
	note(h.core.Close())
	log.Info("memoryhub closed")
	return firstErr
}
