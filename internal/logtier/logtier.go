// Package logtier implements the append-only log storage tier used for
// both the application and archive layers (spec §4.4): a JSONL file, a
// sidecar offset/length index, an in-memory tag pre-index, a bounded
// query cache, and batched recall-count updates. Grounded on
// jsonl_dao.py (original_source) for the algorithm and on
// steveyegge-beads' internal/jsonl/reader.go for the line-reading idiom.
package logtier

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	errs "github.com/MycelicMemory/memoryhub/internal/errors"
	"github.com/MycelicMemory/memoryhub/internal/logging"
	"github.com/MycelicMemory/memoryhub/internal/record"
)

var log = logging.GetLogger("logtier")

const maxScanLineBytes = 8 * 1024 * 1024

// Store is one log-tier file pair (data + sidecar index) plus the
// in-memory structures that accelerate search over it. A Hub owns two
// Stores: one for "application", one for "archive".
type Store struct {
	tierName string
	path     string
	idxPath  string

	flushThreshold int
	cacheSize      int

	mu         sync.RWMutex
	offsets    []int64
	lengths    []int32
	tagIndex   map[string][]int // lowercased tag -> sorted record indices
	idIndex    map[string]int   // record id -> record index, latest write wins
	pending    map[string]int   // record id -> pending recall increments
	queryCache map[string][]*record.Record
}

// Open opens (creating if necessary) the log file and sidecar index at
// path/path+".idx", and either loads the existing sidecar or rebuilds it
// from the log.
func Open(tierName, path string, flushThreshold, cacheSize int) (*Store, error) {
	if flushThreshold <= 0 {
		flushThreshold = 10
	}
	if cacheSize <= 0 {
		cacheSize = 500
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Write("logtier.Open", fmt.Errorf("create directory %s: %w", dir, err))
		}
	}

	s := &Store{
		tierName:       tierName,
		path:           path,
		idxPath:        path + ".idx",
		flushThreshold: flushThreshold,
		cacheSize:      cacheSize,
		tagIndex:       make(map[string][]int),
		idIndex:        make(map[string]int),
		pending:        make(map[string]int),
		queryCache:     make(map[string][]*record.Record),
	}

	if err := ensureFile(path); err != nil {
		return nil, errs.Write("logtier.Open", err)
	}

	if _, err := os.Stat(s.idxPath); err == nil {
		if err := s.loadSidecar(); err != nil {
			log.Warn("sidecar index unreadable, rebuilding", "tier", tierName, "error", err)
			if err := s.BuildIndex(true); err != nil {
				return nil, err
			}
		}
	} else {
		if err := s.BuildIndex(true); err != nil {
			return nil, err
		}
	}

	log.Info("log tier ready", "tier", tierName, "path", path, "records", len(s.offsets))
	return s, nil
}

func ensureFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// Append serializes r as one JSONL line, appends it to the log, extends
// the sidecar index (log write precedes sidecar write, so a crash
// between the two leaves the sidecar short but never pointing past the
// end of the log — recoverable by BuildIndex), and updates the in-memory
// tag pre-index. Any cached query results are invalidated, since a new
// record may now match them.
func (s *Store) Append(r *record.Record) error {
	if r.StoredAt == nil {
		now := time.Now().UTC()
		r.StoredAt = &now
	}

	line, err := marshalLine(r)
	if err != nil {
		return errs.Invalid("logtier.Append", fmt.Errorf("marshal record %s: %w", r.ID, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Write("logtier.Append", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errs.Write("logtier.Append", err)
	}
	offset := info.Size()

	if _, err := f.Write(line); err != nil {
		return errs.Write("logtier.Append", fmt.Errorf("write log: %w", err))
	}
	if err := f.Sync(); err != nil {
		return errs.Write("logtier.Append", fmt.Errorf("sync log: %w", err))
	}

	if err := s.appendSidecar(offset, len(line)); err != nil {
		return errs.Write("logtier.Append", fmt.Errorf("write sidecar: %w", err))
	}

	idx := len(s.offsets)
	s.offsets = append(s.offsets, offset)
	s.lengths = append(s.lengths, int32(len(line)))
	for _, tag := range r.Tags {
		tag = strings.ToLower(tag)
		s.tagIndex[tag] = append(s.tagIndex[tag], idx)
	}
	s.idIndex[r.ID] = idx
	s.queryCache = make(map[string][]*record.Record)

	log.Debug("record appended", "tier", s.tierName, "id", r.ID, "offset", offset)
	return nil
}

func (s *Store) appendSidecar(offset int64, length int) error {
	f, err := os.OpenFile(s.idxPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d,%d\n", offset, length)
	return err
}

func marshalLine(r *record.Record) ([]byte, error) {
	obj := map[string]any{
		"id":             r.ID,
		"content":        r.Content,
		"tags":           r.Tags,
		"context_path":   r.ContextPath,
		"tier":           r.Tier,
		"created_at":     r.CreatedAt.UTC().Format(time.RFC3339Nano),
		"recalled_count": r.RecalledCount,
	}
	if r.LastRecalled != nil {
		obj["last_recalled"] = r.LastRecalled.UTC().Format(time.RFC3339Nano)
	}
	if r.StoredAt != nil {
		obj["stored_at"] = r.StoredAt.UTC().Format(time.RFC3339Nano)
	}
	for k, v := range r.Extra {
		if _, known := obj[k]; !known {
			obj[k] = v
		}
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func decodeLine(line []byte) (*record.Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, err
	}
	r := &record.Record{Extra: make(map[string]any)}

	for k, v := range raw {
		switch k {
		case "id":
			r.ID, _ = v.(string)
		case "content":
			r.Content, _ = v.(string)
		case "context_path":
			r.ContextPath, _ = v.(string)
		case "tier":
			r.Tier, _ = v.(string)
		case "tags":
			if arr, ok := v.([]any); ok {
				for _, t := range arr {
					if s, ok := t.(string); ok {
						r.Tags = append(r.Tags, s)
					}
				}
			}
		case "created_at":
			if s, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					r.CreatedAt = t
				}
			}
		case "recalled_count":
			if f, ok := v.(float64); ok {
				r.RecalledCount = int(f)
			}
		case "last_recalled":
			if s, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					r.LastRecalled = &t
				}
			}
		case "stored_at":
			if s, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					r.StoredAt = &t
				}
			}
		default:
			r.Extra[k] = v
		}
	}
	return r, nil
}

// readAt reads the record stored at the given log offset/length. It
// prefers the mmap-backed path; readRangeSeek is used when mapping the
// file fails (e.g. concurrent truncation, zero-length file).
func (s *Store) readAt(offset int64, length int32) (*record.Record, error) {
	buf, err := readRangeMmap(s.path, offset, int(length))
	if err != nil {
		log.Warn("mmap read failed, falling back to positioned read", "tier", s.tierName, "error", err)
		buf, err = readRangeSeek(s.path, offset, int(length))
		if err != nil {
			return nil, errs.Read("logtier.readAt", err)
		}
	}
	rec, err := decodeLine(buf)
	if err != nil {
		return nil, errs.Serialization("logtier.readAt", err)
	}
	return rec, nil
}

// LoadTier returns every record in the tier in log (insertion) order.
func (s *Store) LoadTier() ([]*record.Record, error) {
	s.mu.RLock()
	n := len(s.offsets)
	offsets := append([]int64(nil), s.offsets...)
	lengths := append([]int32(nil), s.lengths...)
	pending := s.snapshotPendingLocked()
	s.mu.RUnlock()

	out := make([]*record.Record, 0, n)
	for i := 0; i < n; i++ {
		r, err := s.readAt(offsets[i], lengths[i])
		if err != nil {
			log.Warn("skipping unreadable record", "tier", s.tierName, "index", i, "error", err)
			continue
		}
		applyPendingOverlay(r, pending)
		out = append(out, r)
	}
	return out, nil
}

// Get returns the record with the given id, or nil if absent.
func (s *Store) Get(id string) (*record.Record, error) {
	s.mu.RLock()
	idx, ok := s.idIndex[id]
	if !ok {
		s.mu.RUnlock()
		return nil, nil
	}
	offset, length := s.offsets[idx], s.lengths[idx]
	pending := s.snapshotPendingLocked()
	s.mu.RUnlock()

	r, err := s.readAt(offset, length)
	if err != nil {
		return nil, err
	}
	applyPendingOverlay(r, pending)
	return r, nil
}

// Search returns up to limit records whose content, tags, or
// context_path contain query, newest first. Results are served from the
// bounded query cache when available.
func (s *Store) Search(query string, limit int) ([]*record.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	lower := strings.ToLower(query)
	cacheKey := fmt.Sprintf("%s:%d", lower, limit)

	s.mu.RLock()
	if cached, ok := s.queryCache[cacheKey]; ok {
		pending := s.snapshotPendingLocked()
		s.mu.RUnlock()
		out := cloneRecords(cached)
		for _, r := range out {
			applyPendingOverlay(r, pending)
		}
		return out, nil
	}
	candidates := s.candidateIndicesLocked(lower)
	offsets := append([]int64(nil), s.offsets...)
	lengths := append([]int32(nil), s.lengths...)
	pending := s.snapshotPendingLocked()
	s.mu.RUnlock()

	matches := make([]*record.Record, 0, limit)
	for _, idx := range candidates {
		r, err := s.readAt(offsets[idx], lengths[idx])
		if err != nil {
			log.Warn("skipping unreadable record during search", "tier", s.tierName, "index", idx, "error", err)
			continue
		}
		if !r.MatchesSubstring(lower) {
			continue
		}
		matches = append(matches, r)
	}
	sort.Sort(record.ByCreatedAtDesc(matches))
	if len(matches) > limit {
		matches = matches[:limit]
	}

	s.mu.Lock()
	if len(s.queryCache) < s.cacheSize {
		s.queryCache[cacheKey] = cloneRecords(matches)
	}
	s.mu.Unlock()

	for _, r := range matches {
		applyPendingOverlay(r, pending)
	}
	return matches, nil
}

// candidateIndicesLocked returns the record indices to scan for query:
// the union of tag-index hits for every tag containing query as a
// substring, or every index when no tag matches (caller holds at least a
// read lock).
func (s *Store) candidateIndicesLocked(lowerQuery string) []int {
	seen := make(map[int]struct{})
	for tag, idxs := range s.tagIndex {
		if strings.Contains(tag, lowerQuery) {
			for _, i := range idxs {
				seen[i] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		all := make([]int, len(s.offsets))
		for i := range all {
			all[i] = i
		}
		return all
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// IncrementRecall buffers a recall-count increment for id; once the
// number of distinct pending ids reaches the flush threshold, the buffer
// is flushed to disk.
func (s *Store) IncrementRecall(id string) error {
	s.mu.Lock()
	s.pending[id]++
	shouldFlush := len(s.pending) >= s.flushThreshold
	s.mu.Unlock()

	if shouldFlush {
		return s.FlushPendingUpdates()
	}
	return nil
}

func (s *Store) snapshotPendingLocked() map[string]int {
	out := make(map[string]int, len(s.pending))
	for k, v := range s.pending {
		out[k] = v
	}
	return out
}

func applyPendingOverlay(r *record.Record, pending map[string]int) {
	if n, ok := pending[r.ID]; ok && n > 0 {
		r.RecalledCount += n
		now := time.Now().UTC()
		r.LastRecalled = &now
	}
}

func cloneRecords(rs []*record.Record) []*record.Record {
	out := make([]*record.Record, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// FlushPendingUpdates performs a single full rewrite of the log: read
// every record, apply pending recall increments, set last_recalled on
// touched records, write a fresh log file, then immediately rebuild the
// sidecar and tag pre-index (record lengths may have changed). Log write
// precedes sidecar write, matching Append's crash-safety order.
func (s *Store) FlushPendingUpdates() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	records, err := s.readAllLocked()
	if err != nil {
		return errs.Write("logtier.FlushPendingUpdates", err)
	}

	now := time.Now().UTC()
	touched := 0
	for _, r := range records {
		if n, ok := s.pending[r.ID]; ok {
			r.RecalledCount += n
			r.LastRecalled = &now
			touched++
		}
	}

	if touched > 0 {
		if err := s.rewriteLogLocked(records); err != nil {
			return errs.Write("logtier.FlushPendingUpdates", err)
		}
		if err := s.rebuildFromFileLocked(); err != nil {
			return errs.Write("logtier.FlushPendingUpdates", err)
		}
	}

	s.pending = make(map[string]int)
	s.queryCache = make(map[string][]*record.Record)
	log.Info("pending recall updates flushed", "tier", s.tierName, "records_touched", touched)
	return nil
}

// readAllLocked reads every record currently on disk via the offset
// table (caller holds s.mu).
func (s *Store) readAllLocked() ([]*record.Record, error) {
	out := make([]*record.Record, 0, len(s.offsets))
	for i := range s.offsets {
		r, err := s.readAt(s.offsets[i], s.lengths[i])
		if err != nil {
			log.Warn("skipping unreadable record during flush", "tier", s.tierName, "index", i, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) rewriteLogLocked(records []*record.Record) error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	for _, r := range records {
		line, err := marshalLine(r)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := f.Write(line); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// BuildIndex rebuilds the sidecar index and tag pre-index by scanning
// the log file. When force is false and the in-memory index already
// covers the file, it is a no-op.
func (s *Store) BuildIndex(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !force && len(s.offsets) > 0 {
		last := len(s.offsets) - 1
		info, err := os.Stat(s.path)
		if err == nil && info.Size() == s.offsets[last]+int64(s.lengths[last]) {
			return nil
		}
	}
	return s.rebuildFromFileLocked()
}

func (s *Store) rebuildFromFileLocked() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	offsets := make([]int64, 0)
	lengths := make([]int32, 0)
	tagIndex := make(map[string][]int)
	idIndex := make(map[string]int)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanLineBytes)

	var offset int64
	idx := 0
	for scanner.Scan() {
		raw := scanner.Bytes()
		lineLen := int32(len(raw) + 1) // +1 for the newline the scanner strips
		offsets = append(offsets, offset)
		lengths = append(lengths, lineLen)

		if len(strings.TrimSpace(string(raw))) > 0 {
			if r, err := decodeLine(raw); err == nil {
				for _, tag := range r.Tags {
					tag = strings.ToLower(tag)
					tagIndex[tag] = append(tagIndex[tag], idx)
				}
				if r.ID != "" {
					idIndex[r.ID] = idx
				}
			}
		}
		offset += int64(lineLen)
		idx++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if err := writeSidecar(s.idxPath, offsets, lengths); err != nil {
		return err
	}

	s.offsets = offsets
	s.lengths = lengths
	s.tagIndex = tagIndex
	s.idIndex = idIndex
	s.queryCache = make(map[string][]*record.Record)
	return nil
}

func writeSidecar(path string, offsets []int64, lengths []int32) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for i := range offsets {
		if _, err := fmt.Fprintf(w, "%d,%d\n", offsets[i], lengths[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (s *Store) loadSidecar() error {
	f, err := os.Open(s.idxPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var offsets []int64
	var lengths []int32

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			return fmt.Errorf("malformed sidecar line %q", line)
		}
		off, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return err
		}
		ln, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil {
			return err
		}
		offsets = append(offsets, off)
		lengths = append(lengths, int32(ln))
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	tagIndex := make(map[string][]int)
	idIndex := make(map[string]int)
	for i := range offsets {
		r, err := s.readAt(offsets[i], lengths[i])
		if err != nil {
			return fmt.Errorf("sidecar entry %d unreadable: %w", i, err)
		}
		for _, tag := range r.Tags {
			tag = strings.ToLower(tag)
			tagIndex[tag] = append(tagIndex[tag], i)
		}
		if r.ID != "" {
			idIndex[r.ID] = i
		}
	}

	s.offsets = offsets
	s.lengths = lengths
	s.tagIndex = tagIndex
	s.idIndex = idIndex
	return nil
}

// Stats reports record count and the number of distinct record ids with
// pending (unflushed) recall increments.
type Stats struct {
	RecordCount    int
	PendingUpdates int
}

// Stats reports log-tier totals.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{RecordCount: len(s.offsets), PendingUpdates: len(s.pending)}
}

// Close flushes any pending recall updates. The store holds no open file
// handle between calls, so there is nothing else to release.
func (s *Store) Close() error {
	if err := s.FlushPendingUpdates(); err != nil {
		return err
	}
	log.Info("log tier closed", "tier", s.tierName)
	return nil
}
