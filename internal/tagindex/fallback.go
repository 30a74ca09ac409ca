package tagindex

import "sync"

// fallbackIndex backs Index with a plain sorted-set-per-tag
// implementation, functionally identical to roaringIndex but without the
// compressed representation. It is selected only by calling NewFallback;
// New always returns the roaring-backed index.
type fallbackIndex struct {
	mu   sync.RWMutex
	sets map[string]map[uint32]struct{}
}

// NewFallback returns an Index backed by plain Go sets.
func NewFallback() Index {
	return &fallbackIndex{sets: make(map[string]map[uint32]struct{})}
}

func (x *fallbackIndex) Add(id uint32, tags []string) {
	tags = normalize(tags)
	if len(tags) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, tag := range tags {
		s, ok := x.sets[tag]
		if !ok {
			s = make(map[uint32]struct{})
			x.sets[tag] = s
		}
		s[id] = struct{}{}
	}
}

func (x *fallbackIndex) Remove(id uint32) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for tag, s := range x.sets {
		delete(s, id)
		if len(s) == 0 {
			delete(x.sets, tag)
		}
	}
}

func (x *fallbackIndex) Query(tags []string, op Op) []uint32 {
	tags = normalize(tags)
	if len(tags) == 0 {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	var acc map[uint32]struct{}
	for i, tag := range tags {
		s, ok := x.sets[tag]
		if !ok {
			if op == Intersection {
				return nil
			}
			continue
		}
		if i == 0 || acc == nil {
			acc = make(map[uint32]struct{}, len(s))
			for id := range s {
				acc[id] = struct{}{}
			}
			continue
		}
		switch op {
		case Intersection:
			for id := range acc {
				if _, ok := s[id]; !ok {
					delete(acc, id)
				}
			}
		default:
			for id := range s {
				acc[id] = struct{}{}
			}
		}
	}
	if len(acc) == 0 {
		return nil
	}
	ids := make([]uint32, 0, len(acc))
	for id := range acc {
		ids = append(ids, id)
	}
	return sortedUint32(ids)
}

func (x *fallbackIndex) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	seen := make(map[uint32]struct{})
	s := Stats{TotalTags: len(x.sets)}
	for tag, set := range x.sets {
		s.Tags = append(s.Tags, TagStats{Tag: tag, Count: len(set)})
		for id := range set {
			seen[id] = struct{}{}
		}
	}
	s.TotalIDs = len(seen)
	return s
}

func (x *fallbackIndex) Backend() string { return "fallback" }
