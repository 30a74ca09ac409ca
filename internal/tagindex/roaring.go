package tagindex

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// roaringIndex backs Index with a compressed bitmap per tag, grounded on
// the dual roaring/fallback split in the original RoaringBitmapTagIndex.
type roaringIndex struct {
	mu   sync.RWMutex
	bits map[string]*roaring.Bitmap
}

// NewRoaring returns an Index backed by compressed roaring bitmaps, one
// per tag.
func NewRoaring() Index {
	return &roaringIndex{bits: make(map[string]*roaring.Bitmap)}
}

func (x *roaringIndex) Add(id uint32, tags []string) {
	tags = normalize(tags)
	if len(tags) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, tag := range tags {
		bm, ok := x.bits[tag]
		if !ok {
			bm = roaring.New()
			x.bits[tag] = bm
		}
		bm.Add(id)
	}
}

func (x *roaringIndex) Remove(id uint32) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for tag, bm := range x.bits {
		bm.Remove(id)
		if bm.IsEmpty() {
			delete(x.bits, tag)
		}
	}
}

func (x *roaringIndex) Query(tags []string, op Op) []uint32 {
	tags = normalize(tags)
	if len(tags) == 0 {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	var acc *roaring.Bitmap
	for i, tag := range tags {
		bm, ok := x.bits[tag]
		if !ok {
			if op == Intersection {
				return nil
			}
			continue
		}
		if i == 0 || acc == nil {
			acc = bm.Clone()
			continue
		}
		switch op {
		case Intersection:
			acc.And(bm)
		default:
			acc.Or(bm)
		}
	}
	if acc == nil {
		return nil
	}
	return sortedUint32(acc.ToArray())
}

func (x *roaringIndex) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	seen := make(map[uint32]struct{})
	s := Stats{TotalTags: len(x.bits)}
	for tag, bm := range x.bits {
		s.Tags = append(s.Tags, TagStats{Tag: tag, Count: int(bm.GetCardinality())})
		it := bm.Iterator()
		for it.HasNext() {
			seen[it.Next()] = struct{}{}
		}
	}
	s.TotalIDs = len(seen)
	return s
}

func (x *roaringIndex) Backend() string { return "roaring" }
