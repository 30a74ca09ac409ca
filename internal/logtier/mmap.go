package logtier

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// readRangeMmap maps path read-only and copies out the byte range
// [offset, offset+length). The mapping is unmapped before returning, so
// callers pay a syscall per read; memoryhub favors correctness and
// simplicity over keeping a long-lived mapping across concurrent writers.
func readRangeMmap(path string, offset int64, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("non-positive length %d", length)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset+int64(length) > info.Size() {
		return nil, fmt.Errorf("range [%d,%d) out of bounds for file of size %d", offset, offset+int64(length), info.Size())
	}

	m, err := mmap.MapRegion(f, int(offset+int64(length)), mmap.RDONLY, 0, 0)
	if err != nil {
		return nil, err
	}
	defer m.Unmap()

	buf := make([]byte, length)
	copy(buf, m[offset:offset+int64(length)])
	return buf, nil
}

// readRangeSeek is the positioned-read fallback used when mmap is
// unavailable or fails.
func readRangeSeek(path string, offset int64, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("non-positive length %d", length)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}
