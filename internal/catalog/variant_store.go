package catalog

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/exp/mmap"
)

// segmentExt is the on-disk extension for a fragmented-MP4 media
// segment. Files are named "<timestamp>.m4s" inside a variant directory,
// and the init segment is always "init.mp4".
const segmentExt = ".m4s"

const initSegmentName = "init.mp4"

// variantStore holds the memory-mapped segments for one quality variant
// of one stream kind (video or audio). Segments are only ever added,
// never removed or remapped, for the lifetime of the process — spec.md
// §5's "retained for at least max_buffer + max_inflight seconds" is the
// caller's responsibility (the watcher never evicts).
type variantStore struct {
	dir string

	mu       sync.RWMutex
	segments map[uint64]*mmap.ReaderAt

	initMu   sync.Mutex
	initData []byte
	initErr  error
}

func newVariantStore(dir string) *variantStore {
	return &variantStore{
		dir:      dir,
		segments: make(map[uint64]*mmap.ReaderAt),
	}
}

func (s *variantStore) has(ts uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.segments[ts]
	return ok
}

func (s *variantStore) data(ts uint64) ([]byte, error) {
	s.mu.RLock()
	r, ok := s.segments[ts]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("catalog: segment %d not ready in %s", ts, s.dir)
	}
	buf := make([]byte, r.Len())
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("catalog: read segment %d: %w", ts, err)
	}
	return buf, nil
}

func (s *variantStore) init() ([]byte, error) {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initData != nil || s.initErr != nil {
		return s.initData, s.initErr
	}
	r, err := mmap.Open(filepath.Join(s.dir, initSegmentName))
	if err != nil {
		s.initErr = fmt.Errorf("catalog: open init segment: %w", err)
		return nil, s.initErr
	}
	defer r.Close()
	buf := make([]byte, r.Len())
	if _, err := r.ReadAt(buf, 0); err != nil {
		s.initErr = fmt.Errorf("catalog: read init segment: %w", err)
		return nil, s.initErr
	}
	s.initData = buf
	return s.initData, nil
}

// register memory-maps a newly-observed segment file and adds it to the
// index. Re-registering the same timestamp is a no-op: once ready, a
// segment stays ready and its mapping is never replaced.
func (s *variantStore) register(ts uint64, path string) error {
	s.mu.RLock()
	_, exists := s.segments[ts]
	s.mu.RUnlock()
	if exists {
		return nil
	}

	r, err := mmap.Open(path)
	if err != nil {
		return fmt.Errorf("catalog: mmap %s: %w", path, err)
	}

	s.mu.Lock()
	if _, exists := s.segments[ts]; exists {
		s.mu.Unlock()
		r.Close()
		return nil
	}
	s.segments[ts] = r
	s.mu.Unlock()
	return nil
}

// segmentTimestamp parses the timestamp out of a segment filename,
// e.g. "8100000.m4s" -> 8100000. Returns ok=false for anything else
// (the init segment, partial/temp files, directories).
func segmentTimestamp(name string) (uint64, bool) {
	if filepath.Ext(name) != segmentExt {
		return 0, false
	}
	base := name[:len(name)-len(segmentExt)]
	ts, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
