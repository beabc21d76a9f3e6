package mvcc

import "sync"

// SimpleStorage is the row store: a mapping from key to an ordered sequence
// of VersionedRows, preserving insertion order. It owns every committed
// version in the engine.
type SimpleStorage struct {
	mu       sync.RWMutex
	versions map[string][]VersionedRow
}

// NewSimpleStorage returns an empty SimpleStorage.
func NewSimpleStorage() *SimpleStorage {
	return &SimpleStorage{versions: make(map[string][]VersionedRow)}
}

// Append adds row to the store. If row is a tombstone (HasXmax) it searches
// the existing sequence for the live version with the same Xmin and
// replaces it in place, modeling "mark the prior version deleted"
// atomically; a naive append-only implementation would double-count
// versions and misreport GC counts. Otherwise row is appended as a new
// version.
func (s *SimpleStorage) Append(row VersionedRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.versions[row.Key]

	if row.HasXmax {
		for i, existing := range seq {
			if existing.Xmin == row.Xmin && !existing.HasXmax {
				seq[i] = row
				s.versions[row.Key] = seq
				return
			}
		}
	}

	s.versions[row.Key] = append(seq, row)
}

// AllVersions returns the sequence stored under key, in insertion order.
// The returned slice is a copy; callers may not mutate the store through it.
func (s *SimpleStorage) AllVersions(key string) []VersionedRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq := s.versions[key]
	out := make([]VersionedRow, len(seq))
	copy(out, seq)
	return out
}

// Latest returns the last version under key, if any.
func (s *SimpleStorage) Latest(key string) (VersionedRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq := s.versions[key]
	if len(seq) == 0 {
		return VersionedRow{}, false
	}
	return seq[len(seq)-1], true
}

// AllKeys returns every key currently holding at least one version. Order
// is unspecified.
func (s *SimpleStorage) AllKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.versions))
	for k := range s.versions {
		keys = append(keys, k)
	}
	return keys
}

// GarbageCollect drops every version for which vis.CanCollect is true,
// removing keys left with no versions, and returns the number of versions
// dropped.
func (s *SimpleStorage) GarbageCollect(oldestXmin TxnID, vis *VisibilityEngine) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, seq := range s.versions {
		kept := seq[:0:0]
		for _, row := range seq {
			if vis.CanCollect(row, oldestXmin) {
				dropped++
				continue
			}
			kept = append(kept, row)
		}
		if len(kept) == 0 {
			delete(s.versions, key)
		} else {
			s.versions[key] = kept
		}
	}
	return dropped
}
