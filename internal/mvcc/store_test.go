package mvcc

import "testing"

func TestStoreAppendAndAllVersions(t *testing.T) {
	s := NewSimpleStorage()
	s.Append(VersionedRow{Key: "k", Xmin: 1, Data: Record{"v": 1}})
	s.Append(VersionedRow{Key: "k", Xmin: 2, Data: Record{"v": 2}})

	got := s.AllVersions("k")
	if len(got) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(got))
	}
	if got[0].Xmin != 1 || got[1].Xmin != 2 {
		t.Error("expected insertion order to be preserved")
	}
}

func TestStoreAppendReplacesInPlaceOnTombstone(t *testing.T) {
	s := NewSimpleStorage()
	s.Append(VersionedRow{Key: "k", Xmin: 1, Data: Record{"v": 1}})
	s.Append(VersionedRow{Key: "k", Xmin: 1, Xmax: 2, HasXmax: true, Data: Record{"v": 1}})

	got := s.AllVersions("k")
	if len(got) != 1 {
		t.Fatalf("expected the tombstone to replace the live version in place, got %d entries", len(got))
	}
	if !got[0].HasXmax || got[0].Xmax != 2 {
		t.Error("expected the single remaining entry to be the tombstone")
	}
}

func TestStoreAppendUnmatchedTombstoneAppends(t *testing.T) {
	s := NewSimpleStorage()
	// A tombstone whose xmin isn't already live in the store (e.g. delete
	// preserving the original creator's xmin) must simply append.
	s.Append(VersionedRow{Key: "k", Xmin: 1, Xmax: 5, HasXmax: true, Data: Record{"v": 1}})

	got := s.AllVersions("k")
	if len(got) != 1 {
		t.Fatalf("expected 1 version, got %d", len(got))
	}
}

func TestStoreLatestAndAllKeys(t *testing.T) {
	s := NewSimpleStorage()
	if _, ok := s.Latest("missing"); ok {
		t.Error("Latest on a missing key must report false")
	}

	s.Append(VersionedRow{Key: "a", Xmin: 1})
	s.Append(VersionedRow{Key: "b", Xmin: 1})

	keys := s.AllKeys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}

	last, ok := s.Latest("a")
	if !ok || last.Key != "a" {
		t.Error("expected Latest(\"a\") to return the sole version under a")
	}
}

func TestStoreGarbageCollect(t *testing.T) {
	s := NewSimpleStorage()
	commits := NewCommitTable()
	vis := NewVisibilityEngine(commits)

	// A live version: never collectible regardless of horizon.
	s.Append(VersionedRow{Key: "live", Xmin: 1})

	// A collectible tombstone: both bounds well below the horizon.
	s.Append(VersionedRow{Key: "dead", Xmin: 1, Xmax: 2, HasXmax: true})

	// A tombstone not yet old enough: deleter is at the horizon.
	s.Append(VersionedRow{Key: "recent", Xmin: 1, Xmax: 10, HasXmax: true})

	dropped := s.GarbageCollect(10, vis)
	if dropped != 1 {
		t.Errorf("expected exactly 1 version collected, got %d", dropped)
	}

	if _, ok := s.Latest("dead"); ok {
		t.Error("expected the fully collected key to be removed entirely")
	}
	if _, ok := s.Latest("live"); !ok {
		t.Error("expected the live key to survive GC")
	}
	if _, ok := s.Latest("recent"); !ok {
		t.Error("expected the too-recent tombstone to survive GC")
	}
}
