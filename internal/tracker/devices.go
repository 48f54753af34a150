package tracker

import (
	"sync"

	"beaconwatch/go-telemetry-server/internal/model"
)

// SnapshotStore holds the latest record per device identity.
type SnapshotStore struct {
	mu      sync.RWMutex
	records map[string]model.DeviceRecord
}

// NewSnapshotStore constructs an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{records: make(map[string]model.DeviceRecord)}
}

// Put replaces the record stored under rec.Identity.
func (s *SnapshotStore) Put(rec model.DeviceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Identity] = rec
}

// Snapshot returns a shallow copy of the table. Records are replaced wholesale on
// every write and never mutated in place, so sharing their slices is safe.
func (s *SnapshotStore) Snapshot() map[string]model.DeviceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.DeviceRecord, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}
	return out
}

// Len returns the number of stored identities, the report entry included.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
