package recovery

import (
	"github.com/ternarybob/praxis/internal/models"
)

// RingCapacity is the maximum number of context backups retained per run.
const RingCapacity = 10

// BackupRing is a fixed-capacity ring buffer of context backups with O(1)
// eviction. Once full, pushing a new backup drops the oldest. The ring for a
// given run is only ever mutated by code that holds that run's id.
type BackupRing struct {
	entries  []*models.ContextBackup
	head     int // Index of the oldest entry
	size     int
	capacity int
}

// NewBackupRing creates a ring with the default capacity.
func NewBackupRing() *BackupRing {
	return NewBackupRingWithCapacity(RingCapacity)
}

// NewBackupRingWithCapacity creates a ring with an explicit capacity.
func NewBackupRingWithCapacity(capacity int) *BackupRing {
	if capacity < 1 {
		capacity = 1
	}
	return &BackupRing{
		entries:  make([]*models.ContextBackup, capacity),
		capacity: capacity,
	}
}

// Push appends a backup, evicting the oldest entry when the ring is full.
func (r *BackupRing) Push(backup *models.ContextBackup) {
	tail := (r.head + r.size) % r.capacity
	if r.size == r.capacity {
		// Overwrite the oldest slot and advance the head
		r.entries[r.head] = backup
		r.head = (r.head + 1) % r.capacity
		return
	}
	r.entries[tail] = backup
	r.size++
}

// Newest returns the most recent backup, or nil when empty.
func (r *BackupRing) Newest() *models.ContextBackup {
	if r.size == 0 {
		return nil
	}
	return r.entries[(r.head+r.size-1)%r.capacity]
}

// Oldest returns the least recent retained backup, or nil when empty.
func (r *BackupRing) Oldest() *models.ContextBackup {
	if r.size == 0 {
		return nil
	}
	return r.entries[r.head]
}

// Len returns the number of retained backups.
func (r *BackupRing) Len() int {
	return r.size
}

// Snapshot returns the retained backups oldest-first.
func (r *BackupRing) Snapshot() []*models.ContextBackup {
	out := make([]*models.ContextBackup, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.entries[(r.head+i)%r.capacity])
	}
	return out
}

// FromSnapshot rebuilds a ring from an oldest-first slice, keeping only the
// newest RingCapacity entries.
func FromSnapshot(backups []*models.ContextBackup) *BackupRing {
	ring := NewBackupRing()
	for _, b := range backups {
		ring.Push(b)
	}
	return ring
}
