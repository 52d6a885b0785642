package persistence

import (
	"math"
	"testing"
)

func TestSyncLockKeyDistinct(t *testing.T) {
	ids := []int64{0, 1, 2, 42, math.MaxInt32, math.MaxInt32 + 1, 1 << 32, (1 << 32) + 1, math.MaxInt64}

	seen := make(map[int64]int64, len(ids))
	for _, id := range ids {
		key := syncLockKey(id)
		if prev, ok := seen[key]; ok {
			t.Errorf("syncLockKey collision: ids %d and %d both map to %d", prev, id, key)
		}
		seen[key] = id
	}

	// Ids that agree in their low 32 bits must still get different keys.
	if syncLockKey(7) == syncLockKey(7+(1<<32)) {
		t.Error("ids differing only above bit 32 share a lock key")
	}
}

func TestSyncLockKeyStable(t *testing.T) {
	if syncLockKey(5) != syncLockKey(5) {
		t.Error("syncLockKey is not deterministic")
	}
	if syncLockKey(0) != syncLockClass<<32 {
		t.Errorf("syncLockKey(0) = %d, want class prefix %d", syncLockKey(0), syncLockClass<<32)
	}
}
