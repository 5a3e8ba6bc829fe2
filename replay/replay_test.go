package replay

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryGuardReplaySingleUse(t *testing.T) {
	g := NewMemoryGuard(nil)
	id := [16]byte{1, 2, 3}

	freshCount := 0
	for i := 0; i < 5; i++ {
		status, err := g.CheckAndInsert(id)
		if err != nil {
			t.Fatalf("check_and_insert: %v", err)
		}
		if status == Fresh {
			freshCount++
		} else if status != Replay {
			t.Fatalf("unexpected status %v", status)
		}
	}
	if freshCount != 1 {
		t.Fatalf("expected exactly one Fresh, got %d", freshCount)
	}
}

func TestMemoryGuardRevocation(t *testing.T) {
	revoked := [16]byte{9, 9, 9}
	g := NewMemoryGuard([][16]byte{revoked})
	if !g.IsRevoked(revoked) {
		t.Fatalf("expected revoked id to be reported revoked")
	}
	other := [16]byte{1}
	if g.IsRevoked(other) {
		t.Fatalf("unrelated id must not be reported revoked")
	}
}

func TestFileGuardReplaySingleUse(t *testing.T) {
	g := NewFileGuard(filepath.Join(t.TempDir(), "seen.json"), "")
	id := [16]byte{7, 7, 7}

	status, err := g.CheckAndInsert(id)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if status != Fresh {
		t.Fatalf("expected Fresh on first insert, got %v", status)
	}

	status, err = g.CheckAndInsert(id)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if status != Replay {
		t.Fatalf("expected Replay on second insert, got %v", status)
	}
}

func TestFileGuardPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	id := [16]byte{1, 1, 1}

	first := NewFileGuard(path, "")
	if status, err := first.CheckAndInsert(id); err != nil || status != Fresh {
		t.Fatalf("first guard insert: status=%v err=%v", status, err)
	}

	second := NewFileGuard(path, "")
	status, err := second.CheckAndInsert(id)
	if err != nil {
		t.Fatalf("second guard insert: %v", err)
	}
	if status != Replay {
		t.Fatalf("expected a fresh FileGuard instance to see the persisted id as Replay")
	}
}

func TestFileGuardRevocationList(t *testing.T) {
	dir := t.TempDir()
	revokedPath := filepath.Join(dir, "revoked.json")
	if err := os.WriteFile(revokedPath, []byte(`["01020304050607080910111213141516"]`), 0o600); err != nil {
		t.Fatalf("write revoked: %v", err)
	}

	g := NewFileGuard(filepath.Join(dir, "seen.json"), revokedPath)
	id := [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16}
	if !g.IsRevoked(id) {
		t.Fatalf("expected id from revocation file to be revoked")
	}
}
