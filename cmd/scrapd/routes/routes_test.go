package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"scrap-protocol/replay"
)

func TestHandleStatsReportsCounts(t *testing.T) {
	guard := replay.NewMemoryGuard(nil)
	guard.CheckAndInsert([16]byte{1})
	guard.CheckAndInsert([16]byte{2})

	a := &AdminServer{Guard: guard}
	r := NewRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/admin/guard/stats", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var stats guardStats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.SeenCount != 2 {
		t.Fatalf("expected seen_count 2, got %d", stats.SeenCount)
	}
}

func TestHandleRefreshLoadsRevokedFile(t *testing.T) {
	dir := t.TempDir()
	revokedPath := filepath.Join(dir, "revoked.json")
	data := `["01020304050607080910111213141516"]`
	if err := os.WriteFile(revokedPath, []byte(data), 0o600); err != nil {
		t.Fatalf("write revoked file: %v", err)
	}

	a := &AdminServer{Guard: replay.NewMemoryGuard(nil), RevokedFile: revokedPath}
	r := NewRouter(a)

	req := httptest.NewRequest(http.MethodPost, "/admin/revoked/refresh", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var stats guardStats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.RevokedCount != 1 {
		t.Fatalf("expected revoked_count 1, got %d", stats.RevokedCount)
	}

	var id [16]byte
	id[0], id[1] = 0x01, 0x02
	id[2], id[3] = 0x03, 0x04
	id[4], id[5] = 0x05, 0x06
	id[6], id[7] = 0x07, 0x08
	id[8], id[9] = 0x09, 0x10
	id[10], id[11] = 0x11, 0x12
	id[12], id[13] = 0x13, 0x14
	id[14], id[15] = 0x15, 0x16
	if !a.Guard.IsRevoked(id) {
		t.Fatalf("expected decoded token-id to be revoked")
	}
}
