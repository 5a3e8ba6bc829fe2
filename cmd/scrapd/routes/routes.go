// Package routes wires the scrapd admin HTTP surface: revocation-list
// refresh and replay-guard stats, for operators to inspect and drive a
// running node out of band from the UDP protocol loop.
package routes

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scrap-protocol/cmd/scrapd/middleware"
	"scrap-protocol/core"
	"scrap-protocol/replay"
)

// AdminServer exposes the replay guard's revocation list and seen/revoked
// counters, plus the escrow ledger's outstanding balance, over HTTP.
type AdminServer struct {
	Guard       *replay.MemoryGuard
	RevokedFile string
	Ledger      *core.Ledger
}

// Register mounts the admin endpoints onto r.
func (a *AdminServer) Register(r chi.Router) {
	r.Use(middleware.Logger)
	r.Get("/admin/guard/stats", a.handleStats)
	r.Post("/admin/revoked/refresh", a.handleRefresh)
}

type guardStats struct {
	SeenCount       int    `json:"seen_count"`
	RevokedCount    int    `json:"revoked_count"`
	OutstandingSats uint64 `json:"outstanding_sats,omitempty"`
}

func (a *AdminServer) stats() guardStats {
	s := guardStats{
		SeenCount:    a.Guard.SeenCount(),
		RevokedCount: a.Guard.RevokedCount(),
	}
	if a.Ledger != nil {
		s.OutstandingSats = a.Ledger.OutstandingSats()
	}
	return s
}

func (a *AdminServer) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.stats())
}

func (a *AdminServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ids, err := replay.LoadRevokedFile(a.RevokedFile)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a.Guard.SetRevoked(ids)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.stats())
}

// NewRouter builds a chi.Router with the admin surface mounted at its root.
func NewRouter(a *AdminServer) chi.Router {
	r := chi.NewRouter()
	a.Register(r)
	return r
}
