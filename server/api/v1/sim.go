package v1

import (
	"net/http"
	"time"

	"github.com/zintix-labs/blocklab"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/stats"
)

// Sim POST /v1/sim {"config": "classic", "games": 1000, "workers": 4, "seed": 1, "pieces": 500}
//
// seed 省略時由 crypto/rand 產生，回應中會帶回實際使用的 seed 方便重現。
func (h *Handler) Sim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Config  string `json:"config"`
		Games   int    `json:"games"`
		Workers int    `json:"workers"`
		Seed    *int64 `json:"seed,omitempty"`
		Pieces  int    `json:"pieces"`
	}
	type simResponse struct {
		Stats    *stats.GameReport `json:"stats"`
		Seed     int64             `json:"seed"`
		Workers  int               `json:"workers"`
		UsedTime int64             `json:"used_ms"`
	}
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "simulate failed", err)
		return
	}
	// 業務檢驗
	if req.Config == "" {
		h.fail(w, r, "simulate failed", errs.NewWarn("config is required"))
		return
	}
	if req.Games < 1 || req.Games > h.cfg.SimMaxGames {
		h.fail(w, r, "simulate failed", errs.Warnf("games must be between 1 and %d", h.cfg.SimMaxGames))
		return
	}
	if req.Workers < 0 {
		h.fail(w, r, "simulate failed", errs.NewWarn("workers must be non-negative"))
		return
	}
	if req.Pieces < 0 {
		h.fail(w, r, "simulate failed", errs.NewWarn("pieces must be non-negative"))
		return
	}
	workers := min(max(1, req.Workers), h.cfg.SimWorkers)

	var (
		sim *blocklab.Simulator
		err error
	)
	if req.Seed != nil {
		sim, err = h.lab.NewSimulatorWithSeed(req.Config, *req.Seed)
	} else {
		sim, err = h.lab.NewSimulator(req.Config)
	}
	if err != nil {
		h.fail(w, r, "build simulator failed", errs.Wrap(err, "build simulator err: "+req.Config))
		return
	}
	sim.SetMaxPieces(req.Pieces)

	var (
		st   *stats.GameReport
		used time.Duration
	)
	if workers == 1 {
		st, used, err = sim.Sim(req.Games, false)
	} else {
		st, used, err = sim.SimMP(req.Games, workers, false)
	}
	if err != nil {
		// 錯誤來自 simulator，尊重錯誤分級
		h.fail(w, r, "simulate failed", errs.Wrap(err, "simulate err"))
		return
	}
	writeJSON(w, http.StatusOK, simResponse{
		Stats:    st,
		Seed:     sim.Seed(),
		Workers:  workers,
		UsedTime: used.Milliseconds(),
	})
}
