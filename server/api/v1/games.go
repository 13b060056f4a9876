package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/zintix-labs/blocklab"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/replay"
	"github.com/zintix-labs/blocklab/server/netsvr"
	"github.com/zintix-labs/blocklab/spec"
)

// opTimeout 單次對局操作的上限；Machine 操作本身是微秒級，逾時代表 session 被卡住
const opTimeout = 5 * time.Second

// gameView 對局快照 + session id
type gameView struct {
	ID string `json:"id"`
	blocklab.Snapshot
}

type actionView struct {
	ID     string            `json:"id"`
	Result blocklab.Result   `json:"result"`
	State  blocklab.Snapshot `json:"state"`
}

type tapeView struct {
	ID      string `json:"id"`
	Game    string `json:"game"`
	Seed    int64  `json:"seed"`
	Actions int    `json:"actions"`
	Tape    string `json:"tape"`
}

// CreateGame POST /v1/games {"config": "classic", "seed": 123}
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Config string `json:"config"`
		Seed   *int64 `json:"seed,omitempty"`
	}
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "create game failed", err)
		return
	}
	if req.Config == "" {
		h.fail(w, r, "create game failed", errs.NewWarn("config is required"))
		return
	}
	id, m, err := h.ss.Create(req.Config, req.Seed)
	if err != nil {
		h.fail(w, r, "create game failed", err)
		return
	}
	w.Header().Set("Location", "/v1/games/"+id)
	writeJSON(w, http.StatusCreated, gameView{ID: id, Snapshot: m.State()})
}

// ListGames GET /v1/games
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"games":    h.ss.IDs(),
		"sessions": h.ss.Metrics(),
	})
}

// GetGame GET /v1/games/{id}：回傳盤面並取走累積的事件。
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id := netsvr.Param(r, "id")
	m, err := h.ss.Get(id)
	if err != nil {
		h.fail(w, r, "get game failed", err)
		return
	}
	writeJSON(w, http.StatusOK, gameView{ID: id, Snapshot: m.State()})
}

// Act POST /v1/games/{id}/actions {"action": "left"} 或 {"key": "LeftArrow"}，兩者擇一。
func (h *Handler) Act(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action *spec.Action  `json:"action,omitempty"`
		Key    *spec.KeyCode `json:"key,omitempty"`
	}
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "apply action failed", err)
		return
	}
	if (req.Action == nil) == (req.Key == nil) {
		h.fail(w, r, "apply action failed", errs.NewWarn("exactly one of action or key is required"))
		return
	}
	h.do(w, r, func(m *blocklab.Machine) (blocklab.Result, error) {
		if req.Key != nil {
			return m.Press(*req.Key)
		}
		return m.Apply(*req.Action)
	})
}

// Reset POST /v1/games/{id}/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, func(m *blocklab.Machine) (blocklab.Result, error) {
		return m.Apply(spec.ActReset)
	})
}

func (h *Handler) do(w http.ResponseWriter, r *http.Request, op func(m *blocklab.Machine) (blocklab.Result, error)) {
	id := netsvr.Param(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	defer cancel()

	var out actionView
	err := h.ss.Do(ctx, id, func(m *blocklab.Machine) error {
		res, err := op(m)
		if err != nil {
			return err
		}
		out = actionView{ID: id, Result: res, State: m.State()}
		return nil
	})
	if err != nil {
		h.fail(w, r, "apply action failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Tape GET /v1/games/{id}/replay：目前為止的對局紀錄（zstd + base64url）。
func (h *Handler) Tape(w http.ResponseWriter, r *http.Request) {
	id := netsvr.Param(r, "id")
	m, err := h.ss.Get(id)
	if err != nil {
		h.fail(w, r, "get replay failed", err)
		return
	}
	tp := m.Tape()
	writeJSON(w, http.StatusOK, tapeView{
		ID:      id,
		Game:    tp.Game,
		Seed:    tp.Seed,
		Actions: len(tp.Actions),
		Tape:    replay.Encode(tp),
	})
}

// DeleteGame DELETE /v1/games/{id}
func (h *Handler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := h.ss.Delete(netsvr.Param(r, "id")); err != nil {
		h.fail(w, r, "delete game failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Replay POST /v1/replay {"tape": "..."}：重播紀錄並回傳最終盤面，不建立 session。
func (h *Handler) Replay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tape string `json:"tape"`
	}
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, "replay failed", err)
		return
	}
	if req.Tape == "" {
		h.fail(w, r, "replay failed", errs.NewWarn("tape is required"))
		return
	}
	tp, err := replay.Decode(req.Tape)
	if err != nil {
		h.fail(w, r, "replay failed", err)
		return
	}
	if len(tp.Actions) > h.cfg.ReplayMaxActions {
		h.fail(w, r, "replay failed", errs.Warnf("tape has %d actions, limit is %d", len(tp.Actions), h.cfg.ReplayMaxActions))
		return
	}
	st, err := replay.Final(h.lab, tp)
	if err != nil {
		h.fail(w, r, "replay failed", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
