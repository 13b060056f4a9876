// Package v1 提供對局（session）、設定查詢與模擬的 JSON API。
package v1

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zintix-labs/blocklab"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/server/httperr"
	"github.com/zintix-labs/blocklab/server/netsvr"
	"github.com/zintix-labs/blocklab/server/svrcfg"
)

// maxBodyBytes 請求 body 上限；replay tape 是最大的輸入
const maxBodyBytes = 1 << 20

type Handler struct {
	lab *blocklab.Lab
	ss  *blocklab.Sessions
	cfg *svrcfg.SvrCfg
	log *slog.Logger
}

func NewHandler(sCfg *svrcfg.SvrCfg, ss *blocklab.Sessions) (*Handler, error) {
	if sCfg == nil || sCfg.Lab == nil {
		return nil, errs.NewFatal("v1 handler requires a lab")
	}
	if ss == nil {
		return nil, errs.NewFatal("v1 handler requires a session store")
	}
	return &Handler{lab: sCfg.Lab, ss: ss, cfg: sCfg, log: sCfg.Log}, nil
}

// Register 掛載 v1 路由。
func (h *Handler) Register(r netsvr.NetRouter) {
	r.Get("/configs", h.Configs)

	r.Get("/games", h.ListGames)
	r.Post("/games", h.CreateGame)
	r.Get("/games/{id}", h.GetGame)
	r.Post("/games/{id}/actions", h.Act)
	r.Post("/games/{id}/reset", h.Reset)
	r.Get("/games/{id}/replay", h.Tape)
	r.Delete("/games/{id}", h.DeleteGame)

	r.Post("/replay", h.Replay)
	r.Post("/sim", h.Sim)
}

// decode 讀取 JSON body；空 body 視為零值請求。
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errs.NewWarn("invalid json: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail 回寫錯誤並依分級記錄；4xx 交給 access log。
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	httperr.Log(h.log, msg, err)
	httperr.Errs(w, err)
}
