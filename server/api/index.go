package api

import (
	"encoding/json"
	"net/http"

	"github.com/zintix-labs/blocklab/server/svrcfg"
)

var routes = []string{
	"GET /",
	"GET /metrics",
	"GET /v1/configs",
	"GET /v1/games",
	"POST /v1/games",
	"GET /v1/games/{id}",
	"POST /v1/games/{id}/actions",
	"POST /v1/games/{id}/reset",
	"GET /v1/games/{id}/replay",
	"DELETE /v1/games/{id}",
	"POST /v1/replay",
	"POST /v1/sim",
}

func indexHandler(sCfg *svrcfg.SvrCfg) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs := routes
		if !sCfg.Metrics {
			rs = make([]string, 0, len(routes))
			for _, s := range routes {
				if s != "GET "+metricsPath {
					rs = append(rs, s)
				}
			}
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"service": "blocklab",
			"games":   sCfg.Lab.Names(),
			"routes":  rs,
		})
	}
}
