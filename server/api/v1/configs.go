package v1

import "net/http"

// Configs 列出所有可開局的遊戲設定摘要。
func (h *Handler) Configs(w http.ResponseWriter, r *http.Request) {
	sum, err := h.lab.Summary()
	if err != nil {
		h.fail(w, r, "list configs failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": sum})
}
