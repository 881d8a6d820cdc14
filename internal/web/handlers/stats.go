package handlers

import (
	"context"
	"net/http"
)

// PendingCounter counts rows still waiting for an output column.
type PendingCounter interface {
	CountPending(ctx context.Context, column string) (int, error)
}

// StatsHandler reports how much of the table is left to process.
type StatsHandler struct {
	Store      PendingCounter
	RuleColumn string
	LLMColumn  string
}

// StatsResponse lists pending row counts per output column.
type StatsResponse struct {
	Pending map[string]int `json:"pending"`
}

// GetStats handles GET /api/stats.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Pending: make(map[string]int, 2)}
	for _, column := range []string{h.RuleColumn, h.LLMColumn} {
		n, err := h.Store.CountPending(r.Context(), column)
		if err != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		resp.Pending[column] = n
	}
	writeJSON(w, http.StatusOK, resp)
}
