package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cif-address/internal/export"
	"github.com/cif-address/internal/store"
)

// RowSource lists rows that already carry an output.
type RowSource interface {
	Processed(ctx context.Context, limit int) ([]store.Row, error)
}

// ExportHandler streams the rule/LLM comparison report.
type ExportHandler struct {
	Store RowSource
}

// ExportData handles GET /api/export?format=csv|xlsx&limit=n.
func (h *ExportHandler) ExportData(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv" // Default to CSV
	}
	if format != "csv" && format != "xlsx" {
		http.Error(w, "Unsupported export format. Use 'csv' or 'xlsx'", http.StatusBadRequest)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	rows, err := h.Store.Processed(r.Context(), limit)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("address_comparison_%s.%s", time.Now().Format("20060102_150405"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Record-Count", strconv.Itoa(len(rows)))

	if format == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = export.WriteXLSX(w, rows)
	} else {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = export.WriteCSV(w, rows)
	}
	if err != nil {
		// headers are already sent
		fmt.Printf("Export failed: %v\n", err)
	}
}
