package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/repository"
)

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recs, err := h.records.List(ctx)
	if err != nil {
		common.LoggerFrom(ctx, h.logger).Error("records.list.failed", "error", err)
		h.writeFailure(w, err)
		return
	}
	if recs == nil {
		recs = []repository.StoredRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(recs)
}

// handleExport streams an XLSX of records. Optional query: from, to (YYYY-MM-DD).
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := common.LoggerFrom(ctx, h.logger)

	fromPtr, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		h.writeFailure(w, common.NewAppError(common.CodeInvalidInput, "from must be YYYY-MM-DD", common.ErrInvalidInput))
		return
	}
	toPtr, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		h.writeFailure(w, common.NewAppError(common.CodeInvalidInput, "to must be YYYY-MM-DD", common.ErrInvalidInput))
		return
	}

	xlsx, err := h.exporter.ExportRecordsXLSX(ctx, fromPtr, toPtr)
	if err != nil {
		logger.Error("export.xlsx.failed", "error", err)
		h.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="guardias.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Ping(r.Context()); err != nil {
		h.logger.Warn("health.store_unavailable", "error", err)
		w.Header().Set(ErrorCodeHeader, common.CodeOf(err))
		writeText(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
