package api

import (
	"context"
	"net/http"

	"github.com/datasundae/pragi/internal/log"
)

// Reporter renders the ingestion log as markdown.
type Reporter interface {
	Report(ctx context.Context) (string, error)
}

// ReportHandler handles the ingestion report endpoint.
type ReportHandler struct {
	reporter Reporter
	logger   log.Logger
}

// NewReportHandler creates a report handler.
func NewReportHandler(reporter Reporter, logger log.Logger) *ReportHandler {
	return &ReportHandler{reporter: reporter, logger: logger}
}

// RegisterRoutes registers report routes on the given mux.
func (h *ReportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/report", h.report)
}

func (h *ReportHandler) report(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.Report(r.Context())
	if err != nil {
		h.logger.Error("report generation failed", "error", err)
		writeFault(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report))
}
