package http

import (
	"bytes"
	"net/http"
	"strconv"

	"fintrack/internal/export/xlsx"
	applog "fintrack/internal/log"
	"fintrack/internal/stats"
)

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	st, err := ParseFilterState(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	view, err := s.deps.Views.Timeline(ctx, owner(r), st)
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(view).Write(w)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := ParseFilterState(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	view, err := s.deps.Views.Statistics(ctx, owner(r), st)
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(view).Write(w)
}

func (s *Server) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storageContext(r)
	defer cancel()

	tax, err := s.deps.Views.Taxonomy(ctx, owner(r))
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(tax).Write(w)
}

// handleExportXLSX downloads the filtered transactions and their monthly
// totals as a workbook.
func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	st, err := ParseFilterState(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	txs, err := s.deps.Views.Transactions(ctx, owner(r), st)
	if err != nil {
		writeServiceError(w, r, applog.OpExport, err)
		return
	}
	monthly, err := stats.MonthlyTotals(txs)
	if err != nil {
		writeServiceError(w, r, applog.OpExport, err)
		return
	}
	months, err := stats.SortedMonths(monthly)
	if err != nil {
		writeServiceError(w, r, applog.OpExport, err)
		return
	}

	// Buffer so a failed write can still produce a JSON error.
	var buf bytes.Buffer
	if err := xlsx.Write(&buf, txs, months); err != nil {
		writeServiceError(w, r, applog.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
