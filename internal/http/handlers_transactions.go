package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

type transactionList struct {
	Transactions []core.Transaction `json:"transactions"`
	Count        int                `json:"count"`
}

// handleListTransactions returns the owner's transactions after applying the
// filter selection in the query string.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	st, err := ParseFilterState(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	txs, err := s.deps.Views.Transactions(ctx, owner(r), st)
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(transactionList{Transactions: txs, Count: len(txs)}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var raw core.RawTransaction
	if err := decodeJSON(r, &raw); err != nil {
		BadRequestError("malformed transaction").Write(w)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	tx, err := s.deps.Transactions.Create(ctx, owner(r), raw)
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		JSON(tx).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var raw core.RawTransaction
	if err := decodeJSON(r, &raw); err != nil {
		BadRequestError("malformed transaction").Write(w)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	tx, err := s.deps.Transactions.Update(ctx, owner(r), chi.URLParam(r, "id"), raw)
	if err != nil {
		writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	NewResponse().JSON(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storageContext(r)
	defer cancel()

	if err := s.deps.Transactions.Delete(ctx, owner(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

type importQueued struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
}

// handleImport stores a JSON array of raw transactions. With ?async=true and
// a queue configured, the batch is handed to the worker instead.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var records []core.RawTransaction
	if err := decodeJSON(r, &records); err != nil {
		BadRequestError("expected a JSON array of transactions").Write(w)
		return
	}
	if len(records) > services.MaxImportBatch {
		writeServiceError(w, r, applog.OpImport, services.ErrImportTooLarge)
		return
	}
	ctx, cancel := storageContext(r)
	defer cancel()

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async && s.deps.ImportQueue != nil {
		if err := s.deps.ImportQueue.PublishImport(ctx, owner(r), records); err != nil {
			writeServiceError(w, r, applog.OpImport, err)
			return
		}
		NewResponse().
			Status(http.StatusAccepted).
			JSON(importQueued{Status: "queued", Records: len(records)}).
			Write(w)
		return
	}

	report, err := s.deps.Imports.Import(ctx, owner(r), records)
	if err != nil {
		writeServiceError(w, r, applog.OpImport, err)
		return
	}
	NewResponse().JSON(report).Write(w)
}
