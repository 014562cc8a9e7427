package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/peer-transfers/internal/middleware"
	"github.com/riteshkumar/peer-transfers/internal/models"
	"github.com/riteshkumar/peer-transfers/internal/service"
	u "github.com/riteshkumar/peer-transfers/internal/utils"
)

type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

func NewTransactionHandler(transactionService service.TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// RegisterRoutes mounts the transaction endpoints. /transactions/admin and
// /transactions/user must be registered before /transactions/{id}.
func (h *TransactionHandler) RegisterRoutes(router *mux.Router, authn mux.MiddlewareFunc) {
	user := func(fn http.HandlerFunc) http.Handler { return authn(fn) }
	admin := func(fn http.HandlerFunc) http.Handler { return authn(middleware.RequireAdmin(fn)) }

	router.Handle("/transactions", user(h.CreateTransaction)).Methods(http.MethodPost)
	router.Handle("/transactions", user(h.ListMyTransactions)).Methods(http.MethodGet)
	router.Handle("/transactions/user", user(h.ListMyTransactions)).Methods(http.MethodGet)
	router.Handle("/transactions/admin", admin(h.ListAllTransactions)).Methods(http.MethodGet)
	router.Handle("/transactions/{id}", user(h.GetTransaction)).Methods(http.MethodGet)
	router.Handle("/transactions/{id}", admin(h.ProcessTransaction)).Methods(http.MethodPatch, http.MethodPut)
	router.Handle("/transactions/{id}/process", admin(h.ProcessTransaction)).Methods(http.MethodPut)
	router.Handle("/transactions/{id}/audit", admin(h.GetTransactionAudit)).Methods(http.MethodGet)
}

func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	var req models.CreateTransactionRequest
	if !decodeJSON(w, r, h.logger, &req, "create transaction") {
		return
	}

	transaction, err := h.transactionService.RequestTransaction(r.Context(), principal.UserID, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "create transaction")
		return
	}

	u.WriteJSON(w, http.StatusCreated, transaction)
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	transaction, err := h.transactionService.GetTransaction(r.Context(), mux.Vars(r)["id"], principal)
	if err != nil {
		writeServiceError(w, h.logger, err, "get transaction")
		return
	}

	u.WriteJSON(w, http.StatusOK, transaction)
}

func (h *TransactionHandler) ListMyTransactions(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	query, err := listQuery(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "list transactions")
		return
	}

	page, err := h.transactionService.ListUserTransactions(r.Context(), principal.UserID, query)
	if err != nil {
		writeServiceError(w, h.logger, err, "list transactions")
		return
	}

	u.WriteJSON(w, http.StatusOK, page)
}

func (h *TransactionHandler) ListAllTransactions(w http.ResponseWriter, r *http.Request) {
	query, err := listQuery(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "list all transactions")
		return
	}

	page, err := h.transactionService.ListAllTransactions(r.Context(), query)
	if err != nil {
		writeServiceError(w, h.logger, err, "list all transactions")
		return
	}

	u.WriteJSON(w, http.StatusOK, page)
}

func (h *TransactionHandler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	var req models.ProcessTransactionRequest
	if !decodeJSON(w, r, h.logger, &req, "process transaction") {
		return
	}

	transaction, err := h.transactionService.ProcessTransaction(r.Context(), mux.Vars(r)["id"], req.Status, principal.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err, "process transaction")
		return
	}

	u.WriteJSON(w, http.StatusOK, transaction)
}

func (h *TransactionHandler) GetTransactionAudit(w http.ResponseWriter, r *http.Request) {
	logs, err := h.transactionService.GetTransactionAudit(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err, "get transaction audit")
		return
	}

	u.WriteJSON(w, http.StatusOK, logs)
}
