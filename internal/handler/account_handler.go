package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/service"
	u "github.com/riteshkumar/peer-transfers/internal/utils"
)

type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

func NewAccountHandler(accountService service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

func (h *AccountHandler) RegisterRoutes(router *mux.Router, authn mux.MiddlewareFunc) {
	router.Handle("/accounts/{id}", authn(http.HandlerFunc(h.GetAccount))).Methods(http.MethodGet)
}

// GetAccount returns an account to its owner or to an admin.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r)
	if !ok {
		return
	}

	accountID := mux.Vars(r)["id"]
	if !principal.IsAdmin && principal.UserID != accountID {
		h.logger.Warn("account access denied",
			"account_id", accountID,
			"caller", principal.UserID,
		)
		u.WriteError(w, http.StatusForbidden, errors.KindForbidden, errors.ErrForbidden.Error())
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, h.logger, err, "get account")
		return
	}

	u.WriteJSON(w, http.StatusOK, account)
}
