package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/riteshkumar/peer-transfers/internal/auth"
	"github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/models"
	u "github.com/riteshkumar/peer-transfers/internal/utils"
)

// writeServiceError turns a service error into the JSON error body. Internal
// errors are logged and their detail is withheld from the client.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, operation string) {
	kind := errors.KindOf(err)
	if kind == errors.KindInternal {
		logger.Error("internal server error during "+operation, "error", err.Error())
		u.WriteError(w, http.StatusInternalServerError, kind, "internal server error")
		return
	}
	u.WriteError(w, u.StatusForKind(kind), kind, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, v interface{}, operation string) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Warn("invalid "+operation+" request", "error", err.Error())
		u.WriteError(w, http.StatusBadRequest, errors.KindValidation, "invalid request payload: "+err.Error())
		return false
	}
	return true
}

func principalFrom(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		u.WriteError(w, http.StatusUnauthorized, errors.KindUnauthorized, errors.ErrMissingToken.Error())
	}
	return principal, ok
}

func listQuery(r *http.Request) (models.TransactionListQuery, error) {
	page, err := u.QueryInt(r, "page")
	if err != nil {
		return models.TransactionListQuery{}, err
	}
	limit, err := u.QueryInt(r, "limit")
	if err != nil {
		return models.TransactionListQuery{}, err
	}
	q := r.URL.Query()
	return models.TransactionListQuery{
		Page:   page,
		Limit:  limit,
		Status: q.Get("status"),
		Type:   q.Get("type"),
	}, nil
}
