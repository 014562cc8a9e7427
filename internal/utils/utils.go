package utils

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/riteshkumar/peer-transfers/internal/errors"
	"github.com/riteshkumar/peer-transfers/internal/models"
)

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func WriteError(w http.ResponseWriter, status int, kind errors.Kind, message string) {
	response := models.ErrorResponse{
		Error:   string(kind),
		Message: message,
	}
	WriteJSON(w, status, response)
}

// StatusForKind maps an error kind to its HTTP status code.
func StatusForKind(kind errors.Kind) int {
	switch kind {
	case errors.KindValidation, errors.KindInsufficientFunds:
		return http.StatusBadRequest
	case errors.KindUnauthorized:
		return http.StatusUnauthorized
	case errors.KindForbidden:
		return http.StatusForbidden
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindAlreadyProcessed, errors.KindAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// QueryInt returns the integer query parameter key, or 0 when it is absent.
func QueryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError(key, "must be an integer")
	}
	return n, nil
}
