package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/logging"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

var errInvalidBody = errors.New("invalid request body")

// errorStatuses maps sentinel errors to HTTP statuses. The sentinel's own
// message is what the client sees; wrapped details stay in the logs.
var errorStatuses = []struct {
	err    error
	status int
}{
	{common.ErrWeakCredential, http.StatusUnprocessableEntity},
	{common.ErrInvalidEmail, http.StatusUnprocessableEntity},
	{common.ErrValidation, http.StatusUnprocessableEntity},
	{common.ErrDuplicateEmail, http.StatusConflict},
	{common.ErrInvalidCredentials, http.StatusUnauthorized},
	{common.ErrInvalidOrExpired, http.StatusUnauthorized},
	{common.ErrUserInactive, http.StatusUnauthorized},
	{common.ErrInvalidToken, http.StatusUnauthorized},
	{common.ErrorUnauthorized, http.StatusUnauthorized},
	{common.ErrAccountDeactivated, http.StatusForbidden},
	{common.ErrorNotFound, http.StatusNotFound},
	{common.ErrSelfModification, http.StatusBadRequest},
	{errInvalidBody, http.StatusBadRequest},
	{common.ErrServiceUnavailable, http.StatusServiceUnavailable},
}

// statusFromError returns the HTTP status and client-facing message for err.
func statusFromError(err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail writes the mapped error response. Unmapped errors are logged since
// the client only sees a generic message.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFromError(err)
	log := logging.FromContext(r.Context(), a.log)
	switch {
	case r.Context().Err() != nil:
		log.Debug(r.Context(), "client went away", "error", err)
	case status >= http.StatusInternalServerError:
		log.Error(r.Context(), "request failed", "error", err)
	}
	writeError(w, status, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}
