package api

import (
	"errors"
	"net/http"

	"github.com/himawari-tools/line-secretary/internal/api/respond"
	"github.com/himawari-tools/line-secretary/internal/model"
)

// writeDomainError maps the model sentinel errors to HTTP statuses.
// Anything unrecognized becomes a 500 with a generic message so storage
// details never leak to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrForbidden):
		respond.WriteForbidden(w, err.Error())
	case errors.Is(err, model.ErrConflict):
		respond.WriteConflict(w, err.Error())
	case errors.Is(err, model.ErrQuotaExceeded):
		respond.WriteTooManyRequests(w, err.Error())
	default:
		respond.WriteInternalError(w, "internal error")
	}
}
