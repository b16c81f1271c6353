// Package apierror maps domain errors onto huma status errors.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/ingest-server/internal/auth"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/service"
)

// From converts err into a huma error, using message as the public text
// for failures the caller cannot fix.
func From(err error, message string) error {
	var rateLimited *ledger.RateLimitExceeded
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return huma.NewError(http.StatusNotFound, "not found", err)
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, ledger.ErrItemNotActive),
		errors.Is(err, ledger.ErrUnknownFormat):
		return huma.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInvalidTransition), errors.Is(err, ledger.ErrJobClaimed):
		return huma.NewError(http.StatusConflict, err.Error())
	case errors.As(err, &rateLimited):
		return huma.NewError(http.StatusTooManyRequests, err.Error())
	case ledger.IsTerminalProvider(err):
		return huma.NewError(http.StatusBadGateway, message, err)
	}
	return huma.NewError(http.StatusInternalServerError, message, err)
}

// RequireUser returns the authenticated user or a 401.
func RequireUser(ctx context.Context) (string, error) {
	userID := auth.UserID(ctx)
	if userID == "" {
		return "", huma.Error401Unauthorized("authentication required")
	}
	return userID, nil
}
