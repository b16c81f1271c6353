package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/ingest-server/internal/auth"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/service"
)

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var statusErr huma.StatusError
	require.True(t, errors.As(err, &statusErr))
	return statusErr.GetStatus()
}

func TestFrom(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"not found":     {fmt.Errorf("job x: %w", ledger.ErrNotFound), http.StatusNotFound},
		"invalid":       {fmt.Errorf("%w: batchSize", service.ErrInvalidRequest), http.StatusBadRequest},
		"inactive item": {fmt.Errorf("item: %w", ledger.ErrItemNotActive), http.StatusBadRequest},
		"transition":    {ledger.ErrInvalidTransition, http.StatusConflict},
		"rate limited":  {&ledger.RateLimitExceeded{Limit: 5}, http.StatusTooManyRequests},
		"provider":      {&ledger.TerminalProviderError{Code: "ITEM_LOGIN_REQUIRED"}, http.StatusBadGateway},
		"other":         {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, statusOf(t, From(tc.err, "failed")), name)
	}
}

func TestRequireUser(t *testing.T) {
	_, err := RequireUser(context.Background())
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	userID, err := RequireUser(auth.WithUserID(context.Background(), "user-1"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}
