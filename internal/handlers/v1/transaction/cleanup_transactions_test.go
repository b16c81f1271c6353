package transaction

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/ingest-server/internal/dedup"
	"github.com/carson-networks/ingest-server/internal/service"
)

type mockDuplicateCleaner struct {
	mock.Mock
}

func (m *mockDuplicateCleaner) CleanupUser(ctx context.Context, userID string, dryRun bool) (*service.CleanupResult, error) {
	args := m.Called(ctx, userID, dryRun)
	result, _ := args.Get(0).(*service.CleanupResult)
	return result, args.Error(1)
}

func TestHTTP_CleanupTransactions(t *testing.T) {
	keep := uuid.Must(uuid.NewV4())
	drop := uuid.Must(uuid.NewV4())

	mockSvc := new(mockDuplicateCleaner)
	mockSvc.On("CleanupUser", mock.Anything, testUser, false).Return(&service.CleanupResult{
		UserID:  testUser,
		Groups:  []dedup.CleanupGroup{{Keep: keep, Delete: []uuid.UUID{drop}}},
		Deleted: 1,
	}, nil)

	resp := newTestAPI(t, testUser, NewCleanupTransactionsHandler(mockSvc).Register).
		Post("/v1/transactions/cleanup", map[string]any{})

	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		DryRun  bool           `json:"dryRun"`
		Deleted int64          `json:"deleted"`
		Groups  []CleanupGroup `json:"groups"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.DryRun)
	assert.Equal(t, int64(1), body.Deleted)
	require.Len(t, body.Groups, 1)
	assert.Equal(t, keep.String(), body.Groups[0].Keep)
	assert.Equal(t, []string{drop.String()}, body.Groups[0].Delete)
}

func TestHTTP_CleanupTransactions_DryRun(t *testing.T) {
	mockSvc := new(mockDuplicateCleaner)
	mockSvc.On("CleanupUser", mock.Anything, testUser, true).
		Return(&service.CleanupResult{UserID: testUser}, nil)

	resp := newTestAPI(t, testUser, NewCleanupTransactionsHandler(mockSvc).Register).
		Post("/v1/transactions/cleanup", map[string]any{"dryRun": true})

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"groups":[]`)
	mockSvc.AssertExpectations(t)
}
