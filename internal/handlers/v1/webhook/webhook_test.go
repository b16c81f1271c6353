package webhook

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/carson-networks/ingest-server/internal/itemsync"
)

type mockWebhookService struct {
	mock.Mock
}

func (m *mockWebhookService) HandleWebhook(ctx context.Context, hook itemsync.Webhook) error {
	return m.Called(ctx, hook).Error(0)
}

func newTestAPI(t *testing.T, svc *mockWebhookService, secret string) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	NewHandler(svc, secret).Register(api)
	return api
}

var syncUpdates = map[string]any{
	"webhook_type": "TRANSACTIONS",
	"webhook_code": "SYNC_UPDATES_AVAILABLE",
	"item_id":      "item-1",
}

func TestHTTP_Webhook_Delivers(t *testing.T) {
	svc := new(mockWebhookService)
	svc.On("HandleWebhook", mock.Anything, itemsync.Webhook{
		WebhookType: "TRANSACTIONS",
		WebhookCode: "SYNC_UPDATES_AVAILABLE",
		ItemID:      "item-1",
	}).Return(nil)

	resp := newTestAPI(t, svc, "").Post("/v1/webhooks/plaid", syncUpdates)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"received":true`)
	svc.AssertExpectations(t)
}

func TestHTTP_Webhook_RequiresSecret(t *testing.T) {
	svc := new(mockWebhookService)
	svc.On("HandleWebhook", mock.Anything, mock.Anything).Return(nil)
	api := newTestAPI(t, svc, "shh")

	assert.Equal(t, http.StatusUnauthorized, api.Post("/v1/webhooks/plaid", syncUpdates).Code)
	assert.Equal(t, http.StatusUnauthorized, api.Post("/v1/webhooks/plaid", "X-Webhook-Secret: wrong", syncUpdates).Code)
	assert.Equal(t, http.StatusOK, api.Post("/v1/webhooks/plaid", "X-Webhook-Secret: shh", syncUpdates).Code)
	svc.AssertNumberOfCalls(t, "HandleWebhook", 1)
}

func TestHTTP_Webhook_ServiceFailure(t *testing.T) {
	svc := new(mockWebhookService)
	svc.On("HandleWebhook", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	resp := newTestAPI(t, svc, "").Post("/v1/webhooks/plaid", syncUpdates)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
