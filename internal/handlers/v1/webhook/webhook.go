package webhook

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/ingest-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/ingest-server/internal/itemsync"
	"github.com/carson-networks/ingest-server/internal/logging"
)

// OperationID is exempt from bearer authentication; callers are checked
// against the shared secret instead.
const OperationID = "plaid-webhook"

const SecretHeader = "X-Webhook-Secret"

type webhookService interface {
	HandleWebhook(ctx context.Context, hook itemsync.Webhook) error
}

type Handler struct {
	ItemService webhookService
	secret      string
}

// NewHandler builds the provider webhook handler. An empty secret accepts
// every caller.
func NewHandler(svc webhookService, secret string) *Handler {
	return &Handler{ItemService: svc, secret: secret}
}

func (h *Handler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: OperationID,
		Method:      http.MethodPost,
		Path:        "/v1/webhooks/plaid",
		Summary:     "Provider webhook",
		Description: "Receives item and transaction notifications from the provider.",
		Tags:        []string{"Webhooks"},
	}, h.receive)
}

type WebhookInput struct {
	Secret string `header:"X-Webhook-Secret"`
	Body   itemsync.Webhook
}

type WebhookOutput struct {
	Body struct {
		Received bool `json:"received"`
	}
}

func (h *Handler) receive(ctx context.Context, input *WebhookInput) (*WebhookOutput, error) {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(input.Secret), []byte(h.secret)) != 1 {
		return nil, huma.Error401Unauthorized("invalid webhook secret")
	}

	logData := logging.GetLogData(ctx)
	logData.AddData("webhookType", input.Body.WebhookType)
	logData.AddData("webhookCode", input.Body.WebhookCode)

	if err := h.ItemService.HandleWebhook(ctx, input.Body); err != nil {
		return nil, apierror.From(err, "failed to handle webhook")
	}

	out := &WebhookOutput{}
	out.Body.Received = true
	return out, nil
}
