package account

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/ingest-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/service"
)

type ListAccountsResponseBody struct {
	Accounts []Account `json:"accounts" doc:"Accounts of the caller"`
}

type ListAccountsOutput struct {
	Body ListAccountsResponseBody
}

// accountLister is the interface for listing accounts.
type accountLister interface {
	ListAccounts(ctx context.Context, userID string) ([]service.Account, error)
}

// ListAccountsHandler handles GET /v1/accounts.
type ListAccountsHandler struct {
	AccountService accountLister
}

func NewListAccountsHandler(svc accountLister) *ListAccountsHandler {
	return &ListAccountsHandler{AccountService: svc}
}

func (h *ListAccountsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-accounts",
		Method:      http.MethodGet,
		Path:        "/v1/accounts",
		Summary:     "List accounts",
		Description: "Returns every account owned by the caller.",
		Tags:        []string{"Accounts"},
	}, h.handle)
}

func (h *ListAccountsHandler) handle(ctx context.Context, _ *struct{}) (*ListAccountsOutput, error) {
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	logData := logging.GetLogData(ctx)

	stopTimer := logData.AddTiming("listAccountsMs")
	accounts, err := h.AccountService.ListAccounts(ctx, userID)
	stopTimer()
	if err != nil {
		return nil, apierror.From(err, "failed to list accounts")
	}

	logData.AddData("accountCount", len(accounts))

	resp := ListAccountsResponseBody{
		Accounts: make([]Account, len(accounts)),
	}
	for i, acc := range accounts {
		resp.Accounts[i] = toAccount(acc)
	}
	return &ListAccountsOutput{Body: resp}, nil
}
