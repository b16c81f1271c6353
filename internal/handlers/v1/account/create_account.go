package account

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/ingest-server/internal/logging"
)

// CreateAccountInput is the Huma input for creating an account.
type CreateAccountInput struct {
	Body CreateAccountBody
}

type CreateAccountBody struct {
	Name string `json:"name" minLength:"1" maxLength:"200" doc:"Account name, unique per user"`
}

type CreateAccountResponse struct {
	ID string `json:"id" doc:"Account UUID"`
}

type CreateAccountOutput struct {
	Status int
	Body   CreateAccountResponse
}

// accountCreator is the interface for creating accounts.
type accountCreator interface {
	CreateAccount(ctx context.Context, userID, name string) (uuid.UUID, error)
}

// CreateAccountHandler handles POST /v1/accounts.
type CreateAccountHandler struct {
	AccountService accountCreator
}

func NewCreateAccountHandler(svc accountCreator) *CreateAccountHandler {
	return &CreateAccountHandler{AccountService: svc}
}

func (h *CreateAccountHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "create-account",
		Method:      http.MethodPost,
		Path:        "/v1/accounts",
		Summary:     "Create an account",
		Description: "Creates an account with the given name, or returns the existing account of that name.",
		Tags:        []string{"Accounts"},
	}, h.handle)
}

func (h *CreateAccountHandler) handle(ctx context.Context, input *CreateAccountInput) (*CreateAccountOutput, error) {
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	logData := logging.GetLogData(ctx)

	stopTimer := logData.AddTiming("createAccountMs")
	id, err := h.AccountService.CreateAccount(ctx, userID, input.Body.Name)
	stopTimer()
	if err != nil {
		return nil, apierror.From(err, "failed to create account")
	}

	logData.AddData("accountID", id.String())

	return &CreateAccountOutput{
		Status: http.StatusCreated,
		Body:   CreateAccountResponse{ID: id.String()},
	}, nil
}
