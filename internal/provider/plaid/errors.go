package plaid

import (
	"errors"
	"fmt"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

// APIError is the provider's error body.
type APIError struct {
	Status       int    `json:"-"`
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RequestID    string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plaid %d %s/%s: %s", e.Status, e.ErrorType, e.ErrorCode, e.ErrorMessage)
}

const (
	// CodeMutationDuringPagination means the item changed while a sync was
	// paging. The whole pagination must restart from its first cursor.
	CodeMutationDuringPagination = "TRANSACTIONS_SYNC_MUTATION_DURING_PAGINATION"
	codeProductNotReady          = "PRODUCT_NOT_READY"
)

// Temporary reports whether running the job again later may succeed even
// when repeating the same request right away cannot.
func (e *APIError) Temporary() bool {
	switch e.ErrorCode {
	case CodeMutationDuringPagination, codeProductNotReady:
		return true
	}
	return IsRetryable(e)
}

// Codes that need the user to re-link or that retrying cannot change.
var terminalCodes = map[string]bool{
	"ITEM_LOGIN_REQUIRED":     true,
	"INVALID_ACCESS_TOKEN":    true,
	"INVALID_PUBLIC_TOKEN":    true,
	"ITEM_NOT_FOUND":          true,
	"ACCESS_NOT_GRANTED":      true,
	"USER_PERMISSION_REVOKED": true,
	"INVALID_CREDENTIALS":     true,
	"ITEM_LOCKED":             true,
	"NO_ACCOUNTS":             true,
	"INVALID_API_KEYS":        true,
}

var terminalTypes = map[string]bool{
	"INVALID_REQUEST": true,
	"INVALID_INPUT":   true,
}

// classify turns an API error into a TerminalProviderError when retrying
// cannot help. Everything else is returned as is and treated as transient.
func classify(apiErr *APIError) error {
	if terminalCodes[apiErr.ErrorCode] || terminalTypes[apiErr.ErrorType] {
		return &ledger.TerminalProviderError{Code: apiErr.ErrorCode, Message: apiErr.ErrorMessage}
	}
	return apiErr
}

// IsPaginationMutation reports whether err asks for the sync to restart
// from the cursor it started with.
func IsPaginationMutation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == CodeMutationDuringPagination
}

// IsRetryable reports whether a provider call may succeed if repeated with
// the same arguments.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ledger.IsTerminalProvider(err) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != 429 {
		return apiErr.ErrorType == "RATE_LIMIT_EXCEEDED"
	}
	return true
}
