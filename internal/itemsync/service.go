package itemsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/operator"
	"github.com/carson-networks/ingest-server/internal/operator/actions"
	"github.com/carson-networks/ingest-server/internal/provider/plaid"
	"github.com/carson-networks/ingest-server/internal/storage"
)

const (
	// AccountKind namespaces local account ids derived from provider account ids.
	AccountKind = "plaid"

	disconnectedMessage = "disconnected by user"
)

// Webhook is the provider's notification body.
type Webhook struct {
	WebhookType string        `json:"webhook_type"`
	WebhookCode string        `json:"webhook_code"`
	ItemID      string        `json:"item_id"`
	Error       *WebhookError `json:"error,omitempty"`
}

type WebhookError struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Service manages linked items and schedules their syncs.
type Service struct {
	store       storage.Store
	executor    operator.Executor
	jobs        jobs.Store
	provider    plaid.Provider
	log         logrus.FieldLogger
	maxAttempts int
	now         func() time.Time
}

func NewService(
	store storage.Store,
	executor operator.Executor,
	jobStore jobs.Store,
	provider plaid.Provider,
	maxAttempts int,
	log logrus.FieldLogger,
) *Service {
	return &Service{
		store:       store,
		executor:    executor,
		jobs:        jobStore,
		provider:    provider,
		log:         log,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListItems returns the user's linked items.
func (s *Service) ListItems(ctx context.Context, userID string) ([]*ledger.LinkedItem, error) {
	return s.store.Read().Items.ListByUser(ctx, userID)
}

// TriggerSync queues a sync for one of the user's active items.
func (s *Service) TriggerSync(ctx context.Context, userID, itemID string) (*jobs.Job, error) {
	item, err := s.store.Read().Items.Get(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != ledger.ItemActive {
		return nil, fmt.Errorf("item %s is %s: %w", itemID, item.Status, ledger.ErrItemNotActive)
	}
	return s.enqueue(ctx, item)
}

// LinkItem exchanges a public token, stores the item and its accounts, and
// queues the initial sync.
func (s *Service) LinkItem(ctx context.Context, userID, publicToken string) (*ledger.LinkedItem, *jobs.Job, error) {
	exchange, err := s.provider.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, nil, fmt.Errorf("exchange public token: %w", err)
	}

	institution := ""
	if info, err := s.provider.GetItem(ctx, exchange.AccessToken); err != nil {
		s.log.WithField("itemId", exchange.ItemID).WithError(err).Warn("ItemService.LinkItem.institution")
	} else {
		institution = info.Institution.Name
	}

	providerAccounts, err := s.provider.GetAccounts(ctx, exchange.AccessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("get accounts: %w", err)
	}

	now := s.now()
	item := ledger.LinkedItem{
		ItemID:          exchange.ItemID,
		UserID:          userID,
		AccessToken:     exchange.AccessToken,
		InstitutionName: institution,
		Status:          ledger.ItemActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	action := &actions.UpsertItem{
		Item:     item,
		Accounts: linkedAccounts(userID, exchange.ItemID, providerAccounts),
	}
	if err := s.executor.Process(ctx, action); err != nil {
		return nil, nil, fmt.Errorf("store item: %w", err)
	}

	stored, err := s.store.Read().Items.Get(ctx, userID, exchange.ItemID)
	if err != nil {
		return nil, nil, err
	}
	job, err := s.enqueue(ctx, stored)
	if err != nil {
		return nil, nil, err
	}
	return stored, job, nil
}

// Disconnect revokes the item at the provider when possible and marks it
// unusable either way.
func (s *Service) Disconnect(ctx context.Context, userID, itemID string) error {
	item, err := s.store.Read().Items.Get(ctx, userID, itemID)
	if err != nil {
		return err
	}

	if err := s.provider.RemoveItem(ctx, item.AccessToken); err != nil {
		s.log.WithFields(logrus.Fields{
			"userId": userID,
			"itemId": itemID,
		}).WithError(err).Warn("ItemService.Disconnect.revoke")
	}

	return s.executor.Process(ctx, &actions.SetItemStatus{
		UserID:  userID,
		ItemID:  itemID,
		Status:  ledger.ItemError,
		Message: disconnectedMessage,
		Now:     s.now(),
	})
}

// HandleWebhook applies a provider notification. Unknown items and codes
// are ignored.
func (s *Service) HandleWebhook(ctx context.Context, hook Webhook) error {
	log := s.log.WithFields(logrus.Fields{
		"itemId":      hook.ItemID,
		"webhookType": hook.WebhookType,
		"webhookCode": hook.WebhookCode,
	})

	item, err := s.store.Read().Items.FindByItemID(ctx, hook.ItemID)
	if errors.Is(err, ledger.ErrNotFound) {
		log.Info("ItemService.HandleWebhook.unknownItem")
		return nil
	}
	if err != nil {
		return err
	}

	switch hook.WebhookType {
	case "TRANSACTIONS":
		switch hook.WebhookCode {
		case "INITIAL_UPDATE", "HISTORICAL_UPDATE", "DEFAULT_UPDATE", "SYNC_UPDATES_AVAILABLE":
			if item.Status != ledger.ItemActive {
				log.Info("ItemService.HandleWebhook.inactive")
				return nil
			}
			_, err := s.enqueue(ctx, item)
			return err
		}
	case "ITEM":
		switch hook.WebhookCode {
		case "ERROR":
			message := "item error"
			if hook.Error != nil {
				message = hook.Error.ErrorMessage
				if hook.Error.ErrorCode != "" {
					message = hook.Error.ErrorCode + ": " + message
				}
			}
			return s.setStatus(ctx, item, ledger.ItemError, message)
		case "PENDING_EXPIRATION":
			return s.setStatus(ctx, item, ledger.ItemPendingExpiration, "")
		case "USER_PERMISSION_REVOKED":
			return s.setStatus(ctx, item, ledger.ItemRevoked, "")
		}
	}

	log.Info("ItemService.HandleWebhook.ignored")
	return nil
}

// EnqueueDue queues a sync for every active item not synced since cutoff.
func (s *Service) EnqueueDue(ctx context.Context, cutoff time.Time) (int, error) {
	items, err := s.store.Read().Items.ListDueForSync(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, item := range items {
		if _, err := s.enqueue(ctx, item); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

func (s *Service) setStatus(ctx context.Context, item *ledger.LinkedItem, status ledger.ItemStatus, message string) error {
	return s.executor.Process(ctx, &actions.SetItemStatus{
		UserID:  item.UserID,
		ItemID:  item.ItemID,
		Status:  status,
		Message: message,
		Now:     s.now(),
	})
}

func (s *Service) enqueue(ctx context.Context, item *ledger.LinkedItem) (*jobs.Job, error) {
	job := &jobs.Job{
		JobID:       jobs.NewJobID(),
		UserID:      item.UserID,
		Type:        jobs.TypePlaidSync,
		Status:      jobs.StatusQueued,
		ItemID:      item.ItemID,
		AccessToken: item.AccessToken,
		InitialSync: item.Cursor == "",
		MaxAttempts: s.maxAttempts,
		CreatedAt:   s.now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue sync for item %s: %w", item.ItemID, err)
	}
	s.log.WithFields(logrus.Fields{
		"jobId":       job.JobID,
		"itemId":      item.ItemID,
		"initialSync": job.InitialSync,
	}).Info("ItemService.enqueue")
	return job, nil
}

func linkedAccounts(userID, itemID string, accounts []plaid.Account) []ledger.LinkedAccount {
	out := make([]ledger.LinkedAccount, 0, len(accounts))
	for _, acct := range accounts {
		name := acct.Name
		if name == "" {
			name = acct.OfficialName
		}
		out = append(out, ledger.LinkedAccount{
			UserID:            userID,
			ItemID:            itemID,
			ProviderAccountID: acct.AccountID,
			AccountID:         ledger.AccountID(userID, AccountKind, acct.AccountID),
			Name:              name,
			Mask:              acct.Mask,
		})
	}
	return out
}
