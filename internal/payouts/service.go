package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive-backend/internal/profiles"
	"github.com/taskhive/taskhive-backend/internal/tasks"
	"github.com/taskhive/taskhive-backend/pkg/airwallex"
	"github.com/taskhive/taskhive-backend/pkg/db/models"
	"github.com/taskhive/taskhive-backend/pkg/enums"
	pkgerrors "github.com/taskhive/taskhive-backend/pkg/errors"
	"github.com/taskhive/taskhive-backend/pkg/logger"
	"github.com/taskhive/taskhive-backend/pkg/paypal"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// airwallexAPI is the slice of the Airwallex client payouts need.
type airwallexAPI interface {
	CreateTransfer(ctx context.Context, params airwallex.CreateTransferParams) (*airwallex.Transfer, error)
	GetTransfer(ctx context.Context, id string) (*airwallex.Transfer, error)
}

// paypalAPI is the slice of the PayPal client payouts need.
type paypalAPI interface {
	CreatePayoutBatch(ctx context.Context, params paypal.CreatePayoutParams) (*paypal.PayoutBatch, error)
	GetPayoutBatch(ctx context.Context, batchID string) (*paypal.PayoutBatch, error)
}

// ServiceParams groups dependencies for the payout service.
type ServiceParams struct {
	ActiveProvider enums.PaymentProvider
	Sandbox        bool
	Tasks          tasks.Repository
	Profiles       profiles.Repository
	Records        Repository
	Tx             txRunner
	Airwallex      airwallexAPI
	PayPal         paypalAPI
	Logger         *logger.Logger
}

// Service moves money to helpers through the active provider.
type Service struct {
	provider  enums.PaymentProvider
	sandbox   bool
	tasks     tasks.Repository
	profiles  profiles.Repository
	records   Repository
	tx        txRunner
	airwallex airwallexAPI
	paypal    paypalAPI
	logg      *logger.Logger
}

// NewService builds a payout service.
func NewService(params ServiceParams) (*Service, error) {
	if !params.ActiveProvider.IsValid() {
		return nil, errors.New("active provider is required")
	}
	if params.Tasks == nil {
		return nil, errors.New("tasks repository is required")
	}
	if params.Profiles == nil {
		return nil, errors.New("profiles repository is required")
	}
	if params.Records == nil {
		return nil, errors.New("payout records repository is required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	return &Service{
		provider:  params.ActiveProvider,
		sandbox:   params.Sandbox,
		tasks:     params.Tasks,
		profiles:  params.Profiles,
		records:   params.Records,
		tx:        params.Tx,
		airwallex: params.Airwallex,
		paypal:    params.PayPal,
		logg:      params.Logger,
	}, nil
}

// CreatePayoutInput identifies the recipient and the amount. At least one of
// TaskID/HelperID is required.
type CreatePayoutInput struct {
	TaskID         *uuid.UUID
	HelperID       *uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	PayoutEmail    string
	IdempotencyKey string
	SimulatePayout bool
}

// PayoutResult is the provider-agnostic payout shape.
type PayoutResult struct {
	Success  bool               `json:"success"`
	PayoutID *uuid.UUID         `json:"payout_id"`
	Status   enums.PayoutStatus `json:"status,omitempty"`
	BatchRef string             `json:"batch_ref,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// CreatePayout initiates a transfer to the helper through the active provider.
// The idempotency key guards twice: forwarded to the provider's dedup
// mechanism and checked against payout_records before inserting.
func (s *Service) CreatePayout(ctx context.Context, input CreatePayoutInput) (*PayoutResult, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	if input.TaskID == nil && input.HelperID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "taskId or helperId is required")
	}

	// Connected accounts settle out-of-band; there is nothing to initiate.
	if s.provider == enums.ProviderStripe {
		return &PayoutResult{
			Success: true,
			Message: "payout is processed automatically to the helper's connected account",
		}, nil
	}

	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		existing, err := s.records.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking idempotency key")
		}
		if existing != nil {
			return &PayoutResult{
				Success:  true,
				PayoutID: &existing.ID,
				Status:   existing.Status,
				BatchRef: derefStr(existing.BatchRef),
				Message:  "payout already initiated for this idempotency key",
			}, nil
		}
	}

	task, helper, err := s.resolveRecipient(ctx, input)
	if err != nil {
		return nil, err
	}

	switch s.provider {
	case enums.ProviderPayPal:
		return s.createPayPalPayout(ctx, task, helper, input)
	case enums.ProviderAirwallex:
		return s.createAirwallexPayout(ctx, task, helper, input)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeConfig, fmt.Sprintf("no payout flow for provider %q", s.provider))
	}
}

func (s *Service) resolveRecipient(ctx context.Context, input CreatePayoutInput) (*models.Task, *models.User, error) {
	var task *models.Task
	if input.TaskID != nil {
		found, err := s.tasks.FindByID(ctx, *input.TaskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
			}
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading task")
		}
		task = found
	}

	helperID, err := profiles.HelperForTask(task, input.HelperID)
	if err != nil {
		return nil, nil, err
	}

	helper, err := s.profiles.FindByID(ctx, helperID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "helper profile not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading helper profile")
	}
	return task, helper, nil
}

func (s *Service) initialStatus(simulate bool) enums.PayoutStatus {
	if s.sandbox || simulate {
		return enums.PayoutStatusSimulated
	}
	return enums.PayoutStatusProcessing
}

func (s *Service) createPayPalPayout(ctx context.Context, task *models.Task, helper *models.User, input CreatePayoutInput) (*PayoutResult, error) {
	if s.paypal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "paypal client not configured")
	}

	// explicit email param wins; the stored credential is only a fallback, so
	// helpers without one can still be paid to a caller-supplied address
	email := strings.TrimSpace(input.PayoutEmail)
	if email == "" {
		cred, err := profiles.ResolvePayoutCredential(helper, enums.ProviderPayPal)
		if err != nil {
			return nil, err
		}
		email = cred.PayoutEmail
	}

	batchID := strings.TrimSpace(input.IdempotencyKey)
	if batchID == "" {
		batchID = uuid.NewString()
	}

	batch, err := s.paypal.CreatePayoutBatch(ctx, paypal.CreatePayoutParams{
		SenderBatchID: batchID,
		ReceiverEmail: email,
		Amount:        input.Amount,
		Currency:      input.Currency,
		Note:          payoutNote(task),
	})
	if err != nil {
		return nil, wrapProviderErr(err, "creating paypal payout batch")
	}

	record, err := s.persistInitiation(ctx, task, helper, input, enums.ProviderPayPal, batch.BatchID, &batch.BatchID)
	if err != nil {
		return nil, err
	}

	return &PayoutResult{
		Success:  true,
		PayoutID: &record.ID,
		Status:   record.Status,
		BatchRef: batch.BatchID,
	}, nil
}

func (s *Service) createAirwallexPayout(ctx context.Context, task *models.Task, helper *models.User, input CreatePayoutInput) (*PayoutResult, error) {
	if s.airwallex == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "airwallex client not configured")
	}

	cred, err := profiles.ResolvePayoutCredential(helper, enums.ProviderAirwallex)
	if err != nil {
		return nil, err
	}

	requestID := strings.TrimSpace(input.IdempotencyKey)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	transfer, err := s.airwallex.CreateTransfer(ctx, airwallex.CreateTransferParams{
		RequestID: requestID,
		Amount:    input.Amount,
		Currency:  input.Currency,
		Beneficiary: airwallex.Beneficiary{
			Name: helper.Name,
			IBAN: cred.BankIBAN,
		},
		Reference: payoutNote(task),
	})
	if err != nil {
		return nil, wrapProviderErr(err, "creating airwallex transfer")
	}

	record, err := s.persistInitiation(ctx, task, helper, input, enums.ProviderAirwallex, transfer.ID, nil)
	if err != nil {
		return nil, err
	}

	return &PayoutResult{
		Success:  true,
		PayoutID: &record.ID,
		Status:   record.Status,
	}, nil
}

// persistInitiation writes the PayoutRecord and links it to the task in one
// transaction.
func (s *Service) persistInitiation(ctx context.Context, task *models.Task, helper *models.User, input CreatePayoutInput, provider enums.PaymentProvider, providerRef string, batchRef *string) (*models.PayoutRecord, error) {
	status := s.initialStatus(input.SimulatePayout)

	record := &models.PayoutRecord{
		HelperID:          helper.ID,
		Amount:            input.Amount,
		Currency:          input.Currency,
		Status:            status,
		Provider:          provider,
		ProviderPayoutRef: providerRef,
		BatchRef:          batchRef,
	}
	if task != nil {
		record.TaskID = &task.ID
	}
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		record.IdempotencyKey = &key
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.records.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}
		if task != nil {
			if _, err := s.tasks.WithTx(tx).SetPayoutRef(ctx, task.ID, record.ID, status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting payout initiation")
	}

	if s.logg != nil {
		logCtx := s.logg.WithProvider(ctx, string(provider))
		s.logg.Info(logCtx, fmt.Sprintf("payout %s initiated (%s)", record.ID, status))
	}
	return record, nil
}

func payoutNote(task *models.Task) string {
	if task == nil {
		return "TaskHive payout"
	}
	return fmt.Sprintf("TaskHive payout for task %s", task.ID)
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func wrapProviderErr(err error, msg string) error {
	if appErr := pkgerrors.As(err); appErr != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
