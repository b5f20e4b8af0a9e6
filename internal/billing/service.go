package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rentiva/rentiva-backend/internal/companies"
	"github.com/rentiva/rentiva-backend/internal/identity"
	"github.com/rentiva/rentiva-backend/internal/notifier"
	"github.com/rentiva/rentiva-backend/internal/subscriptions"
	"github.com/rentiva/rentiva-backend/pkg/db"
	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/enums"
	pkgerrors "github.com/rentiva/rentiva-backend/pkg/errors"
	"github.com/rentiva/rentiva-backend/pkg/logger"
	"github.com/rentiva/rentiva-backend/pkg/pagination"
	"github.com/rentiva/rentiva-backend/pkg/validate"
)

const (
	// invoiceDueDays is the payment term granted on every invoice.
	invoiceDueDays = 30
	// invoiceNumberAttempts bounds retries when the store rejects a
	// duplicate invoice number.
	invoiceNumberAttempts = 3

	invoiceNumberIndex = "idx_payments_invoice_number"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repo          Repository
	Subscriptions subscriptions.Repository
	Companies     companies.Repository
	Notifier      notifier.Notifier
	InvoicePrefix string
	Now           func() time.Time
}

// Service generates invoices and settles payments against subscriptions.
type Service struct {
	logg          *logger.Logger
	db            txRunner
	repo          Repository
	subscriptions subscriptions.Repository
	companies     companies.Repository
	notifier      notifier.Notifier
	invoicePrefix string
	now           func() time.Time
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner is required")
	}
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Subscriptions == nil {
		return nil, errors.New("subscription repo is required")
	}
	if params.Companies == nil {
		return nil, errors.New("company repo is required")
	}
	prefix := params.InvoicePrefix
	if prefix == "" {
		prefix = "INV"
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repo,
		subscriptions: params.Subscriptions,
		companies:     params.Companies,
		notifier:      params.Notifier,
		invoicePrefix: prefix,
		now:           now,
	}, nil
}

// GenerateInvoice creates the PENDING payment for the subscription's current
// billing cycle. The due date is thirty days from the last renewal, or from
// the start date when the subscription has never renewed.
func (s *Service) GenerateInvoice(ctx context.Context, subscriptionID uuid.UUID) (*models.Payment, error) {
	sub, err := s.subscriptions.FindSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	company, err := s.companies.FindCompanyByID(ctx, sub.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	if company == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
	}

	base := sub.StartDate
	if sub.RenewedAt != nil {
		base = *sub.RenewedAt
	}
	dueDate := base.AddDate(0, 0, invoiceDueDays)

	var payment *models.Payment
	for attempt := 1; attempt <= invoiceNumberAttempts; attempt++ {
		candidate := &models.Payment{
			SubscriptionID: sub.ID,
			CompanyID:      sub.CompanyID,
			Amount:         sub.Amount,
			Status:         enums.PaymentStatusPending,
			DueDate:        dueDate,
			InvoiceNumber:  NewInvoiceNumber(s.invoicePrefix, sub.CompanyID, s.now()),
		}
		err = s.repo.CreatePayment(ctx, candidate)
		if err == nil {
			payment = candidate
			break
		}
		if db.IsUniqueViolation(err, invoiceNumberIndex) && attempt < invoiceNumberAttempts {
			continue
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	logCtx := s.logg.WithCompanyID(ctx, sub.CompanyID.String())
	logCtx = s.logg.WithSubscriptionID(logCtx, sub.ID.String())
	s.logg.Info(logCtx, "invoice generated")

	s.notifyBestEffort(ctx, company.BillingEmail,
		fmt.Sprintf("Invoice %s", payment.InvoiceNumber),
		fmt.Sprintf("Invoice %s for %s is due on %s.",
			payment.InvoiceNumber, payment.Amount.StringFixed(2), dueDate.UTC().Format("2006-01-02")))
	return payment, nil
}

// RecordPaymentParams describe an operator-entered settlement.
type RecordPaymentParams struct {
	PaymentID uuid.UUID       `json:"paymentId" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	// PaidAt defaults to now when the operator does not backdate.
	PaidAt *time.Time `json:"paidAt,omitempty"`
	// InvoiceNumber replaces the generated number, for payments reconciled
	// against an externally issued invoice.
	InvoiceNumber *string `json:"invoiceNumber,omitempty"`
	InvoiceURL    *string `json:"invoiceUrl,omitempty"`
}

// RecordPayment settles a pending payment. Partial amounts are rejected
// outright. When the owning subscription sits suspended, settling the
// payment cascades subscription and company back to active in the same
// transaction.
func (s *Service) RecordPayment(ctx context.Context, caller identity.Principal, params RecordPaymentParams) (*models.Payment, error) {
	if err := identity.RequireOperator(caller); err != nil {
		return nil, err
	}
	if err := validate.Struct(params); err != nil {
		return nil, err
	}

	payment, err := s.repo.FindPaymentByID(ctx, params.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if params.Amount.LessThan(payment.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "partial payments are not accepted").
			WithDetails(map[string]any{
				"amountDue": payment.Amount.StringFixed(2),
				"received":  params.Amount.StringFixed(2),
			})
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is already settled").
			WithDetails(map[string]any{"status": payment.Status.String()})
	}

	paidAt := s.now().UTC()
	if params.PaidAt != nil {
		paidAt = params.PaidAt.UTC()
	}
	updates := map[string]any{
		"status":  enums.PaymentStatusPaid,
		"paid_at": paidAt,
	}
	if params.InvoiceNumber != nil {
		updates["invoice_number"] = *params.InvoiceNumber
	}
	if params.InvoiceURL != nil {
		updates["invoice_url"] = *params.InvoiceURL
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).MarkPaymentPaid(ctx, payment.ID, updates)
		if err != nil {
			return fmt.Errorf("settle payment: %w", err)
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment status changed concurrently")
		}
		return s.clearSuspension(ctx, tx, payment.SubscriptionID)
	})
	if err != nil {
		return nil, err
	}

	settled := *payment
	settled.Status = enums.PaymentStatusPaid
	settled.PaidAt = &paidAt
	if params.InvoiceNumber != nil {
		settled.InvoiceNumber = *params.InvoiceNumber
	}
	if params.InvoiceURL != nil {
		settled.InvoiceURL = params.InvoiceURL
	}

	logCtx := s.logg.WithCompanyID(ctx, payment.CompanyID.String())
	logCtx = s.logg.WithField(logCtx, "invoice_number", payment.InvoiceNumber)
	s.logg.Info(logCtx, "payment recorded")

	if company, err := s.companies.FindCompanyByID(ctx, payment.CompanyID); err == nil && company != nil {
		s.notifyBestEffort(ctx, company.BillingEmail,
			fmt.Sprintf("Payment received for %s", payment.InvoiceNumber),
			fmt.Sprintf("Payment of %s for invoice %s was received on %s.",
				params.Amount.StringFixed(2), payment.InvoiceNumber, paidAt.Format("2006-01-02")))
	}
	return &settled, nil
}

// clearSuspension cascades a settled payment onto a suspended subscription,
// re-activating it and its company inside the caller's transaction.
func (s *Service) clearSuspension(ctx context.Context, tx *gorm.DB, subscriptionID uuid.UUID) error {
	sub, err := s.subscriptions.WithTx(tx).FindSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil || sub.Status != enums.SubscriptionStatusSuspended {
		return nil
	}
	rows, err := s.subscriptions.WithTx(tx).UpdateSubscriptionWhereStatus(ctx, sub.ID,
		[]enums.SubscriptionStatus{enums.SubscriptionStatusSuspended},
		map[string]any{"status": enums.SubscriptionStatusActive})
	if err != nil {
		return fmt.Errorf("reactivate subscription: %w", err)
	}
	if rows == 0 {
		return nil
	}
	if _, err := s.companies.WithTx(tx).UpdateCompanyWhereStatus(ctx, sub.CompanyID,
		[]enums.CompanyStatus{
			enums.CompanyStatusActive,
			enums.CompanyStatusSuspended,
			enums.CompanyStatusExpired,
		},
		map[string]any{
			"status":           enums.CompanyStatusActive,
			"suspended_at":     nil,
			"suspended_reason": nil,
		}); err != nil {
		return fmt.Errorf("reactivate company: %w", err)
	}
	return nil
}

// ListDueInvoices returns pending payments whose due date has passed, for
// the operator to chase.
func (s *Service) ListDueInvoices(ctx context.Context, caller identity.Principal) ([]models.Payment, error) {
	if err := identity.RequireOperator(caller); err != nil {
		return nil, err
	}
	return s.repo.ListDuePayments(ctx, s.now().UTC())
}

// ListCompanyInvoicesParams scope the invoice history listing.
type ListCompanyInvoicesParams struct {
	CompanyID uuid.UUID `json:"companyId" validate:"required"`
	Limit     int       `json:"limit,omitempty"`
	Cursor    string    `json:"cursor,omitempty"`
	Status    *enums.PaymentStatus
}

// ListCompanyInvoices returns a company's invoice history, newest due date
// first. Operators see any company; a company admin only their own.
func (s *Service) ListCompanyInvoices(ctx context.Context, caller identity.Principal, params ListCompanyInvoicesParams) ([]models.Payment, *pagination.Cursor, error) {
	if err := validate.Struct(params); err != nil {
		return nil, nil, err
	}
	if !caller.CanViewCompany(params.CompanyID) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller may not view this company")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return s.repo.ListCompanyPayments(ctx, ListCompanyPaymentsQuery{
		CompanyID: params.CompanyID,
		Limit:     params.Limit,
		Cursor:    cursor,
		Status:    params.Status,
	})
}

func (s *Service) notifyBestEffort(ctx context.Context, recipient, subject, body string) {
	if s.notifier == nil || recipient == "" {
		return
	}
	if err := s.notifier.Notify(ctx, recipient, subject, body); err != nil {
		s.logg.Error(ctx, "notification delivery failed", err)
	}
}
