package subscriptions

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
	"github.com/rentiva/rentiva-backend/internal/plans"
	"github.com/rentiva/rentiva-backend/pkg/db/models"
	"github.com/rentiva/rentiva-backend/pkg/enums"
	pkgerrors "github.com/rentiva/rentiva-backend/pkg/errors"
	"github.com/rentiva/rentiva-backend/pkg/logger"
	"github.com/rentiva/rentiva-backend/pkg/validate"
)

const restoreWindowDays = 90

const suspendedReasonExpired = "subscription expired"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the subscription lifecycle service.
type ServiceParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Repo      Repository
	Companies companies.Repository
	Plans     plans.Repository
	Now       func() time.Time
}

// Service drives subscription state transitions. Every transition is a
// conditional update guarded by the expected prior status, with the company
// mirror updated in the same transaction.
type Service struct {
	logg      *logger.Logger
	db        txRunner
	repo      Repository
	companies companies.Repository
	plans     plans.Repository
	now       func() time.Time
}

// NewService builds a subscription service.
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
	if params.Companies == nil {
		return nil, errors.New("company repo is required")
	}
	if params.Plans == nil {
		return nil, errors.New("plan repo is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repo,
		companies: params.Companies,
		plans:     params.Plans,
		now:       now,
	}, nil
}

// SubscribeParams describe a new subscription request.
type SubscribeParams struct {
	CompanyID     uuid.UUID           `json:"companyId" validate:"required"`
	PlanID        string              `json:"planId" validate:"required"`
	BillingPeriod enums.BillingPeriod `json:"billingPeriod" validate:"required"`
	// Amount overrides the plan price when set (negotiated contracts).
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// Subscribe creates the company's subscription on the requested plan. A
// company carries at most one subscription row; when a lapsed row exists it
// is re-activated in place with fresh term dates.
func (s *Service) Subscribe(ctx context.Context, caller identity.Principal, params SubscribeParams) (*models.Subscription, error) {
	if err := identity.RequireOperator(caller); err != nil {
		return nil, err
	}
	if err := validate.Struct(params); err != nil {
		return nil, err
	}
	if !params.BillingPeriod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid billing period").
			WithDetails(map[string]any{"billingPeriod": params.BillingPeriod.String()})
	}

	company, err := s.companies.FindCompanyByID(ctx, params.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	if company == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
	}
	if company.Status == enums.CompanyStatusDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "company is deleted")
	}

	plan, err := s.plans.FindPlanByID(ctx, params.PlanID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if plan.Status != enums.PlanStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "plan is not active").
			WithDetails(map[string]any{"status": plan.Status.String()})
	}

	existing, err := s.repo.FindSubscriptionByCompany(ctx, params.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load existing subscription: %w", err)
	}
	if existing != nil && existing.Status == enums.SubscriptionStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "company already has an active subscription")
	}

	amount := plan.Price
	if params.Amount != nil {
		amount = *params.Amount
	}
	start := s.now().UTC()
	end := AddPeriod(start, params.BillingPeriod)

	var sub *models.Subscription
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if existing == nil {
			sub = &models.Subscription{
				CompanyID:     params.CompanyID,
				PlanID:        params.PlanID,
				Status:        enums.SubscriptionStatusActive,
				BillingPeriod: params.BillingPeriod,
				StartDate:     start,
				EndDate:       end,
				Amount:        amount,
			}
			if err := s.repo.WithTx(tx).CreateSubscription(ctx, sub); err != nil {
				return fmt.Errorf("create subscription: %w", err)
			}
		} else {
			rows, err := s.repo.WithTx(tx).UpdateSubscriptionWhereStatus(ctx, existing.ID,
				[]enums.SubscriptionStatus{
					enums.SubscriptionStatusSuspended,
					enums.SubscriptionStatusExpired,
					enums.SubscriptionStatusCancelled,
				},
				map[string]any{
					"plan_id":        params.PlanID,
					"status":         enums.SubscriptionStatusActive,
					"billing_period": params.BillingPeriod,
					"start_date":     start,
					"end_date":       end,
					"renewed_at":     nil,
					"cancelled_at":   nil,
					"amount":         amount,
				})
			if err != nil {
				return fmt.Errorf("reactivate subscription: %w", err)
			}
			if rows == 0 {
				return pkgerrors.New(pkgerrors.CodeConflict, "company already has an active subscription")
			}
			refreshed := *existing
			refreshed.PlanID = params.PlanID
			refreshed.Status = enums.SubscriptionStatusActive
			refreshed.BillingPeriod = params.BillingPeriod
			refreshed.StartDate = start
			refreshed.EndDate = end
			refreshed.RenewedAt = nil
			refreshed.CancelledAt = nil
			refreshed.Amount = amount
			sub = &refreshed
		}
		return s.activateCompany(ctx, tx, params.CompanyID)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithCompanyID(ctx, params.CompanyID.String())
	logCtx = s.logg.WithSubscriptionID(logCtx, sub.ID.String())
	s.logg.Info(logCtx, "subscription activated")
	return sub, nil
}

// Suspend moves the subscription and its company to suspended, recording
// when and why. Cancelled subscriptions stay terminal.
func (s *Service) Suspend(ctx context.Context, caller identity.Principal, subscriptionID uuid.UUID, reason string) error {
	if err := identity.RequireOperator(caller); err != nil {
		return err
	}
	sub, err := s.loadSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	switch sub.Status {
	case enums.SubscriptionStatusCancelled:
		return terminalStateError(sub.Status)
	case enums.SubscriptionStatusSuspended:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already suspended")
	}

	now := s.now().UTC()
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).UpdateSubscriptionWhereStatus(ctx, sub.ID,
			[]enums.SubscriptionStatus{enums.SubscriptionStatusActive, enums.SubscriptionStatusExpired},
			map[string]any{"status": enums.SubscriptionStatusSuspended})
		if err != nil {
			return fmt.Errorf("suspend subscription: %w", err)
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription status changed concurrently")
		}
		return s.suspendCompany(ctx, tx, sub.CompanyID, now, reason)
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
	s.logg.Info(logCtx, "subscription suspended")
	return nil
}

// Restore re-activates a suspended subscription inside the recovery window.
// Past the window nothing is mutated and the caller gets a state conflict
// carrying the suspension timestamp.
func (s *Service) Restore(ctx context.Context, caller identity.Principal, subscriptionID uuid.UUID) error {
	if err := identity.RequireOperator(caller); err != nil {
		return err
	}
	sub, err := s.loadSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status != enums.SubscriptionStatusSuspended {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only suspended subscriptions can be restored").
			WithDetails(map[string]any{"status": sub.Status.String()})
	}

	company, err := s.companies.FindCompanyByID(ctx, sub.CompanyID)
	if err != nil {
		return fmt.Errorf("load company: %w", err)
	}
	if company == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
	}
	now := s.now().UTC()
	if company.SuspendedAt != nil {
		deadline := company.SuspendedAt.Add(restoreWindowDays * 24 * time.Hour)
		if now.After(deadline) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "restore window has elapsed").
				WithDetails(map[string]any{
					"suspendedAt": company.SuspendedAt.UTC(),
					"windowDays":  restoreWindowDays,
				})
		}
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).UpdateSubscriptionWhereStatus(ctx, sub.ID,
			[]enums.SubscriptionStatus{enums.SubscriptionStatusSuspended},
			map[string]any{"status": enums.SubscriptionStatusActive})
		if err != nil {
			return fmt.Errorf("restore subscription: %w", err)
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription status changed concurrently")
		}
		return s.activateCompany(ctx, tx, sub.CompanyID)
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
	s.logg.Info(logCtx, "subscription restored")
	return nil
}

// Renew starts a fresh term from now. Any non-cancelled subscription renews
// back to active; the company mirror follows.
func (s *Service) Renew(ctx context.Context, caller identity.Principal, subscriptionID uuid.UUID) (*models.Subscription, error) {
	if err := identity.RequireOperator(caller); err != nil {
		return nil, err
	}
	sub, err := s.loadSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status == enums.SubscriptionStatusCancelled {
		return nil, terminalStateError(sub.Status)
	}

	now := s.now().UTC()
	end := AddPeriod(now, sub.BillingPeriod)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).UpdateSubscriptionWhereStatus(ctx, sub.ID,
			[]enums.SubscriptionStatus{
				enums.SubscriptionStatusActive,
				enums.SubscriptionStatusSuspended,
				enums.SubscriptionStatusExpired,
			},
			map[string]any{
				"status":     enums.SubscriptionStatusActive,
				"start_date": now,
				"end_date":   end,
				"renewed_at": now,
			})
		if err != nil {
			return fmt.Errorf("renew subscription: %w", err)
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription status changed concurrently")
		}
		return s.activateCompany(ctx, tx, sub.CompanyID)
	})
	if err != nil {
		return nil, err
	}

	renewed := *sub
	renewed.Status = enums.SubscriptionStatusActive
	renewed.StartDate = now
	renewed.EndDate = end
	renewed.RenewedAt = &now

	logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
	s.logg.Info(logCtx, "subscription renewed")
	return &renewed, nil
}

// Cancel terminates the subscription. The company keeps its current status;
// the purge sweep handles eventual company deletion.
func (s *Service) Cancel(ctx context.Context, caller identity.Principal, subscriptionID uuid.UUID) error {
	if err := identity.RequireOperator(caller); err != nil {
		return err
	}
	sub, err := s.loadSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status == enums.SubscriptionStatusCancelled {
		return terminalStateError(sub.Status)
	}

	now := s.now().UTC()
	rows, err := s.repo.UpdateSubscriptionWhereStatus(ctx, sub.ID,
		[]enums.SubscriptionStatus{
			enums.SubscriptionStatusActive,
			enums.SubscriptionStatusSuspended,
			enums.SubscriptionStatusExpired,
		},
		map[string]any{
			"status":       enums.SubscriptionStatusCancelled,
			"cancelled_at": now,
		})
	if err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription status changed concurrently")
	}

	logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
	s.logg.Info(logCtx, "subscription cancelled")
	return nil
}

// Expire flips a lapsed active subscription to expired and suspends the
// company. Scheduler-internal; a false return means another writer already
// moved the row and the sweep treats it as done.
func (s *Service) Expire(ctx context.Context, sub models.Subscription) (bool, error) {
	now := s.now().UTC()
	var transitioned bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).MarkExpiredIfElapsed(ctx, sub.ID, now)
		if err != nil {
			return fmt.Errorf("expire subscription: %w", err)
		}
		if rows == 0 {
			return nil
		}
		transitioned = true
		return s.suspendCompany(ctx, tx, sub.CompanyID, now, suspendedReasonExpired)
	})
	if err != nil {
		return false, err
	}
	if transitioned {
		logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
		s.logg.Info(logCtx, "subscription expired")
	}
	return transitioned, nil
}

func (s *Service) loadSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindSubscriptionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}

// activateCompany mirrors an activating transition onto the company row,
// clearing any suspension bookkeeping. Deleted companies are left alone.
func (s *Service) activateCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) error {
	_, err := s.companies.WithTx(tx).UpdateCompanyWhereStatus(ctx, companyID,
		[]enums.CompanyStatus{
			enums.CompanyStatusActive,
			enums.CompanyStatusSuspended,
			enums.CompanyStatusExpired,
		},
		map[string]any{
			"status":           enums.CompanyStatusActive,
			"suspended_at":     nil,
			"suspended_reason": nil,
		})
	if err != nil {
		return fmt.Errorf("activate company: %w", err)
	}
	return nil
}

func (s *Service) suspendCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, at time.Time, reason string) error {
	updates := map[string]any{
		"status":       enums.CompanyStatusSuspended,
		"suspended_at": at,
	}
	if reason != "" {
		updates["suspended_reason"] = reason
	}
	_, err := s.companies.WithTx(tx).UpdateCompanyWhereStatus(ctx, companyID,
		[]enums.CompanyStatus{enums.CompanyStatusActive, enums.CompanyStatusExpired},
		updates)
	if err != nil {
		return fmt.Errorf("suspend company: %w", err)
	}
	return nil
}

func terminalStateError(status enums.SubscriptionStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled subscriptions are terminal").
		WithDetails(map[string]any{"status": status.String()})
}
