package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sitecraft/sitegen-backend/internal/application/consts"
	"github.com/sitecraft/sitegen-backend/internal/application/dto"
	"github.com/sitecraft/sitegen-backend/internal/application/errs"
	"github.com/sitecraft/sitegen-backend/internal/infra/db"
	"github.com/sitecraft/sitegen-backend/internal/infra/db/repo"
	dbs "github.com/sitecraft/sitegen-backend/pkg/db"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

const paymentsWebhookSource = "stripe"

// ProviderGateway is the slice of the payments provider the reconciler
// needs. Kept as an interface so the dedup-and-cancel logic is testable
// without provider calls.
type ProviderGateway interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, id string) error
}

type StripeGateway struct{}

var _ ProviderGateway = (*StripeGateway)(nil)

func (StripeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")
	return session.Get(sessionID, params)
}

func (StripeGateway) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return subscription.Get(id, params)
}

func (StripeGateway) CancelSubscription(ctx context.Context, id string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	_, err := subscription.Cancel(id, params)
	return err
}

type PaymentConfig struct {
	apiKey     string
	webhookKey string
	returnUrl  string
}

func NewPaymentConfig() *PaymentConfig {
	return &PaymentConfig{
		apiKey:     os.Getenv("STRIPE_KEY"),
		webhookKey: os.Getenv("STRIPE_WEBHOOK"),
		returnUrl:  os.Getenv("STRIPE_RETURN_URL"),
	}
}

type Payment struct {
	uowFactory *dbs.UOWFactory
	gateway    ProviderGateway
	cfg        *PaymentConfig
}

func NewPayment(uowFactory *dbs.UOWFactory, gateway ProviderGateway, cfg *PaymentConfig) *Payment {
	stripe.Key = cfg.apiKey
	stripe.SetHTTPClient(&http.Client{Timeout: 10 * time.Second})
	return &Payment{
		uowFactory: uowFactory,
		gateway:    gateway,
		cfg:        cfg,
	}
}

// CreatePayment opens an embedded checkout session for a plan. The user and
// site ids ride along as subscription metadata so webhook events can be
// attributed without another lookup path.
func (c *Payment) CreatePayment(ctx context.Context, req *dto.CreatePaymentRequest) (string, error) {
	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return "", fmt.Errorf("error starting tx, %v", err)
	}
	plan, err := repo.NewPlanRepo(tx).GetPlanByID(ctx, req.PlanID)
	if err != nil {
		_ = uow.Rollback()
		return "", fmt.Errorf("error retrieving stripe price, %v", err)
	}
	if err = uow.Commit(); err != nil {
		return "", fmt.Errorf("error commiting tx, %v", err)
	}

	params := &stripe.CheckoutSessionParams{
		UIMode:    stripe.String("embedded"),
		ReturnURL: stripe.String(c.cfg.returnUrl + "/complete?session_id={CHECKOUT_SESSION_ID}"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": req.UserID.String(),
				"site_id": strconv.FormatUint(req.SiteID, 10),
			},
		},
	}
	params.Context = ctx

	slog.Info("Creating a checkout session", "planID", req.PlanID, "siteID", req.SiteID)
	s, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("error creating session: %v", err)
	}

	return s.ClientSecret, nil
}

// Webhook verifies and applies a payments-provider event. The raw payload
// goes to the event log before any state is touched; apply failures are
// logged by the caller without failing the provider's delivery.
func (c *Payment) Webhook(ctx context.Context, req []byte, stripeHeader string) error {
	event, err := webhook.ConstructEvent(req, stripeHeader, c.cfg.webhookKey)
	if err != nil {
		return errs.ValidationError{Err: fmt.Errorf("error verifying event, %v", err)}
	}

	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return fmt.Errorf("error starting tx, %v", err)
	}
	if err = repo.NewWebhookEventRepo(tx).InsertWebhookEvent(ctx, paymentsWebhookSource, req); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err = uow.Commit(); err != nil {
		return fmt.Errorf("error commiting event log, %v", err)
	}

	eventAt := time.Unix(event.Created, 0)

	switch string(event.Type) {
	case "checkout.session.completed":
		var s stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &s); err != nil {
			return fmt.Errorf("error parsing checkout session, %v", err)
		}
		if s.Subscription == nil {
			slog.Warn("Checkout session completed without subscription", "sessionID", s.ID)
			return nil
		}
		sub, err := c.gateway.GetSubscription(ctx, s.Subscription.ID)
		if err != nil {
			return fmt.Errorf("error getting subscription %v", err)
		}
		_, err = c.ApplySubscription(ctx, sub, eventAt, 0)
		return err

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err = json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("error parsing subscription, %v", err)
		}
		_, err = c.ApplySubscription(ctx, &sub, eventAt, 0)
		return err

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err = json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("error parsing subscription, %v", err)
		}
		return c.cancelLocal(ctx, sub.ID)

	default:
		slog.Info("Unhandled payments event type", "type", event.Type)
		return nil
	}
}

// Verify is the synchronous after-redirect path. It reads the session's
// subscription from the provider and applies it through the same logic as
// the webhook, so whichever arrives first wins the same end state.
func (c *Payment) Verify(ctx context.Context, req dto.VerifyPaymentRequest) (*dto.VerifyPaymentResponse, error) {
	s, err := c.gateway.GetCheckoutSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("error getting session info, %v", err)
	}
	if s.Subscription == nil {
		return &dto.VerifyPaymentResponse{Success: false}, nil
	}

	sub := s.Subscription
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		sub, err = c.gateway.GetSubscription(ctx, sub.ID)
		if err != nil {
			return nil, fmt.Errorf("error getting subscription %v", err)
		}
	}

	row, err := c.ApplySubscription(ctx, sub, time.Now(), req.SiteID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return &dto.VerifyPaymentResponse{Success: false}, nil
	}

	return &dto.VerifyPaymentResponse{
		Success: true,
		Subscription: &dto.SubscriptionSummary{
			StripeSubscriptionID: row.StripeSubscriptionID,
			PlanID:               row.PlanID,
			Status:               consts.SubscriptionStatus(row.Status),
			CurrentPeriodEnd:     row.CurrentPeriodEnd,
		},
	}, nil
}

// ApplySubscription upserts the row keyed by the provider subscription id
// and, on activation, cancels every other active/trialing subscription of
// that user, provider first, then locally. Replays converge.
func (c *Payment) ApplySubscription(ctx context.Context, sub *stripe.Subscription, eventAt time.Time, siteIDFallback uint64) (*db.Subscription, error) {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		slog.Warn("Subscription event without price, skipping", "subID", sub.ID)
		return nil, nil
	}
	priceID := sub.Items.Data[0].Price.ID

	userID, siteID, err := subscriptionAttribution(sub, siteIDFallback)
	if err != nil {
		slog.Warn("Subscription event not attributable, skipping", "subID", sub.ID, "err", err)
		return nil, nil
	}

	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return nil, fmt.Errorf("error starting tx, %v", err)
	}

	plan, err := repo.NewPlanRepo(tx).GetPlanByStripePriceID(ctx, priceID)
	if err != nil {
		_ = uow.Rollback()
		if err == pgx.ErrNoRows {
			slog.Warn("No plan for price, skipping event", "priceID", priceID, "subID", sub.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("error resolving plan, %v", err)
	}

	row := db.Subscription{
		UserID:               userID,
		SiteID:               siteID,
		PlanID:               plan.ID,
		Status:               string(sub.Status),
		StripeSubscriptionID: sub.ID,
		LastEventAt:          &eventAt,
	}
	if sub.Customer != nil {
		row.StripeCustomerID = sub.Customer.ID
	}
	if end := sub.Items.Data[0].CurrentPeriodEnd; end > 0 {
		row.CurrentPeriodEnd = time.Unix(end, 0)
	}
	if sub.TrialEnd > 0 {
		trialEnd := time.Unix(sub.TrialEnd, 0)
		row.TrialEnd = &trialEnd
	}
	if len(sub.Metadata) > 0 {
		if metadata, err := json.Marshal(sub.Metadata); err == nil {
			row.Metadata = metadata
		}
	}

	subRepo := repo.NewSubscriptionRepo(tx)
	if err = subRepo.UpsertSubscription(ctx, row); err != nil {
		_ = uow.Rollback()
		return nil, err
	}

	if row.Status == string(consts.SubscriptionStatusActive) || row.Status == string(consts.SubscriptionStatusTrialing) {
		others, err := subRepo.GetActiveOthers(ctx, userID, sub.ID)
		if err != nil {
			_ = uow.Rollback()
			return nil, fmt.Errorf("error finding superseded subscriptions, %v", err)
		}
		for _, other := range others {
			if err := c.gateway.CancelSubscription(ctx, other.StripeSubscriptionID); err != nil {
				slog.Error("error canceling superseded subscription at provider",
					"subID", other.StripeSubscriptionID, "err", err)
			}
			if err := subRepo.MarkCanceled(ctx, other.StripeSubscriptionID); err != nil {
				_ = uow.Rollback()
				return nil, err
			}
			slog.Info("Superseded subscription canceled", "subID", other.StripeSubscriptionID, "userID", userID)
		}
	}

	if err = uow.Commit(); err != nil {
		return nil, fmt.Errorf("error commiting tx, %v", err)
	}

	slog.Info("Subscription reconciled", "subID", sub.ID, "status", row.Status)
	return &row, nil
}

func (c *Payment) cancelLocal(ctx context.Context, stripeSubscriptionID string) error {
	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return fmt.Errorf("error starting tx, %v", err)
	}
	if err = repo.NewSubscriptionRepo(tx).MarkCanceled(ctx, stripeSubscriptionID); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

func subscriptionAttribution(sub *stripe.Subscription, siteIDFallback uint64) (uuid.UUID, uint64, error) {
	rawUser, ok := sub.Metadata["user_id"]
	if !ok {
		return uuid.Nil, 0, fmt.Errorf("no user_id in metadata")
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("bad user_id in metadata, %v", err)
	}

	siteID := siteIDFallback
	if rawSite, ok := sub.Metadata["site_id"]; ok {
		if parsed, err := strconv.ParseUint(rawSite, 10, 64); err == nil {
			siteID = parsed
		}
	}
	return userID, siteID, nil
}
