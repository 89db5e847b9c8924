package commands

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/sitecraft/sitegen-backend/internal/application/consts"
	"github.com/sitecraft/sitegen-backend/internal/application/dto"
	"github.com/sitecraft/sitegen-backend/internal/infra/db/repo"
	"github.com/sitecraft/sitegen-backend/internal/testinfra"
	dbs "github.com/sitecraft/sitegen-backend/pkg/db"
)

type fakeGateway struct {
	sessions map[string]*stripe.CheckoutSession
	subs     map[string]*stripe.Subscription
	canceled []string
}

func (f *fakeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	return f.sessions[sessionID], nil
}

func (f *fakeGateway) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	return f.subs[id], nil
}

func (f *fakeGateway) CancelSubscription(ctx context.Context, id string) error {
	f.canceled = append(f.canceled, id)
	return nil
}

func newPaymentFixture(t *testing.T) (*Payment, *fakeGateway, *dbs.UOWFactory, string) {
	t.Helper()
	uowFactory := dbs.NewUoWFactory(testinfra.Pool)

	priceID := "price_" + uuid.NewString()
	_, err := testinfra.Pool.Exec(context.Background(),
		"INSERT INTO builder.payment_plans (name, stripe_price_id) VALUES ($1, $2)", "pro", priceID)
	require.NoError(t, err)

	gateway := &fakeGateway{
		sessions: map[string]*stripe.CheckoutSession{},
		subs:     map[string]*stripe.Subscription{},
	}
	return NewPayment(uowFactory, gateway, &PaymentConfig{}), gateway, uowFactory, priceID
}

func stripeSubscription(id, priceID string, userID uuid.UUID, status stripe.SubscriptionStatus) *stripe.Subscription {
	return &stripe.Subscription{
		ID:       id,
		Status:   status,
		Customer: &stripe.Customer{ID: "cus_1"},
		Metadata: map[string]string{"user_id": userID.String(), "site_id": "42"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					Price:            &stripe.Price{ID: priceID},
					CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour).Unix(),
				},
			},
		},
	}
}

func TestApplySubscriptionUpsertsAndAttributes(t *testing.T) {
	payment, _, uowFactory, priceID := newPaymentFixture(t)
	userID := uuid.New()
	subID := "sub_" + uuid.NewString()

	row, err := payment.ApplySubscription(context.Background(),
		stripeSubscription(subID, priceID, userID, stripe.SubscriptionStatusActive), time.Now(), 0)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, userID, row.UserID)
	require.EqualValues(t, 42, row.SiteID, "site attribution rides on provider metadata")

	uow := uowFactory.GetUoW()
	tx, err := uow.Begin()
	require.NoError(t, err)
	defer func() { _ = uow.Rollback() }()

	stored, err := repo.NewSubscriptionRepo(tx).GetByStripeID(context.Background(), subID)
	require.NoError(t, err)
	require.Equal(t, string(consts.SubscriptionStatusActive), stored.Status)
	require.Equal(t, "cus_1", stored.StripeCustomerID)
}

func TestApplySubscriptionCancelsSuperseded(t *testing.T) {
	payment, gateway, uowFactory, priceID := newPaymentFixture(t)
	userID := uuid.New()
	oldID := "sub_old_" + uuid.NewString()
	newID := "sub_new_" + uuid.NewString()

	_, err := payment.ApplySubscription(context.Background(),
		stripeSubscription(oldID, priceID, userID, stripe.SubscriptionStatusActive), time.Now(), 0)
	require.NoError(t, err)

	_, err = payment.ApplySubscription(context.Background(),
		stripeSubscription(newID, priceID, userID, stripe.SubscriptionStatusActive), time.Now(), 0)
	require.NoError(t, err)

	require.Equal(t, []string{oldID}, gateway.canceled, "superseded subscription canceled at the provider")

	uow := uowFactory.GetUoW()
	tx, err := uow.Begin()
	require.NoError(t, err)
	defer func() { _ = uow.Rollback() }()

	subRepo := repo.NewSubscriptionRepo(tx)
	old, err := subRepo.GetByStripeID(context.Background(), oldID)
	require.NoError(t, err)
	require.Equal(t, string(consts.SubscriptionStatusCanceled), old.Status)

	current, err := subRepo.GetByStripeID(context.Background(), newID)
	require.NoError(t, err)
	require.Equal(t, string(consts.SubscriptionStatusActive), current.Status)
}

func TestApplySubscriptionReplayConverges(t *testing.T) {
	payment, gateway, _, priceID := newPaymentFixture(t)
	userID := uuid.New()
	subID := "sub_" + uuid.NewString()
	eventAt := time.Now()

	sub := stripeSubscription(subID, priceID, userID, stripe.SubscriptionStatusActive)
	_, err := payment.ApplySubscription(context.Background(), sub, eventAt, 0)
	require.NoError(t, err)
	_, err = payment.ApplySubscription(context.Background(), sub, eventAt, 0)
	require.NoError(t, err)

	require.Empty(t, gateway.canceled, "replaying the same event cancels nothing")
}

func TestApplySubscriptionSkipsUnknownPlan(t *testing.T) {
	payment, _, _, _ := newPaymentFixture(t)

	row, err := payment.ApplySubscription(context.Background(),
		stripeSubscription("sub_"+uuid.NewString(), "price_unmapped", uuid.New(), stripe.SubscriptionStatusActive),
		time.Now(), 0)
	require.NoError(t, err)
	require.Nil(t, row, "events for unmapped prices are logged and skipped")
}

func TestApplySubscriptionSkipsUnattributableEvents(t *testing.T) {
	payment, _, _, priceID := newPaymentFixture(t)

	sub := stripeSubscription("sub_"+uuid.NewString(), priceID, uuid.New(), stripe.SubscriptionStatusActive)
	sub.Metadata = nil

	row, err := payment.ApplySubscription(context.Background(), sub, time.Now(), 0)
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestVerifyAppliesSessionSubscription(t *testing.T) {
	payment, gateway, _, priceID := newPaymentFixture(t)
	userID := uuid.New()
	subID := "sub_" + uuid.NewString()

	gateway.sessions["cs_1"] = &stripe.CheckoutSession{
		ID:           "cs_1",
		Subscription: stripeSubscription(subID, priceID, userID, stripe.SubscriptionStatusTrialing),
	}

	resp, err := payment.Verify(context.Background(), dto.VerifyPaymentRequest{SessionID: "cs_1"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, subID, resp.Subscription.StripeSubscriptionID)
	require.Equal(t, consts.SubscriptionStatusTrialing, resp.Subscription.Status)
}
