package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitegen-backend/internal/application/consts"
	"github.com/sitecraft/sitegen-backend/internal/infra/db"
	"github.com/sitecraft/sitegen-backend/internal/infra/db/repo"
	"github.com/sitecraft/sitegen-backend/internal/testinfra"
	dbs "github.com/sitecraft/sitegen-backend/pkg/db"
)

func newTx(t *testing.T) pgx.Tx {
	t.Helper()
	uow := dbs.NewUoWFactory(testinfra.Pool).GetUoW()
	tx, err := uow.Begin()
	require.NoError(t, err)
	t.Cleanup(func() { _ = uow.Rollback() })
	return tx
}

func insertDraftSite(t *testing.T, siteRepo *repo.SiteRepo) uint64 {
	t.Helper()
	now := time.Now()
	id, err := siteRepo.InsertSite(context.Background(), db.Site{
		CreatorID:    uuid.New(),
		Status:       string(consts.SiteStatusDraft),
		BusinessName: "Vine & Barrel",
		BusinessType: string(consts.BusinessTypeRestaurant),
		WebsiteType:  string(consts.WebsiteTypeBasic),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return id
}

func TestResolveSiteByEitherIdentifier(t *testing.T) {
	ctx := context.Background()
	siteRepo := repo.NewSiteRepo(newTx(t))

	id := insertDraftSite(t, siteRepo)
	websiteID := "w-" + uuid.NewString()
	require.NoError(t, siteRepo.SaveCheckpoint(ctx, id, consts.StepCreateSite, websiteID, ""))

	byID, err := siteRepo.ResolveSite(ctx, &id, "")
	require.NoError(t, err)
	require.Equal(t, id, byID.ID)

	byWebsiteID, err := siteRepo.ResolveSite(ctx, nil, websiteID)
	require.NoError(t, err)
	require.Equal(t, id, byWebsiteID.ID)

	// A dangling site_id with a known website_id still resolves.
	missing := id + 100000
	fallback, err := siteRepo.ResolveSite(ctx, &missing, websiteID)
	require.NoError(t, err)
	require.Equal(t, id, fallback.ID)

	_, err = siteRepo.ResolveSite(ctx, &missing, "")
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestBeginGenerationIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	siteRepo := repo.NewSiteRepo(newTx(t))
	id := insertDraftSite(t, siteRepo)

	started, err := siteRepo.BeginGeneration(ctx, id)
	require.NoError(t, err)
	require.True(t, started)

	again, err := siteRepo.BeginGeneration(ctx, id)
	require.NoError(t, err)
	require.False(t, again, "second start must lose the swap")

	// A failed run releases the guard and may be retried.
	require.NoError(t, siteRepo.FailGeneration(ctx, id, "builder rejected sitemap"))
	retried, err := siteRepo.BeginGeneration(ctx, id)
	require.NoError(t, err)
	require.True(t, retried)
}

func TestBeginGenerationRefusesReadySites(t *testing.T) {
	ctx := context.Background()
	siteRepo := repo.NewSiteRepo(newTx(t))
	id := insertDraftSite(t, siteRepo)

	require.NoError(t, siteRepo.FinishGeneration(ctx, id, "https://preview.example", "https://admin.example"))

	started, err := siteRepo.BeginGeneration(ctx, id)
	require.NoError(t, err)
	require.False(t, started)
}

func TestApplySiteUpdateHonorsGenerationGuard(t *testing.T) {
	ctx := context.Background()
	siteRepo := repo.NewSiteRepo(newTx(t))
	id := insertDraftSite(t, siteRepo)

	started, err := siteRepo.BeginGeneration(ctx, id)
	require.NoError(t, err)
	require.True(t, started)

	published := consts.SiteStatusPublished
	applied, err := siteRepo.ApplySiteUpdate(ctx, id, db.SiteUpdate{Status: &published, GuardNotGenerating: true})
	require.NoError(t, err)
	require.False(t, applied, "guarded status change must not land mid-run")

	// URL merges carry no guard and land regardless.
	applied, err = siteRepo.ApplySiteUpdate(ctx, id, db.SiteUpdate{SiteURL: "https://site.example"})
	require.NoError(t, err)
	require.True(t, applied)

	site, err := siteRepo.GetSiteByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, string(consts.SiteStatusCreating), site.Status)
	require.Equal(t, "https://site.example", site.SiteURL)
}

func TestApplySiteUpdateDropsOlderEvents(t *testing.T) {
	ctx := context.Background()
	siteRepo := repo.NewSiteRepo(newTx(t))
	id := insertDraftSite(t, siteRepo)

	newer := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Minute)
	published := consts.SiteStatusPublished
	ready := consts.SiteStatusReady

	applied, err := siteRepo.ApplySiteUpdate(ctx, id, db.SiteUpdate{Status: &published, EventAt: &newer})
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = siteRepo.ApplySiteUpdate(ctx, id, db.SiteUpdate{Status: &ready, EventAt: &older})
	require.NoError(t, err)
	require.False(t, applied, "older event must not overwrite a newer one")

	site, err := siteRepo.GetSiteByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, string(consts.SiteStatusPublished), site.Status)
	require.NotNil(t, site.LastEventAt)
	require.True(t, site.LastEventAt.Equal(newer))
}

func TestResetToDraftRefusedWhileGenerating(t *testing.T) {
	ctx := context.Background()
	siteRepo := repo.NewSiteRepo(newTx(t))
	id := insertDraftSite(t, siteRepo)

	started, err := siteRepo.BeginGeneration(ctx, id)
	require.NoError(t, err)
	require.True(t, started)

	reset, err := siteRepo.ResetToDraft(ctx, id)
	require.NoError(t, err)
	require.False(t, reset)

	require.NoError(t, siteRepo.FailGeneration(ctx, id, "boom"))
	reset, err = siteRepo.ResetToDraft(ctx, id)
	require.NoError(t, err)
	require.True(t, reset)

	site, err := siteRepo.GetSiteByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, string(consts.SiteStatusDraft), site.Status)
	require.Equal(t, -1, site.GenerationStep)
	require.Empty(t, site.ErrorMessage)
}

func TestWebhookEventLogIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	tx := newTx(t)
	eventRepo := repo.NewWebhookEventRepo(tx)

	payload := []byte(`{"website_id":"w-1","event_type":"site_published"}`)
	require.NoError(t, eventRepo.InsertWebhookEvent(ctx, "builder", payload))
	require.NoError(t, eventRepo.InsertWebhookEvent(ctx, "builder", payload))

	var count int
	err := tx.QueryRow(ctx,
		"SELECT count(*) FROM builder.webhook_events WHERE source = 'builder' AND payload = $1", payload).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 2, count, "duplicate deliveries keep separate log rows")
}

func subscriptionFixture(userID uuid.UUID, stripeID string, eventAt time.Time) db.Subscription {
	return db.Subscription{
		UserID:               userID,
		PlanID:               1,
		Status:               string(consts.SubscriptionStatusActive),
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: stripeID,
		CurrentPeriodEnd:     eventAt.Add(30 * 24 * time.Hour),
		LastEventAt:          &eventAt,
	}
}

func TestUpsertSubscriptionKeyedByStripeID(t *testing.T) {
	ctx := context.Background()
	subRepo := repo.NewSubscriptionRepo(newTx(t))

	userID := uuid.New()
	stripeID := "sub_" + uuid.NewString()
	first := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, subRepo.UpsertSubscription(ctx, subscriptionFixture(userID, stripeID, first)))

	updated := subscriptionFixture(userID, stripeID, first.Add(time.Hour))
	updated.Status = string(consts.SubscriptionStatusPastDue)
	require.NoError(t, subRepo.UpsertSubscription(ctx, updated))

	sub, err := subRepo.GetByStripeID(ctx, stripeID)
	require.NoError(t, err)
	require.Equal(t, string(consts.SubscriptionStatusPastDue), sub.Status)

	// A replay carrying an older event timestamp may not roll state back.
	stale := subscriptionFixture(userID, stripeID, first.Add(-time.Hour))
	require.NoError(t, subRepo.UpsertSubscription(ctx, stale))

	sub, err = subRepo.GetByStripeID(ctx, stripeID)
	require.NoError(t, err)
	require.Equal(t, string(consts.SubscriptionStatusPastDue), sub.Status)
}

func TestActiveOthersAndCancellation(t *testing.T) {
	ctx := context.Background()
	subRepo := repo.NewSubscriptionRepo(newTx(t))

	userID := uuid.New()
	now := time.Now().UTC()
	keep := "sub_keep_" + uuid.NewString()
	old := "sub_old_" + uuid.NewString()

	require.NoError(t, subRepo.UpsertSubscription(ctx, subscriptionFixture(userID, old, now)))
	require.NoError(t, subRepo.UpsertSubscription(ctx, subscriptionFixture(userID, keep, now)))

	others, err := subRepo.GetActiveOthers(ctx, userID, keep)
	require.NoError(t, err)
	require.Len(t, others, 1)
	require.Equal(t, old, others[0].StripeSubscriptionID)

	require.NoError(t, subRepo.MarkCanceled(ctx, old))

	others, err = subRepo.GetActiveOthers(ctx, userID, keep)
	require.NoError(t, err)
	require.Empty(t, others)
}

func TestPlanLookupByPriceID(t *testing.T) {
	ctx := context.Background()
	tx := newTx(t)

	priceID := "price_" + uuid.NewString()
	_, err := tx.Exec(ctx, "INSERT INTO builder.payment_plans (name, stripe_price_id) VALUES ($1, $2)",
		"starter", priceID)
	require.NoError(t, err)

	plan, err := repo.NewPlanRepo(tx).GetPlanByStripePriceID(ctx, priceID)
	require.NoError(t, err)
	require.Equal(t, "starter", plan.Name)

	_, err = repo.NewPlanRepo(tx).GetPlanByStripePriceID(ctx, "price_unknown")
	require.ErrorIs(t, err, pgx.ErrNoRows)
}
