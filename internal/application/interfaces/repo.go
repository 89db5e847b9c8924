package interfaces

import (
	"context"

	"github.com/google/uuid"
	"github.com/sitecraft/sitegen-backend/internal/infra/db"
	"github.com/sitecraft/sitegen-backend/pkg/interfaces"
)

type SiteRepo interface {
	GetSiteByID(ctx context.Context, id uint64) (*db.Site, error)
	ResolveSite(ctx context.Context, siteID *uint64, websiteID string) (*db.Site, error)
	InsertSite(ctx context.Context, site db.Site) (uint64, error)
	BeginGeneration(ctx context.Context, id uint64) (bool, error)
	SaveCheckpoint(ctx context.Context, id uint64, step int, websiteID, sitemapUID string) error
	SaveDesign(ctx context.Context, id uint64, theme, pagesMeta, seo []byte, websiteType string) error
	UpdateBusinessDescription(ctx context.Context, id uint64, description string) error
	FinishGeneration(ctx context.Context, id uint64, previewURL, adminURL string) error
	FailGeneration(ctx context.Context, id uint64, message string) error
	ResetToDraft(ctx context.Context, id uint64) (bool, error)
	ApplySiteUpdate(ctx context.Context, id uint64, update db.SiteUpdate) (bool, error)
}

type SubscriptionRepo interface {
	GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*db.Subscription, error)
	UpsertSubscription(ctx context.Context, sub db.Subscription) error
	GetActiveOthers(ctx context.Context, userID uuid.UUID, exceptStripeSubscriptionID string) ([]db.Subscription, error)
	MarkCanceled(ctx context.Context, stripeSubscriptionID string) error
}

type PlanRepo interface {
	GetPlanByStripePriceID(ctx context.Context, priceID string) (*db.PaymentPlan, error)
	GetPlanByID(ctx context.Context, id uint64) (*db.PaymentPlan, error)
}

type WebhookEventRepo interface {
	InsertWebhookEvent(ctx context.Context, source string, payload []byte) error
}

type EventRepo interface {
	InsertEvent(ctx context.Context, event interfaces.Event) error
}
