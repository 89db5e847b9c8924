package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Site struct {
	ID                  uint64          `db:"id"`
	CreatorID           uuid.UUID       `db:"creator_id"`
	WebsiteID           string          `db:"website_id"`
	Status              string          `db:"status"`
	IsGenerating        bool            `db:"is_generating"`
	GenerationStep      int             `db:"generation_step"`
	SitemapUID          string          `db:"sitemap_uid"`
	BusinessName        string          `db:"business_name"`
	BusinessDescription string          `db:"business_description"`
	BusinessType        string          `db:"business_type"`
	WebsiteType         string          `db:"website_type"`
	Theme               json.RawMessage `db:"theme"`
	PagesMeta           json.RawMessage `db:"pages_meta"`
	SEO                 json.RawMessage `db:"seo"`
	SiteURL             string          `db:"site_url"`
	AdminURL            string          `db:"admin_url"`
	PreviewURL          string          `db:"preview_url"`
	ErrorMessage        string          `db:"error_message"`
	LastEventAt         *time.Time      `db:"last_event_at"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

type Subscription struct {
	ID                   uint64          `db:"id"`
	UserID               uuid.UUID       `db:"user_id"`
	SiteID               uint64          `db:"site_id"`
	PlanID               uint64          `db:"plan_id"`
	Status               string          `db:"status"`
	StripeCustomerID     string          `db:"stripe_customer_id"`
	StripeSubscriptionID string          `db:"stripe_subscription_id"`
	CurrentPeriodEnd     time.Time       `db:"current_period_end"`
	TrialEnd             *time.Time      `db:"trial_end"`
	Metadata             json.RawMessage `db:"metadata"`
	LastEventAt          *time.Time      `db:"last_event_at"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

type PaymentPlan struct {
	ID            uint64 `db:"id"`
	Name          string `db:"name"`
	StripePriceID string `db:"stripe_price_id"`
}

// WebhookEvent is the append-only log of every inbound webhook payload,
// written before any state is touched and never mutated.
type WebhookEvent struct {
	ID         uuid.UUID       `db:"id"`
	Source     string          `db:"source"`
	Payload    json.RawMessage `db:"payload"`
	ReceivedAt time.Time       `db:"received_at"`
}

type Outbox struct {
	ID        uint64          `db:"id"`
	Event     string          `db:"event"`
	Status    int             `db:"status"`
	Payload   json.RawMessage `db:"payload"`
	CreatedAt time.Time       `db:"created_at"`
}
