package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sitecraft/sitegen-backend/internal/application/consts"
	"github.com/sitecraft/sitegen-backend/internal/application/interfaces"
	"github.com/sitecraft/sitegen-backend/internal/infra/db"
	shared "github.com/sitecraft/sitegen-backend/pkg/interfaces"
)

const siteColumns = `id, creator_id, website_id, status, is_generating, generation_step, sitemap_uid,
	business_name, business_description, business_type, website_type, theme, pages_meta, seo,
	site_url, admin_url, preview_url, error_message, last_event_at, created_at, updated_at`

type SiteRepo struct {
	tx pgx.Tx
}

var _ interfaces.SiteRepo = (*SiteRepo)(nil)

func NewSiteRepo(tx pgx.Tx) *SiteRepo {
	return &SiteRepo{tx: tx}
}

func (s *SiteRepo) scanSite(row pgx.Row) (*db.Site, error) {
	var site db.Site
	err := row.Scan(&site.ID, &site.CreatorID, &site.WebsiteID, &site.Status, &site.IsGenerating,
		&site.GenerationStep, &site.SitemapUID, &site.BusinessName, &site.BusinessDescription,
		&site.BusinessType, &site.WebsiteType, &site.Theme, &site.PagesMeta, &site.SEO, &site.SiteURL,
		&site.AdminURL, &site.PreviewURL, &site.ErrorMessage, &site.LastEventAt,
		&site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *SiteRepo) GetSiteByID(ctx context.Context, id uint64) (*db.Site, error) {
	query := "SELECT " + siteColumns + " FROM builder.sites WHERE id = $1"
	return s.scanSite(s.tx.QueryRow(ctx, query, id))
}

func (s *SiteRepo) GetSiteByWebsiteID(ctx context.Context, websiteID string) (*db.Site, error) {
	query := "SELECT " + siteColumns + " FROM builder.sites WHERE website_id = $1"
	return s.scanSite(s.tx.QueryRow(ctx, query, websiteID))
}

// ResolveSite matches a webhook's identifiers against the row: site_id
// against the primary key, website_id against the external-id column.
// Both identifiers address the same row when both are present.
func (s *SiteRepo) ResolveSite(ctx context.Context, siteID *uint64, websiteID string) (*db.Site, error) {
	if siteID != nil {
		site, err := s.GetSiteByID(ctx, *siteID)
		if err == nil {
			return site, nil
		}
		if err != pgx.ErrNoRows || websiteID == "" {
			return nil, err
		}
	}
	if websiteID == "" {
		return nil, pgx.ErrNoRows
	}
	return s.GetSiteByWebsiteID(ctx, websiteID)
}

func (s *SiteRepo) InsertSite(ctx context.Context, site db.Site) (uint64, error) {
	var id uint64
	err := s.tx.QueryRow(ctx, `INSERT INTO builder.sites
		(creator_id, status, business_name, business_description, business_type, website_type, generation_step, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		site.CreatorID, site.Status, site.BusinessName, site.BusinessDescription,
		site.BusinessType, site.WebsiteType, -1, site.CreatedAt, site.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("err inserting site, %v", err)
	}

	return id, nil
}

// BeginGeneration flips the generation guard in one compare-and-swap,
// so two concurrent start requests cannot both enter the pipeline.
func (s *SiteRepo) BeginGeneration(ctx context.Context, id uint64) (bool, error) {
	tag, err := s.tx.Exec(ctx, `UPDATE builder.sites
		SET is_generating = true, status = $2, error_message = '', updated_at = now()
		WHERE id = $1 AND is_generating = false AND status IN ($3, $4)`,
		id, consts.SiteStatusCreating, consts.SiteStatusDraft, consts.SiteStatusError)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *SiteRepo) SaveCheckpoint(ctx context.Context, id uint64, step int, websiteID, sitemapUID string) error {
	_, err := s.tx.Exec(ctx, `UPDATE builder.sites
		SET generation_step = $2,
			website_id = COALESCE(NULLIF($3, ''), website_id),
			sitemap_uid = COALESCE(NULLIF($4, ''), sitemap_uid),
			status = $5, updated_at = now()
		WHERE id = $1`,
		id, step, websiteID, sitemapUID, consts.SiteStatusGenerating)
	return err
}

func (s *SiteRepo) SaveDesign(ctx context.Context, id uint64, theme, pagesMeta, seo []byte, websiteType string) error {
	_, err := s.tx.Exec(ctx, `UPDATE builder.sites
		SET theme = $2, pages_meta = $3, seo = $4, website_type = $5, updated_at = now()
		WHERE id = $1`,
		id, theme, pagesMeta, seo, websiteType)
	return err
}

func (s *SiteRepo) UpdateBusinessDescription(ctx context.Context, id uint64, description string) error {
	_, err := s.tx.Exec(ctx, `UPDATE builder.sites SET business_description = $2, updated_at = now()
		WHERE id = $1`,
		id, description)
	return err
}

// FinishGeneration is the single terminal write of a successful run:
// status, urls and the guard flag change together.
func (s *SiteRepo) FinishGeneration(ctx context.Context, id uint64, previewURL, adminURL string) error {
	_, err := s.tx.Exec(ctx, `UPDATE builder.sites
		SET status = $2, preview_url = $3, admin_url = $4, is_generating = false, error_message = '', updated_at = now()
		WHERE id = $1`,
		id, consts.SiteStatusReady, previewURL, adminURL)
	return err
}

func (s *SiteRepo) FailGeneration(ctx context.Context, id uint64, message string) error {
	_, err := s.tx.Exec(ctx, `UPDATE builder.sites
		SET status = $2, error_message = $3, is_generating = false, updated_at = now()
		WHERE id = $1`,
		id, consts.SiteStatusError, message)
	return err
}

func (s *SiteRepo) ResetToDraft(ctx context.Context, id uint64) (bool, error) {
	tag, err := s.tx.Exec(ctx, `UPDATE builder.sites
		SET status = $2, generation_step = -1, website_id = '', sitemap_uid = '',
			error_message = '', preview_url = '', admin_url = '', site_url = '', updated_at = now()
		WHERE id = $1 AND is_generating = false`,
		id, consts.SiteStatusDraft)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ApplySiteUpdate runs one conditional UPDATE carrying every guard the
// update asks for, so the check and the write cannot be interleaved by a
// concurrent writer. Returns whether a row was changed.
func (s *SiteRepo) ApplySiteUpdate(ctx context.Context, id uint64, update db.SiteUpdate) (bool, error) {
	if update.IsZero() {
		return false, nil
	}
	sets := []string{"updated_at = now()"}
	conds := []string{"id = $1"}
	args := []interface{}{id}
	n := 2

	if update.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", n))
		args = append(args, string(*update.Status))
		n++
	}
	if update.IsGenerating != nil {
		sets = append(sets, fmt.Sprintf("is_generating = $%d", n))
		args = append(args, *update.IsGenerating)
		n++
	}
	if update.AdminURL != "" {
		sets = append(sets, fmt.Sprintf("admin_url = $%d", n))
		args = append(args, update.AdminURL)
		n++
	}
	if update.SiteURL != "" {
		sets = append(sets, fmt.Sprintf("site_url = $%d", n))
		args = append(args, update.SiteURL)
		n++
	}
	if update.GuardNotGenerating {
		conds = append(conds, "is_generating = false")
	}
	if update.EventAt != nil {
		sets = append(sets, fmt.Sprintf("last_event_at = $%d", n))
		conds = append(conds, fmt.Sprintf("(last_event_at IS NULL OR last_event_at <= $%d)", n))
		args = append(args, *update.EventAt)
		n++
	}

	query := "UPDATE builder.sites SET " + strings.Join(sets, ", ") + " WHERE " + strings.Join(conds, " AND ")
	tag, err := s.tx.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const subscriptionColumns = `id, user_id, site_id, plan_id, status, stripe_customer_id, stripe_subscription_id,
	current_period_end, trial_end, metadata, last_event_at, created_at, updated_at`

type SubscriptionRepo struct {
	tx pgx.Tx
}

var _ interfaces.SubscriptionRepo = (*SubscriptionRepo)(nil)

func NewSubscriptionRepo(tx pgx.Tx) *SubscriptionRepo {
	return &SubscriptionRepo{tx: tx}
}

func (s *SubscriptionRepo) scanSubscription(row pgx.Row) (*db.Subscription, error) {
	var sub db.Subscription
	err := row.Scan(&sub.ID, &sub.UserID, &sub.SiteID, &sub.PlanID, &sub.Status,
		&sub.StripeCustomerID, &sub.StripeSubscriptionID, &sub.CurrentPeriodEnd,
		&sub.TrialEnd, &sub.Metadata, &sub.LastEventAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *SubscriptionRepo) GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*db.Subscription, error) {
	query := "SELECT " + subscriptionColumns + " FROM builder.subscriptions WHERE stripe_subscription_id = $1"
	return s.scanSubscription(s.tx.QueryRow(ctx, query, stripeSubscriptionID))
}

// UpsertSubscription overwrites the row keyed by stripe_subscription_id.
// Rows carrying a newer last_event_at than the incoming event are left alone.
func (s *SubscriptionRepo) UpsertSubscription(ctx context.Context, sub db.Subscription) error {
	metadata := sub.Metadata
	if metadata == nil {
		metadata = json.RawMessage("{}")
	}
	_, err := s.tx.Exec(ctx, `INSERT INTO builder.subscriptions
		(user_id, site_id, plan_id, status, stripe_customer_id, stripe_subscription_id,
			current_period_end, trial_end, metadata, last_event_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now(), now())
		ON CONFLICT (stripe_subscription_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			site_id = EXCLUDED.site_id,
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			current_period_end = EXCLUDED.current_period_end,
			trial_end = EXCLUDED.trial_end,
			metadata = EXCLUDED.metadata,
			last_event_at = EXCLUDED.last_event_at,
			updated_at = now()
		WHERE builder.subscriptions.last_event_at IS NULL
			OR EXCLUDED.last_event_at IS NULL
			OR builder.subscriptions.last_event_at <= EXCLUDED.last_event_at`,
		sub.UserID, sub.SiteID, sub.PlanID, sub.Status, sub.StripeCustomerID,
		sub.StripeSubscriptionID, sub.CurrentPeriodEnd, sub.TrialEnd, metadata, sub.LastEventAt)
	if err != nil {
		return fmt.Errorf("err upserting subscription, %v", err)
	}

	return nil
}

func (s *SubscriptionRepo) GetActiveOthers(ctx context.Context, userID uuid.UUID, exceptStripeSubscriptionID string) ([]db.Subscription, error) {
	query := "SELECT " + subscriptionColumns + ` FROM builder.subscriptions
		WHERE user_id = $1 AND status IN ($2, $3) AND stripe_subscription_id <> $4`
	rows, err := s.tx.Query(ctx, query, userID,
		consts.SubscriptionStatusActive, consts.SubscriptionStatusTrialing, exceptStripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []db.Subscription
	for rows.Next() {
		sub, err := s.scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *SubscriptionRepo) MarkCanceled(ctx context.Context, stripeSubscriptionID string) error {
	_, err := s.tx.Exec(ctx, `UPDATE builder.subscriptions SET status = $2, updated_at = now()
		WHERE stripe_subscription_id = $1`,
		stripeSubscriptionID, consts.SubscriptionStatusCanceled)
	return err
}

type PlanRepo struct {
	tx pgx.Tx
}

var _ interfaces.PlanRepo = (*PlanRepo)(nil)

func NewPlanRepo(tx pgx.Tx) *PlanRepo {
	return &PlanRepo{tx: tx}
}

func (p *PlanRepo) GetPlanByStripePriceID(ctx context.Context, priceID string) (*db.PaymentPlan, error) {
	var plan db.PaymentPlan
	err := p.tx.QueryRow(ctx, "SELECT id, name, stripe_price_id FROM builder.payment_plans WHERE stripe_price_id = $1",
		priceID).Scan(&plan.ID, &plan.Name, &plan.StripePriceID)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *PlanRepo) GetPlanByID(ctx context.Context, id uint64) (*db.PaymentPlan, error) {
	var plan db.PaymentPlan
	err := p.tx.QueryRow(ctx, "SELECT id, name, stripe_price_id FROM builder.payment_plans WHERE id = $1",
		id).Scan(&plan.ID, &plan.Name, &plan.StripePriceID)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

type WebhookEventRepo struct {
	tx pgx.Tx
}

var _ interfaces.WebhookEventRepo = (*WebhookEventRepo)(nil)

func NewWebhookEventRepo(tx pgx.Tx) *WebhookEventRepo {
	return &WebhookEventRepo{tx: tx}
}

func (w *WebhookEventRepo) InsertWebhookEvent(ctx context.Context, source string, payload []byte) error {
	_, err := w.tx.Exec(ctx, "INSERT INTO builder.webhook_events (id, source, payload, received_at) VALUES ($1,$2,$3,$4)",
		uuid.New(), source, payload, time.Now())
	if err != nil {
		return fmt.Errorf("err logging webhook event, %v", err)
	}

	return nil
}

type EventRepo struct {
	tx pgx.Tx
}

var _ interfaces.EventRepo = (*EventRepo)(nil)

func NewEventRepo(tx pgx.Tx) *EventRepo {
	return &EventRepo{tx: tx}
}

func (e *EventRepo) InsertEvent(ctx context.Context, event shared.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("err marshalling event payload, %v", err)
	}
	outbox := db.Outbox{
		Event:     event.GetType(),
		Status:    int(consts.NotProcessed),
		Payload:   json.RawMessage(payload),
		CreatedAt: time.Now(),
	}
	_, err = e.tx.Exec(ctx, "INSERT INTO builder.outbox (event, status, payload, created_at) VALUES ($1,$2,$3,$4)",
		outbox.Event, outbox.Status, outbox.Payload, outbox.CreatedAt)
	if err != nil {
		return fmt.Errorf("err inserting a new event, %v", err)
	}

	return nil
}
