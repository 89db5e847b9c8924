package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/sitecraft/sitegen-backend/internal/application/consts"
	"github.com/sitecraft/sitegen-backend/internal/application/dto"
	"github.com/sitecraft/sitegen-backend/internal/infra/db"
	"github.com/sitecraft/sitegen-backend/internal/infra/db/repo"
	dbs "github.com/sitecraft/sitegen-backend/pkg/db"
)

const builderWebhookSource = "builder"

// ReconcileStatus merges builder webhook deliveries into the site row.
// Deliveries are at-least-once, can duplicate and can reorder; every apply
// is a guarded conditional update, so replaying any payload converges to
// the same state.
type ReconcileStatus struct {
	uowFactory *dbs.UOWFactory
}

func NewReconcileStatus(uowFactory *dbs.UOWFactory) *ReconcileStatus {
	return &ReconcileStatus{
		uowFactory: uowFactory,
	}
}

// Execute logs the raw payload first, in its own transaction, then tries to
// apply it. Apply failures are returned for logging only; the caller still
// acks the provider once the payload is durably logged.
func (c *ReconcileStatus) Execute(ctx context.Context, payload dto.BuilderWebhookPayload, raw []byte) error {
	if payload.Test {
		slog.Info("Builder webhook validation ping acknowledged")
		return nil
	}

	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return fmt.Errorf("error starting tx, %v", err)
	}
	if err = repo.NewWebhookEventRepo(tx).InsertWebhookEvent(ctx, builderWebhookSource, raw); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err = uow.Commit(); err != nil {
		return fmt.Errorf("error commiting event log, %v", err)
	}

	return c.apply(ctx, payload)
}

func (c *ReconcileStatus) apply(ctx context.Context, payload dto.BuilderWebhookPayload) error {
	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return fmt.Errorf("error starting tx, %v", err)
	}

	siteRepo := repo.NewSiteRepo(tx)
	site, err := siteRepo.ResolveSite(ctx, payload.SiteIDRef(), payload.WebsiteID)
	if err != nil {
		_ = uow.Rollback()
		if err == pgx.ErrNoRows {
			slog.Warn("Webhook addressed unknown site",
				"siteID", payload.SiteID, "websiteID", payload.WebsiteID, "eventType", payload.EventType)
			return nil
		}
		return fmt.Errorf("error resolving site, %v", err)
	}

	updates := DecideSiteUpdates(site, payload)
	if len(updates) == 0 {
		_ = uow.Rollback()
		slog.Info("Webhook caused no state change", "siteID", site.ID, "eventType", payload.EventType, "status", payload.Status)
		return nil
	}

	for _, update := range updates {
		applied, err := siteRepo.ApplySiteUpdate(ctx, site.ID, update)
		if err != nil {
			_ = uow.Rollback()
			return fmt.Errorf("error applying site update, %v", err)
		}
		if !applied {
			slog.Info("Guarded update skipped", "siteID", site.ID, "eventType", payload.EventType)
		}
	}

	if err = uow.Commit(); err != nil {
		return fmt.Errorf("error commiting tx, %v", err)
	}

	slog.Info("Webhook reconciled", "siteID", site.ID, "eventType", payload.EventType, "status", payload.Status)
	return nil
}

// Generic statuses that may be applied while no generation is running.
func isSafeStatus(status string) bool {
	switch status {
	case "published", "ready", "live", "completed":
		return true
	}
	return false
}

// DecideSiteUpdates classifies a payload against the current row state and
// returns the guarded updates to run, ordered, inside one transaction.
// Pure: no I/O, deterministic for identical inputs.
func DecideSiteUpdates(site *db.Site, payload dto.BuilderWebhookPayload) []db.SiteUpdate {
	// Provider timestamps, when present, drop deliveries older than the
	// last applied event. Payloads without one rely on the guards alone.
	if payload.OccurredAt != nil && site.LastEventAt != nil && payload.OccurredAt.Before(*site.LastEventAt) {
		return nil
	}

	ready := consts.SiteStatusReady
	published := consts.SiteStatusPublished
	generating := consts.SiteStatusGenerating
	errored := consts.SiteStatusError
	on := true
	off := false

	var updates []db.SiteUpdate

	switch consts.BuilderEventType(payload.EventType) {
	case consts.EventSitePublished, consts.EventSiteReady:
		// URLs merge unconditionally; the status change stays behind the
		// generation guard. Both events land the site in ready; published
		// only enters through the generic status field.
		merge := db.SiteUpdate{EventAt: payload.OccurredAt}
		if payload.Data != nil {
			merge.AdminURL = payload.Data.AdminURL
			merge.SiteURL = payload.Data.SiteURL
		}
		if !merge.IsZero() {
			updates = append(updates, merge)
		}
		if !site.IsGenerating {
			updates = append(updates, db.SiteUpdate{Status: &ready, GuardNotGenerating: true, EventAt: payload.OccurredAt})
		}

	case consts.EventGenerationStarted:
		if !site.IsGenerating {
			updates = append(updates, db.SiteUpdate{
				Status:             &generating,
				IsGenerating:       &on,
				GuardNotGenerating: true,
				EventAt:            payload.OccurredAt,
			})
		}

	case consts.EventGenerationCompleted:
		updates = append(updates, db.SiteUpdate{Status: &ready, IsGenerating: &off, EventAt: payload.OccurredAt})

	case consts.EventGenerationFailed:
		updates = append(updates, db.SiteUpdate{Status: &errored, IsGenerating: &off, EventAt: payload.OccurredAt})

	default:
		if payload.Status == "" {
			return updates
		}
		if !isSafeStatus(payload.Status) {
			// Dangerous statuses (generating, creating, processing) only
			// enter through an explicit generation_started event.
			return updates
		}
		if site.IsGenerating {
			return updates
		}
		status := ready
		if payload.Status == "published" {
			status = published
		}
		update := db.SiteUpdate{Status: &status, GuardNotGenerating: true, EventAt: payload.OccurredAt}
		if payload.Data != nil {
			update.AdminURL = payload.Data.AdminURL
			update.SiteURL = payload.Data.SiteURL
		}
		updates = append(updates, update)
	}

	return updates
}
