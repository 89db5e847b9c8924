package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sitecraft/sitegen-backend/internal/application/events"
	"github.com/sitecraft/sitegen-backend/internal/infra/db/repo"
	dbs "github.com/sitecraft/sitegen-backend/pkg/db"
)

// RequestGeneration starts (or retries) the generation pipeline for a site.
// The HTTP request only flips the guard and enqueues an outbox event; the
// pipeline itself runs server-side, so it survives the client going away.
type RequestGeneration struct {
	uowFactory *dbs.UOWFactory
}

func NewRequestGeneration(uowFactory *dbs.UOWFactory) *RequestGeneration {
	return &RequestGeneration{
		uowFactory: uowFactory,
	}
}

func (c *RequestGeneration) Execute(ctx context.Context, siteID uint64) error {
	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return fmt.Errorf("error starting tx, %v", err)
	}

	siteRepo := repo.NewSiteRepo(tx)
	started, err := siteRepo.BeginGeneration(ctx, siteID)
	if err != nil {
		_ = uow.Rollback()
		return fmt.Errorf("error starting generation, %v", err)
	}
	if !started {
		_ = uow.Rollback()
		return fmt.Errorf("site %d is already generating or not in a startable state", siteID)
	}

	eventRepo := repo.NewEventRepo(tx)
	err = eventRepo.InsertEvent(ctx, events.GenerateSite{SiteID: siteID, CreatedAt: time.Now()})
	if err != nil {
		_ = uow.Rollback()
		return err
	}

	if err = uow.Commit(); err != nil {
		return fmt.Errorf("error commiting tx, %v", err)
	}

	slog.Info("Generation requested", "siteID", siteID)
	return nil
}

// Abandon returns a failed run to the design step. Refused while a run is
// still in flight.
func (c *RequestGeneration) Abandon(ctx context.Context, siteID uint64) error {
	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return fmt.Errorf("error starting tx, %v", err)
	}

	siteRepo := repo.NewSiteRepo(tx)
	reset, err := siteRepo.ResetToDraft(ctx, siteID)
	if err != nil {
		_ = uow.Rollback()
		return err
	}
	if !reset {
		_ = uow.Rollback()
		return fmt.Errorf("site %d has a generation in progress", siteID)
	}

	if err = uow.Commit(); err != nil {
		return fmt.Errorf("error commiting tx, %v", err)
	}

	slog.Info("Generation abandoned", "siteID", siteID)
	return nil
}
