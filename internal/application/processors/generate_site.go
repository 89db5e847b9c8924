package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sitecraft/sitegen-backend/internal/application/consts"
	"github.com/sitecraft/sitegen-backend/internal/application/dto"
	"github.com/sitecraft/sitegen-backend/internal/application/events"
	"github.com/sitecraft/sitegen-backend/internal/infra/client/builder"
	"github.com/sitecraft/sitegen-backend/internal/infra/db"
	"github.com/sitecraft/sitegen-backend/internal/infra/db/repo"
	dbs "github.com/sitecraft/sitegen-backend/pkg/db"
	shared "github.com/sitecraft/sitegen-backend/pkg/interfaces"
)

// GenerateSite drives the builder through the generation pipeline:
// create site, generate sitemap, apply design, generate pages, publish,
// set front page, fetch links. After each step the site row gets a
// checkpoint, so a retried event resumes instead of re-issuing remote
// calls that already succeeded.
type GenerateSite struct {
	uowFactory *dbs.UOWFactory
	builder    *builder.BuilderClient
}

func NewGenerateSite(uowFactory *dbs.UOWFactory, builderClient *builder.BuilderClient) *GenerateSite {
	return &GenerateSite{
		uowFactory: uowFactory,
		builder:    builderClient,
	}
}

// run carries mutable pipeline state between steps within one attempt.
type run struct {
	site       *db.Site
	websiteID  string
	sitemapUID string
	theme      dto.Theme
	pagesMeta  []dto.PageMeta
	seo        dto.SEO
	links      *builder.Links
}

func (c *GenerateSite) Handle(ctx context.Context, event events.GenerateSite) (shared.UoW, error) {
	site, err := c.loadSite(ctx, event.SiteID)
	if err != nil {
		return nil, err
	}
	if !site.IsGenerating {
		slog.Warn("Generation event for a site that is not generating, skipping", "siteID", site.ID)
		return nil, nil
	}

	r := &run{
		site:       site,
		websiteID:  site.WebsiteID,
		sitemapUID: site.SitemapUID,
		pagesMeta:  db.MapPagesMeta(site.PagesMeta),
	}
	if theme := db.MapTheme(site.Theme); theme != nil {
		r.theme = *theme
	}
	if len(site.SEO) > 0 {
		if err := json.Unmarshal(site.SEO, &r.seo); err != nil {
			slog.Error("error unmarshaling seo", "err", err)
		}
	}

	startStep := site.GenerationStep + 1
	if startStep > 0 {
		slog.Info("Resuming generation from checkpoint", "siteID", site.ID, "step", startStep)
	}

	for step := startStep; step <= consts.StepFetchPreview; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.runStep(ctx, step, r); err != nil {
			slog.Error("Pipeline step failed", "siteID", site.ID, "step", step, "err", err)
			if failErr := c.failSite(ctx, site.ID, err); failErr != nil {
				return nil, fmt.Errorf("err recording failure: %v, after step error: %v", failErr, err)
			}
			return nil, err
		}
		if step < consts.StepFetchPreview {
			if err := c.checkpoint(ctx, step, r); err != nil {
				return nil, err
			}
		}
		slog.Info("Pipeline step completed", "siteID", site.ID, "step", step,
			"progress", step*100/consts.StepFetchPreview)
	}

	return nil, c.finishSite(ctx, r)
}

func (c *GenerateSite) runStep(ctx context.Context, step int, r *run) error {
	site := r.site
	switch step {
	case consts.StepCreateSite:
		websiteID, err := c.builder.CreateSite(ctx, site.BusinessName)
		if err != nil {
			return err
		}
		r.websiteID = websiteID
		return nil

	case consts.StepGenerateSitemap:
		result, err := c.builder.GenerateSitemap(ctx, r.websiteID,
			site.BusinessType, site.WebsiteType, site.BusinessName, site.BusinessDescription)
		if err != nil {
			return err
		}
		r.sitemapUID = result.UniqueID
		r.theme = dto.Theme{Colors: result.Colors, Fonts: result.Fonts}
		r.pagesMeta = result.PagesMeta
		r.seo = result.SEO
		if result.WebsiteType != "" {
			r.site.WebsiteType = result.WebsiteType
		}
		return nil

	case consts.StepApplyDesign:
		return c.builder.UpdateDesign(ctx, r.websiteID, r.theme, r.pagesMeta, r.seo, site.WebsiteType)

	case consts.StepGeneratePages:
		return c.builder.GenerateFromSitemap(ctx, r.websiteID, r.sitemapUID,
			site.BusinessName, site.BusinessDescription)

	case consts.StepPublish:
		return c.builder.Publish(ctx, r.websiteID)

	case consts.StepSetFrontPage:
		return c.builder.SetFrontPage(ctx, r.websiteID)

	case consts.StepFetchPreview:
		links, err := c.builder.GetLinks(ctx, r.websiteID)
		if err != nil {
			return err
		}
		r.links = links
		return nil

	default:
		return fmt.Errorf("unknown pipeline step %d", step)
	}
}

func (c *GenerateSite) loadSite(ctx context.Context, siteID uint64) (*db.Site, error) {
	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return nil, fmt.Errorf("error starting tx, %v", err)
	}
	site, err := repo.NewSiteRepo(tx).GetSiteByID(ctx, siteID)
	_ = uow.Rollback()
	if err != nil {
		return nil, fmt.Errorf("error loading site %d, %v", siteID, err)
	}
	return site, nil
}

func (c *GenerateSite) checkpoint(ctx context.Context, step int, r *run) error {
	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return fmt.Errorf("error starting tx, %v", err)
	}
	siteRepo := repo.NewSiteRepo(tx)

	if step == consts.StepGenerateSitemap {
		theme, err := json.Marshal(r.theme)
		if err != nil {
			_ = uow.Rollback()
			return err
		}
		pagesMeta, err := json.Marshal(r.pagesMeta)
		if err != nil {
			_ = uow.Rollback()
			return err
		}
		seo, err := json.Marshal(r.seo)
		if err != nil {
			_ = uow.Rollback()
			return err
		}
		if err = siteRepo.SaveDesign(ctx, r.site.ID, theme, pagesMeta, seo, r.site.WebsiteType); err != nil {
			_ = uow.Rollback()
			return err
		}
	}

	if err = siteRepo.SaveCheckpoint(ctx, r.site.ID, step, r.websiteID, r.sitemapUID); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

// finishSite writes the terminal success state in one update: status,
// urls and the generation flag change together.
func (c *GenerateSite) finishSite(ctx context.Context, r *run) error {
	adminURL := r.links.AdminURL
	token, err := c.builder.GetAutologin(ctx, r.websiteID, adminURL)
	if err != nil {
		slog.Warn("Autologin unavailable, falling back to plain admin url", "siteID", r.site.ID, "err", err)
	} else if token != "" {
		adminURL = adminURL + "?token=" + token
	}

	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return fmt.Errorf("error starting tx, %v", err)
	}
	siteRepo := repo.NewSiteRepo(tx)
	if err = siteRepo.SaveCheckpoint(ctx, r.site.ID, consts.StepFetchPreview, r.websiteID, r.sitemapUID); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err = siteRepo.FinishGeneration(ctx, r.site.ID, r.links.PreviewURL, adminURL); err != nil {
		_ = uow.Rollback()
		return err
	}
	if err = uow.Commit(); err != nil {
		return fmt.Errorf("error commiting tx, %v", err)
	}

	slog.Info("Generation completed", "siteID", r.site.ID, "previewURL", r.links.PreviewURL)
	return nil
}

func (c *GenerateSite) failSite(ctx context.Context, siteID uint64, cause error) error {
	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return fmt.Errorf("error starting tx, %v", err)
	}
	if err = repo.NewSiteRepo(tx).FailGeneration(ctx, siteID, cause.Error()); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}
