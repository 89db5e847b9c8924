package query

import (
	"context"
	"fmt"

	"github.com/sitecraft/sitegen-backend/internal/application/consts"
	"github.com/sitecraft/sitegen-backend/internal/application/dto"
	"github.com/sitecraft/sitegen-backend/internal/infra/db"
	"github.com/sitecraft/sitegen-backend/internal/infra/db/repo"
	dbs "github.com/sitecraft/sitegen-backend/pkg/db"
)

type GetSite struct {
	uowFactory *dbs.UOWFactory
}

func NewGetSite(uowFactory *dbs.UOWFactory) *GetSite {
	return &GetSite{
		uowFactory: uowFactory,
	}
}

func (q *GetSite) Query(ctx context.Context, siteID uint64) (*dto.GetSiteResponse, error) {
	uow := q.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return nil, fmt.Errorf("error starting tx, %v", err)
	}
	site, err := repo.NewSiteRepo(tx).GetSiteByID(ctx, siteID)
	_ = uow.Rollback()
	if err != nil {
		return nil, err
	}

	progress := 0
	if site.GenerationStep >= 0 {
		progress = site.GenerationStep * 100 / consts.StepFetchPreview
	}
	if site.Status == string(consts.SiteStatusReady) || site.Status == string(consts.SiteStatusPublished) {
		progress = 100
	}

	return &dto.GetSiteResponse{
		SiteID:       site.ID,
		WebsiteID:    site.WebsiteID,
		Status:       consts.SiteStatus(site.Status),
		IsGenerating: site.IsGenerating,
		Progress:     progress,
		SiteURL:      site.SiteURL,
		AdminURL:     site.AdminURL,
		PreviewURL:   site.PreviewURL,
		Business: dto.Business{
			Name:        site.BusinessName,
			Description: site.BusinessDescription,
			Type:        site.BusinessType,
		},
		Theme:        db.MapTheme(site.Theme),
		PagesMeta:    db.MapPagesMeta(site.PagesMeta),
		ErrorMessage: site.ErrorMessage,
	}, nil
}
