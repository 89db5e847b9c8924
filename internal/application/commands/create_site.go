package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/sitecraft/sitegen-backend/internal/application/consts"
	"github.com/sitecraft/sitegen-backend/internal/application/dto"
	"github.com/sitecraft/sitegen-backend/internal/application/errs"
	"github.com/sitecraft/sitegen-backend/internal/infra/db"
	"github.com/sitecraft/sitegen-backend/internal/infra/db/repo"
	dbs "github.com/sitecraft/sitegen-backend/pkg/db"
)

type CreateSite struct {
	uowFactory *dbs.UOWFactory
}

func NewCreateSite(uowFactory *dbs.UOWFactory) *CreateSite {
	return &CreateSite{
		uowFactory: uowFactory,
	}
}

func (c *CreateSite) Execute(ctx context.Context, req dto.CreateSiteRequest) (uint64, error) {
	if req.Business.Name == "" {
		return 0, errs.ValidationError{Err: fmt.Errorf("business name is required")}
	}

	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return 0, fmt.Errorf("error starting tx, %v", err)
	}

	siteRepo := repo.NewSiteRepo(tx)
	siteID, err := siteRepo.InsertSite(ctx, db.Site{
		CreatorID:           req.CreatorID,
		Status:              string(consts.SiteStatusDraft),
		BusinessName:        req.Business.Name,
		BusinessDescription: req.Business.Description,
		BusinessType:        req.Business.Type,
		WebsiteType:         string(consts.WebsiteTypeBasic),
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	})
	if err != nil {
		_ = uow.Rollback()
		return 0, err
	}

	if err = uow.Commit(); err != nil {
		return 0, fmt.Errorf("error commiting tx, %v", err)
	}

	return siteID, nil
}
