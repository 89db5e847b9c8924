package commands

import (
	"context"
	"fmt"

	ai "github.com/sitecraft/sitegen-backend/internal/infra/client/openai"
	"github.com/sitecraft/sitegen-backend/internal/infra/db/repo"
	dbs "github.com/sitecraft/sitegen-backend/pkg/db"
)

// EnrichContent rewrites a site's business description before generation.
type EnrichContent struct {
	uowFactory *dbs.UOWFactory
	aiClient   *ai.OpenAIClient
}

func NewEnrichContent(uowFactory *dbs.UOWFactory, client *ai.OpenAIClient) *EnrichContent {
	return &EnrichContent{
		uowFactory,
		client,
	}
}

func (c *EnrichContent) Execute(ctx context.Context, siteID uint64, prompt string) (string, error) {
	uow := c.uowFactory.GetUoW()
	tx, err := uow.Begin()
	if err != nil {
		return "", fmt.Errorf("error starting tx, %v", err)
	}
	siteRepo := repo.NewSiteRepo(tx)
	site, err := siteRepo.GetSiteByID(ctx, siteID)
	if err != nil {
		_ = uow.Rollback()
		return "", err
	}
	_ = uow.Rollback()

	if prompt == "" {
		prompt = site.BusinessDescription
	}
	enriched, err := c.aiClient.EnrichContent(ctx, prompt)
	if err != nil {
		return "", err
	}

	uow = c.uowFactory.GetUoW()
	tx, err = uow.Begin()
	if err != nil {
		return "", fmt.Errorf("error starting tx, %v", err)
	}
	if err = repo.NewSiteRepo(tx).UpdateBusinessDescription(ctx, siteID, enriched); err != nil {
		_ = uow.Rollback()
		return "", err
	}
	if err = uow.Commit(); err != nil {
		return "", fmt.Errorf("error commiting tx, %v", err)
	}

	return enriched, nil
}
