package application

import (
	"github.com/sitecraft/sitegen-backend/internal/application/commands"
	"github.com/sitecraft/sitegen-backend/internal/application/processors"
	"github.com/sitecraft/sitegen-backend/internal/application/query"
)

type Handlers struct {
	CreateSite        *commands.CreateSite
	RequestGeneration *commands.RequestGeneration
	EnrichContent     *commands.EnrichContent
	ReconcileStatus   *commands.ReconcileStatus
	Payment           *commands.Payment
	GetSite           *query.GetSite
}

type Processors struct {
	GenerateSite *processors.GenerateSite
}
