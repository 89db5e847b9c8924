package db

import (
	"encoding/json"
	"log/slog"

	"github.com/sitecraft/sitegen-backend/internal/application/dto"
	"github.com/sitecraft/sitegen-backend/internal/application/events"
)

func MapOutboxModelToGenerateSite(outbox Outbox) events.GenerateSite {
	var generateSite events.GenerateSite
	if err := json.Unmarshal(outbox.Payload, &generateSite); err != nil {
		slog.Error("error unmarshaling event", "err", err)
		return events.GenerateSite{}
	}
	generateSite.CreatedAt = outbox.CreatedAt

	return generateSite
}

func MapPagesMeta(raw json.RawMessage) []dto.PageMeta {
	if len(raw) == 0 {
		return nil
	}
	var pages []dto.PageMeta
	if err := json.Unmarshal(raw, &pages); err != nil {
		slog.Error("error unmarshaling pages meta", "err", err)
		return nil
	}
	return pages
}

func MapTheme(raw json.RawMessage) *dto.Theme {
	if len(raw) == 0 {
		return nil
	}
	var theme dto.Theme
	if err := json.Unmarshal(raw, &theme); err != nil {
		slog.Error("error unmarshaling theme", "err", err)
		return nil
	}
	return &theme
}
