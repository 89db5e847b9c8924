package db

import (
	"time"

	"github.com/sitecraft/sitegen-backend/internal/application/consts"
)

// SiteUpdate describes one guarded, idempotent write against a site row.
// Nil pointer fields are left untouched. GuardNotGenerating restricts the
// write to rows with is_generating = false, which is how webhook-driven
// status changes are kept from clobbering an in-flight generation run.
type SiteUpdate struct {
	Status             *consts.SiteStatus
	IsGenerating       *bool
	AdminURL           string
	SiteURL            string
	GuardNotGenerating bool
	EventAt            *time.Time
}

func (u SiteUpdate) IsZero() bool {
	return u.Status == nil && u.IsGenerating == nil && u.AdminURL == "" && u.SiteURL == ""
}
