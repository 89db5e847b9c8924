package events

import "time"

// GenerateSite asks the pipeline processor to run generation for a site.
// Retries reuse the same event type; the processor resumes from the
// checkpoint persisted on the site row.
type GenerateSite struct {
	SiteID    uint64
	Attempt   int
	CreatedAt time.Time
}

func (e GenerateSite) GetType() string {
	return "GenerateSite"
}
