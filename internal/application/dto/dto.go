package dto

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sitecraft/sitegen-backend/internal/application/consts"
)

type SectionMeta struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type PageMeta struct {
	Title    string        `json:"title"`
	Sections []SectionMeta `json:"sections"`
}

type Business struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type Theme struct {
	Colors []string `json:"colors"`
	Fonts  []string `json:"fonts"`
}

type SEO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Keyphrase   string `json:"keyphrase"`
}

type CreateSiteRequest struct {
	CreatorID uuid.UUID `json:"creatorId"`
	Business  Business  `json:"business"`
}

type CreateSiteResponse struct {
	SiteID uint64 `json:"siteId"`
}

type GetSiteResponse struct {
	SiteID       uint64            `json:"siteId"`
	WebsiteID    string            `json:"websiteId,omitempty"`
	Status       consts.SiteStatus `json:"status"`
	IsGenerating bool              `json:"isGenerating"`
	Progress     int               `json:"progress"`
	SiteURL      string            `json:"siteUrl,omitempty"`
	AdminURL     string            `json:"adminUrl,omitempty"`
	PreviewURL   string            `json:"previewUrl,omitempty"`
	Business     Business          `json:"business"`
	Theme        *Theme            `json:"theme,omitempty"`
	PagesMeta    []PageMeta        `json:"pagesMeta,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
}

type GenerateSiteResponse struct {
	SiteID uint64            `json:"siteId"`
	Status consts.SiteStatus `json:"status"`
}

type EnrichContentRequest struct {
	Prompt string `json:"prompt"`
}

type EnrichContentResponse struct {
	Enriched string `json:"enriched"`
}

// WireID is an identifier that arrives as a JSON string, though some
// senders encode it as a bare number. Both decode to the string form.
type WireID string

func (w *WireID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*w = WireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*w = WireID(n.String())
	return nil
}

// BuilderWebhookPayload is the inbound shape pushed by the builder service.
// Either SiteID or WebsiteID addresses the target site; OccurredAt is
// optional and used to drop stale deliveries.
type BuilderWebhookPayload struct {
	Test       bool                `json:"test,omitempty"`
	SiteID     WireID              `json:"site_id,omitempty"`
	WebsiteID  string              `json:"website_id,omitempty"`
	Status     string              `json:"status,omitempty"`
	EventType  string              `json:"event_type,omitempty"`
	OccurredAt *time.Time          `json:"occurred_at,omitempty"`
	Data       *BuilderWebhookData `json:"data,omitempty"`
}

// SiteIDRef parses the wire site_id into the numeric primary key.
// Returns nil when the field is absent or not numeric; resolution then
// falls back to website_id.
func (p BuilderWebhookPayload) SiteIDRef() *uint64 {
	if p.SiteID == "" {
		return nil
	}
	parsed, err := strconv.ParseUint(string(p.SiteID), 10, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

type BuilderWebhookData struct {
	AdminURL string `json:"admin_url,omitempty"`
	SiteURL  string `json:"site_url,omitempty"`
}

type WebhookAck struct {
	Success bool `json:"success"`
}

type CreatePaymentRequest struct {
	UserID uuid.UUID `json:"userId"`
	SiteID uint64    `json:"siteId"`
	PlanID uint64    `json:"planId"`
}

type CreatePaymentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type VerifyPaymentRequest struct {
	SessionID string `json:"sessionId"`
	SiteID    uint64 `json:"siteId"`
}

type VerifyPaymentResponse struct {
	Success      bool                 `json:"success"`
	Subscription *SubscriptionSummary `json:"subscription,omitempty"`
}

type SubscriptionSummary struct {
	StripeSubscriptionID string                    `json:"stripeSubscriptionId"`
	PlanID               uint64                    `json:"planId"`
	Status               consts.SubscriptionStatus `json:"status"`
	CurrentPeriodEnd     time.Time                 `json:"currentPeriodEnd"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
