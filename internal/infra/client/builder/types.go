package builder

import "github.com/sitecraft/sitegen-backend/internal/application/dto"

type createSiteRequest struct {
	BusinessName string `json:"business_name"`
}

type createSiteResponse struct {
	WebsiteID string `json:"website_id"`
}

type generateSitemapRequest struct {
	BusinessType        string `json:"business_type"`
	BusinessName        string `json:"business_name"`
	BusinessDescription string `json:"business_description"`
}

type GenerateSitemapResult struct {
	UniqueID    string         `json:"unique_id"`
	SEO         dto.SEO        `json:"seo"`
	Colors      []string       `json:"colors"`
	Fonts       []string       `json:"fonts"`
	PagesMeta   []dto.PageMeta `json:"pages_meta"`
	WebsiteType string         `json:"website_type"`
}

type updateDesignRequest struct {
	Colors      []string       `json:"colors"`
	Fonts       []string       `json:"fonts"`
	PagesMeta   []dto.PageMeta `json:"pages_meta"`
	SEO         dto.SEO        `json:"seo"`
	WebsiteType string         `json:"website_type"`
}

type generateFromSitemapRequest struct {
	UniqueID            string `json:"unique_id"`
	BusinessName        string `json:"business_name"`
	BusinessDescription string `json:"business_description"`
}

type jobStatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type publishStatusResponse struct {
	Published bool `json:"published"`
}

type setFrontPageRequest struct {
	Page string `json:"page"`
}

// Links are the user-facing URLs fetched at the end of a publish.
type Links struct {
	PreviewURL string `json:"preview_url"`
	AdminURL   string `json:"admin_url"`
}

type autologinRequest struct {
	AdminURL string `json:"admin_url"`
}

type autologinResponse struct {
	Token string `json:"token"`
}
