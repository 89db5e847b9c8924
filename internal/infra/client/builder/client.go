package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sitecraft/sitegen-backend/internal/application/consts"
	"github.com/sitecraft/sitegen-backend/internal/application/dto"
	"github.com/sitecraft/sitegen-backend/internal/application/errs"
	"github.com/sitecraft/sitegen-backend/internal/application/sitemap"
)

// Minimums the builder service enforces on submitted sitemaps.
const (
	MinPages    = 5
	MinSections = 5
)

// BuilderClient is a typed adapter over the external builder REST API.
// It is stateless and safe for concurrent use across sites.
type BuilderClient struct {
	cfg    *BuilderConfig
	client *http.Client
}

func NewBuilderClient(config *BuilderConfig) *BuilderClient {
	return &BuilderClient{
		config,
		&http.Client{Timeout: 15 * time.Second},
	}
}

func (c *BuilderClient) CreateSite(ctx context.Context, businessName string) (string, error) {
	if businessName == "" {
		return "", errs.ValidationError{Err: fmt.Errorf("business name is required")}
	}
	var result createSiteResponse
	err := c.doJSON(ctx, "POST", "/sites", createSiteRequest{BusinessName: businessName}, &result)
	if err != nil {
		return "", err
	}
	if result.WebsiteID == "" {
		return "", fmt.Errorf("builder returned empty website_id")
	}
	return result.WebsiteID, nil
}

func (c *BuilderClient) GenerateSitemap(ctx context.Context, websiteID, businessType, websiteType, businessName, businessDescription string) (*GenerateSitemapResult, error) {
	req := generateSitemapRequest{
		BusinessType:        string(CoerceBusinessType(businessType, websiteType)),
		BusinessName:        businessName,
		BusinessDescription: businessDescription,
	}
	var result GenerateSitemapResult
	err := c.doJSON(ctx, "POST", "/sites/"+websiteID+"/sitemap", req, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateDesign submits theme and sitemap. The sitemap is padded to the
// service minimums first, sparse sitemaps get rejected outright.
func (c *BuilderClient) UpdateDesign(ctx context.Context, websiteID string, theme dto.Theme, pagesMeta []dto.PageMeta, seo dto.SEO, websiteType string) error {
	req := updateDesignRequest{
		Colors:      theme.Colors,
		Fonts:       theme.Fonts,
		PagesMeta:   sitemap.Normalize(pagesMeta, MinPages, MinSections),
		SEO:         seo,
		WebsiteType: websiteType,
	}
	return c.doJSON(ctx, "PUT", "/sites/"+websiteID+"/design", req, nil)
}

// GenerateFromSitemap submits the page-generation job and polls its status
// until the builder reports ready, error, or the deadline passes.
func (c *BuilderClient) GenerateFromSitemap(ctx context.Context, websiteID, uniqueID, businessName, businessDescription string) error {
	req := generateFromSitemapRequest{
		UniqueID:            uniqueID,
		BusinessName:        businessName,
		BusinessDescription: businessDescription,
	}
	if err := c.doJSON(ctx, "POST", "/sites/"+websiteID+"/generate", req, nil); err != nil {
		return err
	}

	return c.poll(ctx, func(ctx context.Context) (bool, error) {
		var status jobStatusResponse
		if err := c.doJSON(ctx, "GET", "/sites/"+websiteID+"/generate/status", nil, &status); err != nil {
			return false, err
		}
		switch status.Status {
		case "ready":
			return true, nil
		case "error":
			return false, fmt.Errorf("page generation failed: %v", status.Error)
		default:
			return false, nil
		}
	})
}

func (c *BuilderClient) Publish(ctx context.Context, websiteID string) error {
	if err := c.doJSON(ctx, "POST", "/sites/"+websiteID+"/publish", nil, nil); err != nil {
		return err
	}

	return c.poll(ctx, func(ctx context.Context) (bool, error) {
		var status publishStatusResponse
		if err := c.doJSON(ctx, "GET", "/sites/"+websiteID+"/publish/status", nil, &status); err != nil {
			return false, err
		}
		return status.Published, nil
	})
}

func (c *BuilderClient) SetFrontPage(ctx context.Context, websiteID string) error {
	return c.doJSON(ctx, "POST", "/sites/"+websiteID+"/front-page", setFrontPageRequest{Page: "home"}, nil)
}

func (c *BuilderClient) GetLinks(ctx context.Context, websiteID string) (*Links, error) {
	var links Links
	if err := c.doJSON(ctx, "GET", "/sites/"+websiteID+"/links", nil, &links); err != nil {
		return nil, err
	}
	return &links, nil
}

// GetAutologin fetches a short-lived admin token. Callers fall back to the
// plain admin url when this fails.
func (c *BuilderClient) GetAutologin(ctx context.Context, websiteID, adminURL string) (string, error) {
	var result autologinResponse
	err := c.doJSON(ctx, "POST", "/sites/"+websiteID+"/autologin", autologinRequest{AdminURL: adminURL}, &result)
	if err != nil {
		return "", err
	}
	return result.Token, nil
}

// CoerceBusinessType maps free-form input into the set the builder accepts.
// Unknown values become informational, unless the website type says the
// site sells things.
func CoerceBusinessType(businessType, websiteType string) consts.BusinessType {
	switch consts.BusinessType(businessType) {
	case consts.BusinessTypeInformational, consts.BusinessTypeEcommerce, consts.BusinessTypeAgency,
		consts.BusinessTypeRestaurant, consts.BusinessTypeService, consts.BusinessTypePortfolio,
		consts.BusinessTypeBlog, consts.BusinessTypeSaaS:
		return consts.BusinessType(businessType)
	}
	if consts.WebsiteType(websiteType) == consts.WebsiteTypeEcommerce {
		return consts.BusinessTypeEcommerce
	}
	return consts.BusinessTypeInformational
}

// doJSON performs one call with retry. Transport failures and 5xx answers
// retry with exponential backoff up to the attempt ceiling, 4xx answers
// fail immediately.
func (c *BuilderClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("err marshalling request, %v", err)
		}
	}

	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		request, err := http.NewRequestWithContext(ctx, method, c.cfg.getURL()+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		request.Header.Set("Content-Type", "application/json")
		if c.cfg.token != "" {
			request.Header.Set("Authorization", "Bearer "+c.cfg.token)
		}

		resp, err := c.client.Do(request)
		if err != nil {
			return errs.TransientError{Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return errs.TransientError{Err: fmt.Errorf("builder answered %d on %s %s", resp.StatusCode, method, path)}
		}
		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(errs.RejectedError{
				Status: resp.StatusCode,
				Err:    fmt.Errorf("%s %s: %s", method, path, string(msg)),
			})
		}
		if out == nil {
			return nil
		}
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("err decoding response of %s %s, %v", method, path, err))
		}
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.maxAttempts-1)
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// poll checks immediately, then on a fixed interval under the configured
// deadline. Deadline expiry surfaces as TimeoutError so callers can tell
// "still running" apart from a definite failure.
func (c *BuilderClient) poll(ctx context.Context, check func(context.Context) (bool, error)) error {
	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.pollDeadline)
	defer cancel()

	ticker := time.NewTicker(c.cfg.pollInterval)
	defer ticker.Stop()

	for {
		done, err := check(pollCtx)
		if err != nil {
			if pollCtx.Err() != nil {
				return errs.TimeoutError{Err: pollCtx.Err()}
			}
			return err
		}
		if done {
			return nil
		}

		select {
		case <-pollCtx.Done():
			return errs.TimeoutError{Err: pollCtx.Err()}
		case <-ticker.C:
		}
	}
}
