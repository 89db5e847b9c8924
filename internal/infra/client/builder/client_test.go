package builder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sitecraft/sitegen-backend/internal/application/consts"
	"github.com/sitecraft/sitegen-backend/internal/application/dto"
	"github.com/sitecraft/sitegen-backend/internal/application/errs"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *BuilderClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)

	return NewBuilderClient(&BuilderConfig{
		schema:       "http",
		host:         parsed.Hostname(),
		port:         parsed.Port(),
		maxAttempts:  3,
		pollInterval: 50 * time.Millisecond,
		pollDeadline: 500 * time.Millisecond,
	})
}

func TestCreateSiteRetriesTransientFailures(t *testing.T) {
	var calls int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"website_id": "w-1"})
	}))

	websiteID, err := client.CreateSite(context.Background(), "Acme")
	require.NoError(t, err)
	require.Equal(t, "w-1", websiteID)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCreateSiteDoesNotRetryRejections(t *testing.T) {
	var calls int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	_, err := client.CreateSite(context.Background(), "Acme")
	var rejected errs.RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, http.StatusUnprocessableEntity, rejected.Status)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must fail immediately")
}

func TestCreateSiteValidatesInput(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no call expected for invalid input")
	}))

	_, err := client.CreateSite(context.Background(), "")
	var validation errs.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestGenerateFromSitemapPollsUntilReady(t *testing.T) {
	var statusCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sites/w-1/generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /sites/w-1/generate/status", func(w http.ResponseWriter, r *http.Request) {
		status := "pending"
		if atomic.AddInt32(&statusCalls, 1) >= 3 {
			status = "ready"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	client := testClient(t, mux)

	err := client.GenerateFromSitemap(context.Background(), "w-1", "uid-1", "Acme", "desc")
	require.NoError(t, err)
	require.GreaterOrEqual(t, atomic.LoadInt32(&statusCalls), int32(3))
}

func TestGenerateFromSitemapTimesOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sites/w-1/generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /sites/w-1/generate/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
	})
	client := testClient(t, mux)

	err := client.GenerateFromSitemap(context.Background(), "w-1", "uid-1", "Acme", "desc")
	var timeout errs.TimeoutError
	require.ErrorAs(t, err, &timeout)
}

func TestGenerateFromSitemapSurfacesJobError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sites/w-1/generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /sites/w-1/generate/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "layout engine crashed"})
	})
	client := testClient(t, mux)

	err := client.GenerateFromSitemap(context.Background(), "w-1", "uid-1", "Acme", "desc")
	require.Error(t, err)
	var timeout errs.TimeoutError
	require.False(t, errors.As(err, &timeout), "job error is not a timeout")
	require.Contains(t, err.Error(), "layout engine crashed")
}

func dtoTheme() dto.Theme {
	return dto.Theme{Colors: []string{"#102030", "#ffffff"}, Fonts: []string{"Inter"}}
}

func dtoSEO() dto.SEO {
	return dto.SEO{Title: "Acme", Description: "Acme shop", Keyphrase: "acme"}
}

func TestUpdateDesignPadsSitemapBeforeSubmission(t *testing.T) {
	var submitted updateDesignRequest
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /sites/w-1/design", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
		w.WriteHeader(http.StatusOK)
	})
	client := testClient(t, mux)

	err := client.UpdateDesign(context.Background(), "w-1",
		dtoTheme(), nil, dtoSEO(), string(consts.WebsiteTypeBasic))
	require.NoError(t, err)
	require.Len(t, submitted.PagesMeta, MinPages)
	for _, page := range submitted.PagesMeta {
		require.GreaterOrEqual(t, len(page.Sections), MinSections)
	}
}

func TestBuilderConfigClampsAttemptCeiling(t *testing.T) {
	t.Setenv("BUILDER_MAX_ATTEMPTS", "0")
	cfg := NewBuilderConfig()
	require.EqualValues(t, 1, cfg.maxAttempts)

	t.Setenv("BUILDER_MAX_ATTEMPTS", "-3")
	cfg = NewBuilderConfig()
	require.EqualValues(t, 1, cfg.maxAttempts)
}

func TestCoerceBusinessType(t *testing.T) {
	cases := []struct {
		businessType string
		websiteType  string
		want         consts.BusinessType
	}{
		{"restaurant", "basic", consts.BusinessTypeRestaurant},
		{"saas", "basic", consts.BusinessTypeSaaS},
		{"ecommerce", "basic", consts.BusinessTypeEcommerce},
		{"food truck", "basic", consts.BusinessTypeInformational},
		{"", "basic", consts.BusinessTypeInformational},
		{"food truck", "ecommerce", consts.BusinessTypeEcommerce},
		{"", "ecommerce", consts.BusinessTypeEcommerce},
		{"blog", "ecommerce", consts.BusinessTypeBlog},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CoerceBusinessType(tc.businessType, tc.websiteType),
			"businessType=%q websiteType=%q", tc.businessType, tc.websiteType)
	}
}
