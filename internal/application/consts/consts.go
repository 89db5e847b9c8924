package consts

type SiteStatus string

const SiteStatusDraft SiteStatus = "draft"
const SiteStatusCreating SiteStatus = "creating"
const SiteStatusGenerating SiteStatus = "generating"
const SiteStatusReady SiteStatus = "ready"
const SiteStatusPublished SiteStatus = "published"
const SiteStatusError SiteStatus = "error"

type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
)

type OutboxStatus int

const (
	NotProcessed OutboxStatus = iota
	Processed
	Processing
	InError
)

type BusinessType string

const (
	BusinessTypeInformational BusinessType = "informational"
	BusinessTypeEcommerce     BusinessType = "ecommerce"
	BusinessTypeAgency        BusinessType = "agency"
	BusinessTypeRestaurant    BusinessType = "restaurant"
	BusinessTypeService       BusinessType = "service"
	BusinessTypePortfolio     BusinessType = "portfolio"
	BusinessTypeBlog          BusinessType = "blog"
	BusinessTypeSaaS          BusinessType = "saas"
)

type WebsiteType string

const (
	WebsiteTypeBasic     WebsiteType = "basic"
	WebsiteTypeEcommerce WebsiteType = "ecommerce"
)

// Event types the builder service pushes over its webhook.
type BuilderEventType string

const (
	EventSitePublished       BuilderEventType = "site_published"
	EventSiteReady           BuilderEventType = "site_ready"
	EventGenerationStarted   BuilderEventType = "generation_started"
	EventGenerationCompleted BuilderEventType = "generation_completed"
	EventGenerationFailed    BuilderEventType = "generation_failed"
)

// Generation pipeline steps. Progress is StepX / StepFetchPreview * 100.
const (
	StepCreateSite      = 0
	StepGenerateSitemap = 1
	StepApplyDesign     = 2
	StepGeneratePages   = 3
	StepPublish         = 4
	StepSetFrontPage    = 5
	StepFetchPreview    = 6
)
