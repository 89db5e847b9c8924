package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sitecraft/sitegen-backend/internal/application"
	"github.com/sitecraft/sitegen-backend/internal/application/dto"
	"github.com/sitecraft/sitegen-backend/internal/application/errs"
)

type Server struct {
	commands *application.Handlers
}

func NewServer(commands *application.Handlers) *Server {
	return &Server{commands: commands}
}

func RegisterHandlers(app *fiber.App, s *Server) {
	app.Post("/sites", s.CreateSite)
	app.Get("/sites/:id", s.GetSite)
	app.Post("/sites/:id/enrich", s.EnrichContent)
	app.Post("/sites/:id/generate", s.GenerateSite)
	app.Post("/sites/:id/generate/retry", s.GenerateSite)
	app.Post("/sites/:id/generate/abandon", s.AbandonGeneration)
	app.Post("/webhooks/builder", s.BuilderWebhook)
	app.Post("/webhooks/payments", s.PaymentsWebhook)
	app.Post("/payments/checkout", s.CreatePayment)
	app.Post("/payments/verify", s.VerifyPayment)
}

func siteID(c *fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("id"), 10, 64)
}

func (s *Server) CreateSite(c *fiber.Ctx) error {
	var req dto.CreateSiteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	id, err := s.commands.CreateSite.Execute(c.UserContext(), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	resp := dto.CreateSiteResponse{
		SiteID: id,
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) GetSite(c *fiber.Ctx) error {
	id, err := siteID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	site, err := s.commands.GetSite.Query(c.UserContext(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(site)
}

func (s *Server) EnrichContent(c *fiber.Ctx) error {
	id, err := siteID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	var req dto.EnrichContentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	enriched, err := s.commands.EnrichContent.Execute(c.UserContext(), id, req.Prompt)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	resp := dto.EnrichContentResponse{
		Enriched: enriched,
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (s *Server) GenerateSite(c *fiber.Ctx) error {
	id, err := siteID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := s.commands.RequestGeneration.Execute(c.UserContext(), id); err != nil {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	resp := dto.GenerateSiteResponse{
		SiteID: id,
		Status: "creating",
	}

	return c.Status(fiber.StatusAccepted).JSON(resp)
}

func (s *Server) AbandonGeneration(c *fiber.Ctx) error {
	id, err := siteID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if err := s.commands.RequestGeneration.Abandon(c.UserContext(), id); err != nil {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	resp := dto.GenerateSiteResponse{
		SiteID: id,
		Status: "draft",
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// BuilderWebhook acks with 200 for every delivery once the payload is
// logged; apply failures stay internal so the provider does not build up
// a retry storm against us.
func (s *Server) BuilderWebhook(c *fiber.Ctx) error {
	raw := append([]byte(nil), c.Body()...)

	var payload dto.BuilderWebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		slog.Warn("Malformed builder webhook payload", "err", err)
	}

	if err := s.commands.ReconcileStatus.Execute(c.UserContext(), payload, raw); err != nil {
		slog.Error("Builder webhook apply failed", "err", err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.WebhookAck{Success: true})
}

func (s *Server) PaymentsWebhook(c *fiber.Ctx) error {
	raw := append([]byte(nil), c.Body()...)

	err := s.commands.Payment.Webhook(c.UserContext(), raw, c.Get("Stripe-Signature"))
	if err != nil {
		var validation errs.ValidationError
		if errors.As(err, &validation) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		// Logged event, failed apply: still ack, the event log has it.
		slog.Error("Payments webhook apply failed", "err", err)
	}

	return c.Status(fiber.StatusOK).JSON(dto.WebhookAck{Success: true})
}

func (s *Server) CreatePayment(c *fiber.Ctx) error {
	var req dto.CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	clientSecret, err := s.commands.Payment.CreatePayment(c.UserContext(), &req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	resp := dto.CreatePaymentResponse{
		ClientSecret: clientSecret,
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (s *Server) VerifyPayment(c *fiber.Ctx) error {
	var req dto.VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	resp, err := s.commands.Payment.Verify(c.UserContext(), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}
