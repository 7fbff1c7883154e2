package handlers

import (
	"time"

	"github.com/amirphl/homecare-hr/app/dto"
	businessflow "github.com/amirphl/homecare-hr/business_flow"
	"github.com/amirphl/homecare-hr/models"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FollowUpHandlerInterface defines the contract for the cron trigger handlers
type FollowUpHandlerInterface interface {
	RunNurture(c fiber.Ctx) error
	RunSMSFollowUp(c fiber.Ctx) error
	TriggerImmediate(c fiber.Ctx) error
}

// FollowUpHandler handles the follow-up cron endpoints
type FollowUpHandler struct {
	flow       businessflow.FollowUpRunFlow
	runTimeout time.Duration
	log        logrus.FieldLogger
}

// NewFollowUpHandler creates a new follow-up handler
func NewFollowUpHandler(flow businessflow.FollowUpRunFlow, runTimeout time.Duration, log logrus.FieldLogger) *FollowUpHandler {
	return &FollowUpHandler{
		flow:       flow,
		runTimeout: runTimeout,
		log:        log,
	}
}

func (h *FollowUpHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *FollowUpHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RunNurture runs the lead nurture and signature reminder passes
// @Summary Run lead nurture and signature reminders
// @Description Sends due nurture emails to new leads and one-time reminders to idle signups
// @Tags Cron
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.NurtureRunResponse "Run completed"
// @Failure 401 {object} dto.APIResponse "Missing or invalid cron secret"
// @Failure 409 {object} dto.APIResponse "A run is already in progress"
// @Failure 500 {object} dto.NurtureRunResponse "Run failed, partial counts included"
// @Router /api/v1/cron/follow-up [get]
func (h *FollowUpHandler) RunNurture(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/cron/follow-up", h.runTimeout)
	defer cancel()

	summary, err := h.flow.RunNurture(ctx, models.JobTriggerHTTP)
	if businessflow.IsRunInProgress(err) {
		return h.ErrorResponse(c, fiber.StatusConflict, "A follow-up run is already in progress", "RUN_IN_PROGRESS", nil)
	}
	if summary == nil {
		summary = &businessflow.NurtureRunSummary{}
	}

	resp := dto.NurtureRunResponse{
		Success:                    err == nil,
		NewLeadsProcessed:          summary.NewLeadsProcessed,
		NewLeadEmailsSent:          summary.NewLeadEmailsSent,
		PendingSignaturesProcessed: summary.PendingSignaturesProcessed,
		SignatureRemindersSent:     summary.SignatureRemindersSent,
		Errors:                     summary.Errors,
	}
	if err != nil {
		h.log.WithError(err).Error("Follow-up run failed")
		resp.Error = publicMessage(err)
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// RunSMSFollowUp sends the 1-hour SMS to fresh Google Ads leads
// @Summary Run SMS follow-up
// @Description Sends the 1-hour SMS template to new Google Ads leads
// @Tags Cron
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SMSRunResponse "Run completed or no template configured"
// @Failure 401 {object} dto.APIResponse "Missing or invalid cron secret"
// @Failure 409 {object} dto.APIResponse "A run is already in progress"
// @Failure 500 {object} dto.SMSRunResponse "Run failed, partial counts included"
// @Router /api/v1/cron/sms-follow-up [get]
func (h *FollowUpHandler) RunSMSFollowUp(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/cron/sms-follow-up", h.runTimeout)
	defer cancel()

	result, err := h.flow.RunSMSFollowUp(ctx, models.JobTriggerHTTP)
	if businessflow.IsRunInProgress(err) {
		return h.ErrorResponse(c, fiber.StatusConflict, "An SMS follow-up run is already in progress", "RUN_IN_PROGRESS", nil)
	}
	if result == nil {
		result = &businessflow.SMSFollowUpResult{}
	}

	if err == nil && !result.TemplateConfigured {
		return c.Status(fiber.StatusOK).JSON(dto.SMSRunResponse{
			Success: true,
			Message: result.Message,
		})
	}

	resp := dto.SMSRunResponse{
		Success:      err == nil,
		LeadsChecked: &result.LeadsChecked,
		SMSSent:      &result.SMSSent,
		Errors:       &result.Errors,
	}
	if err != nil {
		h.log.WithError(err).Error("SMS follow-up run failed")
		resp.Error = publicMessage(err)
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// TriggerImmediate sends the immediate templates matching a contact's status
// @Summary Trigger immediate follow-up
// @Description Sends interval-0 email templates whose statuses include the contact's current status
// @Tags Cron
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Contact UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ImmediateFollowUpResponse} "Trigger processed"
// @Failure 400 {object} dto.APIResponse "Invalid contact UUID"
// @Failure 401 {object} dto.APIResponse "Missing or invalid cron secret"
// @Failure 404 {object} dto.APIResponse "Contact not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/cron/contacts/{uuid}/immediate-follow-up [post]
func (h *FollowUpHandler) TriggerImmediate(c fiber.Ctx) error {
	contactUUID, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid contact UUID", "INVALID_CONTACT_UUID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/cron/contacts/:uuid/immediate-follow-up", h.runTimeout)
	defer cancel()

	result, err := h.flow.TriggerImmediate(ctx, contactUUID, models.JobTriggerHTTP)
	if err != nil {
		if businessflow.IsContactNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", "CONTACT_NOT_FOUND", nil)
		}
		h.log.WithError(err).WithField("contact_uuid", contactUUID.String()).Error("Immediate follow-up failed")
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Immediate follow-up failed", "IMMEDIATE_FOLLOW_UP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Immediate follow-up processed", dto.ImmediateFollowUpResponse{
		ContactUUID:      result.ContactUUID.String(),
		TemplatesMatched: result.TemplatesMatched,
		EmailsSent:       result.EmailsSent,
		Errors:           result.Errors,
		SkippedReason:    result.SkippedReason,
	})
}

// publicMessage returns the client-facing message of a run failure
func publicMessage(err error) string {
	if be, ok := businessflow.AsBusinessError(err); ok {
		return be.Message
	}
	return "Internal server error"
}
