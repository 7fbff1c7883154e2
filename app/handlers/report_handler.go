package handlers

import (
	"time"

	"github.com/amirphl/homecare-hr/app/dto"
	businessflow "github.com/amirphl/homecare-hr/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

const exportTimeout = 2 * time.Minute

// ReportHandlerInterface defines the contract for the operator report handlers
type ReportHandlerInterface interface {
	ListJobRuns(c fiber.Ctx) error
	ExportFollowUpHistory(c fiber.Ctx) error
}

// ReportHandler serves job run history and the follow-up history export
type ReportHandler struct {
	flow      businessflow.ReportFlow
	validator *validator.Validate
	log       logrus.FieldLogger
}

// NewReportHandler creates a new report handler
func NewReportHandler(flow businessflow.ReportFlow, log logrus.FieldLogger) *ReportHandler {
	return &ReportHandler{
		flow:      flow,
		validator: validator.New(),
		log:       log,
	}
}

func (h *ReportHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ReportHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListJobRuns returns paginated job run history
// @Summary List job runs
// @Description Paginated history of follow-up runs, newest first
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param job query string false "Job name"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListJobRunsResponse} "Job runs retrieved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/reports/job-runs [get]
func (h *ReportHandler) ListJobRuns(c fiber.Ctx) error {
	var req dto.ListJobRunsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/reports/job-runs", defaultRequestTimeout)
	defer cancel()

	resp, err := h.flow.ListJobRuns(ctx, req)
	if err != nil {
		switch {
		case businessflow.IsInvalidPage(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page", "INVALID_PAGE", nil)
		case businessflow.IsInvalidPageSize(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page size", "INVALID_PAGE_SIZE", nil)
		case businessflow.IsUnknownJob(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown job", "UNKNOWN_JOB", nil)
		}
		h.log.WithError(err).Error("Failed to list job runs")
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list job runs", "LIST_JOB_RUNS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Job runs retrieved successfully", resp)
}

// ExportFollowUpHistory downloads the follow-up history workbook
// @Summary Export follow-up history
// @Description XLSX workbook with one row per follow-up history entry plus a job runs sheet
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param from query string false "Start of the send window (RFC3339)"
// @Param to query string false "End of the send window (RFC3339)"
// @Success 200 {file} file "Workbook"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/reports/follow-up-history.xlsx [get]
func (h *ReportHandler) ExportFollowUpHistory(c fiber.Ctx) error {
	var req dto.ExportFollowUpHistoryRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/reports/follow-up-history.xlsx", exportTimeout)
	defer cancel()

	filename, data, err := h.flow.ExportFollowUpHistory(ctx, req)
	if err != nil {
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}
		if be, ok := businessflow.AsBusinessError(err); ok && be.Code == "VALIDATION_ERROR" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
		}
		h.log.WithError(err).Error("Failed to export follow-up history")
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export follow-up history", "EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}
