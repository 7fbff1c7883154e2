package businessflow

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/homecare-hr/app/dto"
	"github.com/amirphl/homecare-hr/models"
	"github.com/amirphl/homecare-hr/repository"
	"github.com/amirphl/homecare-hr/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	defaultReportPage     = 1
	defaultReportPageSize = 20
	maxReportPageSize     = 100

	exportContactBatch = 500
	exportJobRunLimit  = 5000

	historySheet = "Follow-up History"
	jobRunSheet  = "Job Runs"
	smsSheet     = "SMS Sent"
)

var reportJobs = []string{
	models.JobNurture,
	models.JobLeadNurture,
	models.JobSignatureReminder,
	models.JobSMSFollowUp,
	models.JobImmediateFollowUp,
}

// ReportFlow exposes job run history and the follow-up history export
type ReportFlow interface {
	ListJobRuns(ctx context.Context, req dto.ListJobRunsRequest) (*dto.ListJobRunsResponse, error)
	ExportFollowUpHistory(ctx context.Context, req dto.ExportFollowUpHistoryRequest) (string, []byte, error)
}

// ReportFlowImpl implements ReportFlow
type ReportFlowImpl struct {
	contactRepo  repository.ContactRepository
	templateRepo repository.CampaignTemplateRepository
	jobRunRepo   repository.JobRunRepository
	sentSMSRepo  repository.SentSMSRepository
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewReportFlow creates a new report flow
func NewReportFlow(
	contactRepo repository.ContactRepository,
	templateRepo repository.CampaignTemplateRepository,
	jobRunRepo repository.JobRunRepository,
	sentSMSRepo repository.SentSMSRepository,
	log logrus.FieldLogger,
) *ReportFlowImpl {
	return &ReportFlowImpl{
		contactRepo:  contactRepo,
		templateRepo: templateRepo,
		jobRunRepo:   jobRunRepo,
		sentSMSRepo:  sentSMSRepo,
		log:          log,
		now:          utils.UTCNow,
	}
}

func (f *ReportFlowImpl) ListJobRuns(ctx context.Context, req dto.ListJobRunsRequest) (*dto.ListJobRunsResponse, error) {
	page, pageSize := req.Page, req.PageSize
	if page == 0 {
		page = defaultReportPage
	}
	if pageSize == 0 {
		pageSize = defaultReportPageSize
	}
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Invalid page", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > maxReportPageSize {
		return nil, NewBusinessError("INVALID_PAGE_SIZE", "Invalid page size", ErrInvalidPageSize)
	}

	filter := models.JobRunFilter{}
	if job := strings.TrimSpace(req.Job); job != "" {
		if !slices.Contains(reportJobs, job) {
			return nil, NewBusinessErrorf("UNKNOWN_JOB", "Unknown job %q", ErrUnknownJob, job)
		}
		filter.Job = &job
	}

	total, err := f.jobRunRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("COUNT_JOB_RUNS_FAILED", "Failed to count job runs", err)
	}
	runs, err := f.jobRunRepo.ByFilter(ctx, filter, "started_at DESC, id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_JOB_RUNS_FAILED", "Failed to list job runs", err)
	}

	items := make([]dto.JobRunItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, toJobRunItem(r))
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &dto.ListJobRunsResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
		},
	}, nil
}

func toJobRunItem(r *models.JobRun) dto.JobRunItem {
	return dto.JobRunItem{
		ID:           r.ID,
		Job:          r.Job,
		Trigger:      r.Trigger,
		RequestID:    r.RequestID,
		Success:      !r.IsFailed(),
		Counts:       r.Counts,
		ErrorMessage: r.ErrorMessage,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		DurationMS:   r.Duration().Milliseconds(),
	}
}

// ExportFollowUpHistory writes every history entry sent within [from, to] to a workbook
func (f *ReportFlowImpl) ExportFollowUpHistory(ctx context.Context, req dto.ExportFollowUpHistoryRequest) (string, []byte, error) {
	from, to, err := parseExportRange(req)
	if err != nil {
		return "", nil, err
	}

	templates, err := f.templateRepo.ByFilter(ctx, models.CampaignTemplateFilter{}, "id ASC", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("LIST_TEMPLATES_FAILED", "Failed to load templates", err)
	}
	byID := make(map[string]*models.CampaignTemplate, len(templates))
	for _, t := range templates {
		byID[t.TemplateID()] = t
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	xl.SetSheetName(xl.GetSheetName(0), historySheet)
	header := []string{"contact_id", "contact_uuid", "contact_name", "contact_email", "contact_status", "template_id", "template_name", "template_type", "sent_at"}
	_ = xl.SetSheetRow(historySheet, "A1", &header)

	row := 2
	for offset := 0; ; offset += exportContactBatch {
		contacts, err := f.contactRepo.ListWithFollowUpHistory(ctx, exportContactBatch, offset)
		if err != nil {
			return "", nil, NewBusinessError("LIST_CONTACTS_FAILED", "Failed to load contacts", err)
		}
		for _, c := range contacts {
			for _, e := range c.FollowUpHistory {
				if !inRange(e.SentAt, from, to) {
					continue
				}
				name, kind := "", ""
				if t, ok := byID[e.TemplateID]; ok {
					name, kind = t.Name, string(t.Type)
				}
				record := []string{
					strconv.FormatUint(uint64(c.ID), 10),
					c.UUID.String(),
					c.Name,
					c.Email,
					c.Status,
					e.TemplateID,
					name,
					kind,
					e.SentAt.UTC().Format(time.RFC3339),
				}
				cellRef, _ := excelize.CoordinatesToCellName(1, row)
				_ = xl.SetSheetRow(historySheet, cellRef, &record)
				row++
			}
		}
		if len(contacts) < exportContactBatch {
			break
		}
	}

	runs, err := f.jobRunRepo.ByFilter(ctx, models.JobRunFilter{StartedAfter: from, StartedBefore: to}, "started_at ASC, id ASC", exportJobRunLimit, 0)
	if err != nil {
		return "", nil, NewBusinessError("LIST_JOB_RUNS_FAILED", "Failed to list job runs", err)
	}
	_, _ = xl.NewSheet(jobRunSheet)
	runHeader := []string{"id", "job", "trigger", "request_id", "success", "started_at", "finished_at", "duration_ms", "error"}
	_ = xl.SetSheetRow(jobRunSheet, "A1", &runHeader)
	for i, r := range runs {
		item := toJobRunItem(r)
		finished := ""
		if item.FinishedAt != nil {
			finished = item.FinishedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Job,
			item.Trigger,
			derefString(item.RequestID),
			strconv.FormatBool(item.Success),
			item.StartedAt.UTC().Format(time.RFC3339),
			finished,
			strconv.FormatInt(item.DurationMS, 10),
			derefString(item.ErrorMessage),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(jobRunSheet, cellRef, &record)
	}

	sms, err := f.sentSMSRepo.ListSentBetween(ctx, from, to, exportJobRunLimit)
	if err != nil {
		return "", nil, NewBusinessError("LIST_SENT_SMS_FAILED", "Failed to list sent SMS", err)
	}
	_, _ = xl.NewSheet(smsSheet)
	smsHeader := []string{"id", "contact_id", "template_id", "phone_number", "provider_message_id", "status", "sent_at"}
	_ = xl.SetSheetRow(smsSheet, "A1", &smsHeader)
	for i, m := range sms {
		record := []string{
			strconv.FormatUint(uint64(m.ID), 10),
			strconv.FormatUint(uint64(m.ContactID), 10),
			m.TemplateUUID,
			m.PhoneNumber,
			derefString(m.ProviderMessageID),
			string(m.Status),
			m.CreatedAt.UTC().Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(smsSheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	f.log.WithField("rows", row-2).Info("Follow-up history exported")
	filename := fmt.Sprintf("follow_up_history_%s.xlsx", f.now().Format("20060102T150405Z"))
	return filename, buf.Bytes(), nil
}

func parseExportRange(req dto.ExportFollowUpHistoryRequest) (*time.Time, *time.Time, error) {
	parse := func(field, value string) (*time.Time, error) {
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return nil, NewBusinessErrorf("VALIDATION_ERROR", "%s must be an RFC3339 timestamp", err, field)
		}
		return utils.TimeToUTCPtr(&t), nil
	}

	from, err := parse("from", req.From)
	if err != nil {
		return nil, nil, err
	}
	to, err := parse("to", req.To)
	if err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, NewBusinessError("INVALID_DATE_RANGE", "Start date cannot be after end date", ErrStartDateAfterEndDate)
	}
	return from, to, nil
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
