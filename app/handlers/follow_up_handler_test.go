package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	businessflow "github.com/amirphl/homecare-hr/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunFlow struct {
	nurture    *businessflow.NurtureRunSummary
	sms        *businessflow.SMSFollowUpResult
	immediate  *businessflow.ImmediateFollowUpResult
	err        error
	lastUUID   uuid.UUID
	lastCtxTTL time.Duration
}

func (s *stubRunFlow) RunNurture(ctx context.Context, trigger string) (*businessflow.NurtureRunSummary, error) {
	if deadline, ok := ctx.Deadline(); ok {
		s.lastCtxTTL = time.Until(deadline)
	}
	return s.nurture, s.err
}

func (s *stubRunFlow) RunSMSFollowUp(ctx context.Context, trigger string) (*businessflow.SMSFollowUpResult, error) {
	return s.sms, s.err
}

func (s *stubRunFlow) TriggerImmediate(ctx context.Context, contactUUID uuid.UUID, trigger string) (*businessflow.ImmediateFollowUpResult, error) {
	s.lastUUID = contactUUID
	return s.immediate, s.err
}

func newFollowUpTestApp(flow businessflow.FollowUpRunFlow) *fiber.App {
	log, _ := test.NewNullLogger()
	h := NewFollowUpHandler(flow, 4*time.Minute, log)
	app := fiber.New()
	app.Get("/follow-up", h.RunNurture)
	app.Get("/sms-follow-up", h.RunSMSFollowUp)
	app.Post("/contacts/:uuid/immediate-follow-up", h.TriggerImmediate)
	return app
}

func call(t *testing.T, app *fiber.App, method, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestFollowUpHandler_RunNurture(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		flow := &stubRunFlow{nurture: &businessflow.NurtureRunSummary{
			NewLeadsProcessed:          10,
			NewLeadEmailsSent:          4,
			PendingSignaturesProcessed: 2,
			SignatureRemindersSent:     1,
		}}
		status, body := call(t, newFollowUpTestApp(flow), http.MethodGet, "/follow-up")

		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(10), body["newLeadsProcessed"])
		assert.Equal(t, float64(4), body["newLeadEmailsSent"])
		assert.Equal(t, float64(2), body["pendingSignaturesProcessed"])
		assert.Equal(t, float64(1), body["signatureRemindersSent"])
		assert.Equal(t, float64(0), body["errors"])
		assert.NotContains(t, body, "error")
		assert.Greater(t, flow.lastCtxTTL, 3*time.Minute)
	})

	t.Run("FailureKeepsPartialCounts", func(t *testing.T) {
		flow := &stubRunFlow{
			nurture: &businessflow.NurtureRunSummary{NewLeadsProcessed: 3, NewLeadEmailsSent: 1},
			err:     businessflow.NewBusinessError("LIST_SIGNUPS_FAILED", "Failed to load pending signups", errors.New("db down")),
		}
		status, body := call(t, newFollowUpTestApp(flow), http.MethodGet, "/follow-up")

		assert.Equal(t, fiber.StatusInternalServerError, status)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, float64(3), body["newLeadsProcessed"])
		assert.Equal(t, "Failed to load pending signups", body["error"])
	})

	t.Run("RunInProgress", func(t *testing.T) {
		flow := &stubRunFlow{err: businessflow.NewBusinessError("RUN_IN_PROGRESS", "busy", businessflow.ErrRunInProgress)}
		status, body := call(t, newFollowUpTestApp(flow), http.MethodGet, "/follow-up")

		assert.Equal(t, fiber.StatusConflict, status)
		errBody, ok := body["error"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "RUN_IN_PROGRESS", errBody["code"])
	})
}

func TestFollowUpHandler_RunSMSFollowUp(t *testing.T) {
	t.Run("NoTemplate", func(t *testing.T) {
		flow := &stubRunFlow{sms: &businessflow.SMSFollowUpResult{Message: "No 1-hour SMS template configured."}}
		status, body := call(t, newFollowUpTestApp(flow), http.MethodGet, "/sms-follow-up")

		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, map[string]any{"success": true, "message": "No 1-hour SMS template configured."}, body)
	})

	t.Run("Counts", func(t *testing.T) {
		flow := &stubRunFlow{sms: &businessflow.SMSFollowUpResult{TemplateConfigured: true, LeadsChecked: 5, SMSSent: 3, Errors: 1}}
		status, body := call(t, newFollowUpTestApp(flow), http.MethodGet, "/sms-follow-up")

		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, map[string]any{"success": true, "leadsChecked": float64(5), "smsSent": float64(3), "errors": float64(1)}, body)
	})

	t.Run("Failure", func(t *testing.T) {
		flow := &stubRunFlow{sms: &businessflow.SMSFollowUpResult{TemplateConfigured: true, LeadsChecked: 2}, err: errors.New("boom")}
		status, body := call(t, newFollowUpTestApp(flow), http.MethodGet, "/sms-follow-up")

		assert.Equal(t, fiber.StatusInternalServerError, status)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, float64(2), body["leadsChecked"])
		assert.Equal(t, "Internal server error", body["error"])
	})
}

func TestFollowUpHandler_TriggerImmediate(t *testing.T) {
	id := uuid.New()

	t.Run("Success", func(t *testing.T) {
		flow := &stubRunFlow{immediate: &businessflow.ImmediateFollowUpResult{ContactUUID: id, TemplatesMatched: 2, EmailsSent: 2}}
		status, body := call(t, newFollowUpTestApp(flow), http.MethodPost, "/contacts/"+id.String()+"/immediate-follow-up")

		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, id, flow.lastUUID)
		data, ok := body["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(2), data["emails_sent"])
		assert.Equal(t, id.String(), data["contact_uuid"])
	})

	t.Run("InvalidUUID", func(t *testing.T) {
		status, body := call(t, newFollowUpTestApp(&stubRunFlow{}), http.MethodPost, "/contacts/not-a-uuid/immediate-follow-up")

		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "INVALID_CONTACT_UUID", body["error"].(map[string]any)["code"])
	})

	t.Run("NotFound", func(t *testing.T) {
		flow := &stubRunFlow{err: businessflow.NewBusinessError("CONTACT_NOT_FOUND", "Contact not found", businessflow.ErrContactNotFound)}
		status, body := call(t, newFollowUpTestApp(flow), http.MethodPost, "/contacts/"+id.String()+"/immediate-follow-up")

		assert.Equal(t, fiber.StatusNotFound, status)
		assert.Equal(t, "CONTACT_NOT_FOUND", body["error"].(map[string]any)["code"])
	})
}
