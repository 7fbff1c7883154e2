package dto

// NurtureRunResponse is the body of the lead nurture cron endpoint
type NurtureRunResponse struct {
	Success                    bool   `json:"success"`
	NewLeadsProcessed          int    `json:"newLeadsProcessed"`
	NewLeadEmailsSent          int    `json:"newLeadEmailsSent"`
	PendingSignaturesProcessed int    `json:"pendingSignaturesProcessed"`
	SignatureRemindersSent     int    `json:"signatureRemindersSent"`
	Errors                     int    `json:"errors"`
	Error                      string `json:"error,omitempty"`
}

// SMSRunResponse is the body of the SMS follow-up cron endpoint. When no template is
// configured only Success and Message are set.
type SMSRunResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	LeadsChecked *int   `json:"leadsChecked,omitempty"`
	SMSSent      *int   `json:"smsSent,omitempty"`
	Errors       *int   `json:"errors,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ImmediateFollowUpResponse reports what an immediate trigger sent
type ImmediateFollowUpResponse struct {
	ContactUUID      string `json:"contact_uuid"`
	TemplatesMatched int    `json:"templates_matched"`
	EmailsSent       int    `json:"emails_sent"`
	Errors           int    `json:"errors"`
	SkippedReason    string `json:"skipped_reason,omitempty"`
}
