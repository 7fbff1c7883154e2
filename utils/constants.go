package utils

import (
	"time"
)

// Follow-up campaign constants
const (
	// LeadStatusNew is the contact status the nurture and SMS runners select on
	LeadStatusNew = "New"

	// GoogleAdsLeadSource is the only lead source the SMS follow-up runner targets
	GoogleAdsLeadSource = "Google Ads Lead Received"

	// SMSFollowUpIntervalHours is the interval an SMS template must carry to be picked by the SMS runner
	SMSFollowUpIntervalHours = 1

	// SMSFollowUpMinAge is the minimum lead age before the SMS follow-up fires
	SMSFollowUpMinAge = 1 * time.Hour

	// SMSFollowUpLookback bounds how far back the SMS runner looks for new leads.
	// It is wider than SMSFollowUpMinAge so late scheduler fires still catch the lead.
	SMSFollowUpLookback = 2 * time.Hour

	// SignatureReminderIdle is how long a signup must sit untouched before the reminder fires
	SignatureReminderIdle = 24 * time.Hour

	// DefaultClientName is used when a signup carries no client name
	DefaultClientName = "Valued Client"

	// NoSMSTemplateMessage is reported when no 1-hour SMS template is active
	NoSMSTemplateMessage = "No 1-hour SMS template configured."
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

type contextKey string

// Request context keys
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)
