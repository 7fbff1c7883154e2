// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/homecare-hr/config"
	"github.com/amirphl/homecare-hr/utils"
)

// SMSService handles SMS sending operations
type SMSService interface {
	// SendSMS hands one message to the provider and returns the provider message id
	SendSMS(ctx context.Context, recipient, message string) (string, error)
}

// SMSServiceImpl talks to the provider's JSON send API
type SMSServiceImpl struct {
	config  *config.SMSConfig
	client  *http.Client
	baseURL string
}

// SMSRequest represents the request payload for SMS API
type SMSRequest struct {
	SrcNum         string `json:"srcNum"`
	Recipient      string `json:"recipient"`
	Body           string `json:"body"`
	RetryCount     int    `json:"retryCount"`
	Type           int    `json:"type"` // Always 1
	ValidityPeriod int    `json:"validityPeriod"`
}

// SMSResponse represents individual message result from SMS API
type SMSResponse struct {
	MessageID  int64  `json:"messageId"`
	SrcNum     string `json:"srcNum"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

// NewSMSService creates a new SMS service instance
func NewSMSService(cfg *config.SMSConfig) SMSService {
	baseURL := cfg.ProviderDomain
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	return &SMSServiceImpl{
		config:  cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SendSMS sends an SMS message
func (s *SMSServiceImpl) SendSMS(ctx context.Context, recipient, message string) (string, error) {
	requestBody, err := json.Marshal([]SMSRequest{{
		SrcNum:         s.config.SourceNumber,
		Recipient:      recipient,
		Body:           message,
		RetryCount:     s.config.RetryCount,
		Type:           1,
		ValidityPeriod: s.config.ValidityPeriod,
	}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	url := s.baseURL + "/api/v3.0.1/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("SMS provider returned HTTP %d", resp.StatusCode)
	}

	var results []SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("failed to decode SMS response: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("SMS provider returned no result for %s", recipient)
	}

	r := results[0]
	if r.StatusCode != http.StatusOK || r.Status != "ACCEPTED" {
		return "", fmt.Errorf("SMS delivery failed for %s: %s (%d)", r.Recipient, r.Status, r.StatusCode)
	}
	return strconv.FormatInt(r.MessageID, 10), nil
}

// MockSMSService implements SMSService for development and tests
type MockSMSService struct {
	mu           sync.Mutex
	sentMessages []MockSMSMessage
	failures     map[string]error
	nextID       int64
}

// MockSMSMessage represents a mock SMS message
type MockSMSMessage struct {
	Recipient string
	Message   string
	MessageID string
	SentAt    time.Time
}

// NewMockSMSService creates a new mock SMS service
func NewMockSMSService() *MockSMSService {
	return &MockSMSService{
		sentMessages: make([]MockSMSMessage, 0),
		failures:     make(map[string]error),
	}
}

// FailFor makes every send to recipient return err
func (m *MockSMSService) FailFor(recipient string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[recipient] = err
}

func (m *MockSMSService) SendSMS(ctx context.Context, recipient, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failures[recipient]; ok {
		return "", err
	}

	m.nextID++
	id := fmt.Sprintf("mock-%d", m.nextID)
	m.sentMessages = append(m.sentMessages, MockSMSMessage{
		Recipient: recipient,
		Message:   message,
		MessageID: id,
		SentAt:    utils.UTCNow(),
	})
	return id, nil
}

// GetSentMessages returns all sent mock messages
func (m *MockSMSService) GetSentMessages() []MockSMSMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSMSMessage, len(m.sentMessages))
	copy(out, m.sentMessages)
	return out
}

// ClearSentMessages clears the sent messages list
func (m *MockSMSService) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentMessages = make([]MockSMSMessage, 0)
}
