package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prayer_attendance/internal/domain/member"
	domainSMS "prayer_attendance/internal/domain/sms"
)

const (
	sendPath      = "/send_sms"
	sendMultiPath = "/send_sms_multi"
	successCode   = 200
)

// Credentials identify the account at the gateway.
type Credentials struct {
	APIID       string
	APIPassword string
}

// BulkSMSClient talks to the transactional SMS gateway over its query-string GET API.
type BulkSMSClient struct {
	baseURL     string
	creds       Credentials
	countryCode string
	http        *http.Client
}

func NewBulkSMSClient(baseURL string, creds Credentials, countryCode string, timeout time.Duration) *BulkSMSClient {
	if countryCode == "" {
		countryCode = member.DefaultCountryCode
	}
	return &BulkSMSClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		creds:       creds,
		countryCode: countryCode,
		http:        &http.Client{Timeout: timeout},
	}
}

type gatewayResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// GatewayError is returned when the gateway answers with a non-success code.
type GatewayError struct {
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("sms gateway rejected request: code %d: %s", e.Code, e.Message)
}

func (c *BulkSMSClient) Send(ctx context.Context, msg domainSMS.Message, phone string) error {
	return c.do(ctx, sendPath, msg, member.LocalPhone(phone, c.countryCode))
}

func (c *BulkSMSClient) SendBulk(ctx context.Context, msg domainSMS.Message, phones []string) error {
	if len(phones) == 0 {
		return nil
	}
	local := make([]string, len(phones))
	for i, p := range phones {
		local[i] = member.LocalPhone(p, c.countryCode)
	}
	return c.do(ctx, sendMultiPath, msg, strings.Join(local, ","))
}

func (c *BulkSMSClient) do(ctx context.Context, path string, msg domainSMS.Message, numbers string) error {
	params := url.Values{}
	params.Set("api_id", c.creds.APIID)
	params.Set("api_password", c.creds.APIPassword)
	params.Set("sms_type", "Transactional")
	params.Set("sms_encoding", "text")
	params.Set("number", numbers)
	params.Set("sender", msg.SenderID)
	params.Set("template_id", msg.TemplateID)
	params.Set("message", msg.Text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("failed to read sms gateway response: %w", err)
	}
	var result gatewayResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("sms gateway returned HTTP %d with undecodable body: %w", resp.StatusCode, err)
	}
	if result.Code != successCode {
		return &GatewayError{Code: result.Code, Message: result.Message}
	}
	return nil
}
