// Package whatsapp is a client for a self-hosted GOWA WhatsApp gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"freelancer_ops_backend/platform/config"
	"freelancer_ops_backend/platform/logger"
)

const (
	sendMessagePath = "/send/message"
	requestTimeout  = 10 * time.Second
	maxErrorBody    = 512
)

// ErrNotConfigured is returned by a nil client.
var ErrNotConfigured = errors.New("whatsapp gateway not configured")

// Client talks to one GOWA device.
type Client struct {
	baseURL    string
	authHeader string
	deviceID   string
	http       *http.Client
	log        *logger.Logger
}

type sendMessageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// gatewayResponse is the envelope GOWA wraps every reply in.
type gatewayResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient returns nil when no gateway URL is configured.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if strings.TrimSpace(cfg.GetWhatsAppURL()) == "" {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		authHeader: basicAuth(cfg.GetWhatsAppKey()),
		deviceID:   cfg.GetWhatsAppDeviceID(),
		http:       &http.Client{Timeout: requestTimeout},
		log:        log,
	}
}

// Configured reports whether the gateway can be called.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// SendMessage sends a text message to an E.164 number. GOWA expects the
// number without the leading plus.
func (c *Client) SendMessage(ctx context.Context, e164 string, message string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	phone := strings.TrimPrefix(e164, "+")
	if err := c.post(ctx, sendMessagePath, sendMessageRequest{Phone: phone, Message: message}); err != nil {
		return err
	}

	c.log.Debug("whatsapp message sent via gateway", "phone", phone)
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return gatewayError(resp)
}

// gatewayError prefers the message from GOWA's JSON envelope and falls back
// to the raw body.
func gatewayError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var envelope gatewayResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != "" {
		return fmt.Errorf("whatsapp gateway returned %d (%s): %s", resp.StatusCode, envelope.Code, envelope.Message)
	}
	return fmt.Errorf("whatsapp gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}

// basicAuth accepts either "user:pass" or a ready "Basic ..." header.
func basicAuth(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(key), "basic ") {
		return key
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(key))
}
