// Package notify sends WhatsApp template campaigns to segmented
// subscribers through the Infobip API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================================
// INFOBIP WHATSAPP CLIENT
// ============================================================================

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("whatsapp notifications are not configured")

// DefaultTemplate is the template used when the caller does not name one.
const DefaultTemplate = "test_whatsapp_template_en"

// pacing between consecutive sends, to stay under the rate limit.
const sendInterval = 500 * time.Millisecond

var numberCleanup = regexp.MustCompile(`[\s\-\(\)]`)

// Config holds Infobip credentials.
type Config struct {
	APIKey  string
	From    string // sender number, international format without +
	BaseURL string // e.g. https://xxxxx.api.infobip.com

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client sends WhatsApp template messages.
type Client struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
	log     *zap.Logger

	// interval is overridable so tests don't wait out real pacing.
	interval time.Duration
}

// NewClient creates a WhatsApp client.
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		client:   cfg.HTTPClient,
		log:      cfg.Logger,
		interval: sendInterval,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// TemplateData fills a template's body placeholders.
type TemplateData struct {
	Body struct {
		Placeholders []string `json:"placeholders"`
	} `json:"body"`
}

// Placeholders builds TemplateData from body placeholder values.
func Placeholders(values ...string) TemplateData {
	var d TemplateData
	d.Body.Placeholders = values
	return d
}

type templateMessage struct {
	From      string `json:"from"`
	To        string `json:"to"`
	MessageID string `json:"messageId"`
	Content   struct {
		TemplateName string       `json:"templateName"`
		TemplateData TemplateData `json:"templateData"`
		Language     string       `json:"language"`
	} `json:"content"`
}

type templateRequest struct {
	Messages []templateMessage `json:"messages"`
}

// Send delivers one template message. The recipient number is cleaned
// of spaces, dashes and parentheses first.
func (c *Client) Send(ctx context.Context, to, templateName, language string, data TemplateData) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if templateName == "" {
		templateName = DefaultTemplate
	}
	if language == "" {
		language = "es"
	}

	msg := templateMessage{
		From:      c.from,
		To:        numberCleanup.ReplaceAllString(to, ""),
		MessageID: "msg-" + uuid.NewString(),
	}
	msg.Content.TemplateName = templateName
	msg.Content.TemplateData = data
	msg.Content.Language = language

	body, err := json.Marshal(templateRequest{Messages: []templateMessage{msg}})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := c.baseURL + "/whatsapp/1/message/template"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "App "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp send returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	return nil
}

// Recipient is one campaign target.
type Recipient struct {
	MSISDN  string
	Segment string
}

// SendError records a per-recipient delivery failure.
type SendError struct {
	MSISDN string `json:"msisdn"`
	Reason string `json:"reason"`
}

// BulkResult summarizes a campaign.
type BulkResult struct {
	Total  int         `json:"total"`
	Sent   int         `json:"sent"`
	Failed int         `json:"failed"`
	Errors []SendError `json:"errors,omitempty"`
}

// ProgressFunc reports campaign progress after each successful send.
type ProgressFunc func(sent, total int)

// SendBulk delivers the template to every recipient, pacing sends and
// collecting per-recipient failures instead of aborting the campaign.
// The template body receives the recipient's MSISDN and segment name.
func (c *Client) SendBulk(ctx context.Context, recipients []Recipient, templateName, language string, onProgress ProgressFunc) (*BulkResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	res := &BulkResult{Total: len(recipients)}
	for i, r := range recipients {
		if r.MSISDN == "" {
			res.Failed++
			res.Errors = append(res.Errors, SendError{Reason: "missing MSISDN"})
			continue
		}

		err := c.Send(ctx, r.MSISDN, templateName, language, Placeholders(r.MSISDN, r.Segment))
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, SendError{MSISDN: r.MSISDN, Reason: err.Error()})
			c.log.Warn("whatsapp send failed",
				zap.String("msisdn", r.MSISDN),
				zap.Error(err))
			continue
		}

		res.Sent++
		if onProgress != nil {
			onProgress(res.Sent, res.Total)
		}

		if i < len(recipients)-1 {
			select {
			case <-time.After(c.interval):
			case <-ctx.Done():
				return res, ctx.Err()
			}
		}
	}

	c.log.Info("whatsapp campaign finished",
		zap.Int("total", res.Total),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed))
	return res, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
