// Package gemini is the module's only AI boundary: a small client for
// the Google Generative Language API. It never sees raw subscriber
// records, only the compact summaries its callers build.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ============================================================================
// GEMINI CLIENT — model discovery, generation, overload retry
// ============================================================================

// DefaultBaseURL is the production Generative Language endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Sentinel errors callers branch on.
var (
	ErrNoModels  = errors.New("no models supporting generateContent are available")
	ErrTruncated = errors.New("response truncated by output token limit")
	ErrEmpty     = errors.New("model returned an empty response")
)

// Preferred models, best first. Substring match against the full model
// names the API reports (e.g. "models/gemini-1.5-pro-002").
var preferredModels = []string{
	"gemini-2.5-pro-latest",
	"gemini-2.5-flash-latest",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
	"gemini-pro",
}

const maxRetries = 3

// Config holds client configuration.
type Config struct {
	APIKey  string
	BaseURL string // empty = DefaultBaseURL

	HTTPClient *http.Client // empty = 60s-timeout default
	Logger     *zap.Logger  // empty = no-op
}

// Client calls the Gemini API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *zap.Logger

	// backoffBase is the first retry delay; each retry doubles it.
	backoffBase time.Duration

	mu          sync.Mutex
	modelsCache []string
}

// NewClient creates a Gemini client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		client:      cfg.HTTPClient,
		log:         cfg.Logger,
		backoffBase: 2 * time.Second,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// GenerationConfig tunes one generation request.
type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopK             int     `json:"topK"`
	TopP             float64 `json:"topP"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

// SegmentationConfig is the preset for segmentation plans: low
// temperature and a forced JSON response.
func SegmentationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:      0.3,
		TopK:             20,
		TopP:             0.8,
		MaxOutputTokens:  4096,
		ResponseMIMEType: "application/json",
	}
}

// InsightsConfig is the preset for free-form strategic reports.
func InsightsConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 8192,
	}
}

// ============================================================================
// MODEL DISCOVERY
// ============================================================================

type modelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// ListModels returns the models that support generateContent. The list
// is fetched once per client and cached; model availability does not
// change within a session.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modelsCache != nil {
		return c.modelsCache, nil
	}

	url := fmt.Sprintf("%s/v1beta/models?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model listing returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to parse model list: %w", err)
	}

	var supported []string
	for _, m := range list.Models {
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				supported = append(supported, m.Name)
				break
			}
		}
	}

	c.log.Debug("models discovered", zap.Int("count", len(supported)))
	c.modelsCache = supported
	return supported, nil
}

// pickModel selects the best available model: first preference hit,
// otherwise the first model the API reported.
func (c *Client) pickModel(ctx context.Context) (string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", ErrNoModels
	}
	for _, preferred := range preferredModels {
		for _, m := range models {
			if strings.Contains(m, preferred) {
				return m, nil
			}
		}
	}
	return models[0], nil
}

// ============================================================================
// GENERATION
// ============================================================================

type generateRequest struct {
	Contents []content        `json:"contents"`
	Config   GenerationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateContent sends a prompt to the best available model and
// returns the generated text. Overloaded-model responses (429, 503)
// are retried with doubling delays before giving up.
func (c *Client) GenerateContent(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	model, err := c.pickModel(ctx)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/v1beta/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		Config:   cfg,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoffBase << (attempt - 1)
			c.log.Info("model overloaded, retrying",
				zap.Duration("wait", wait),
				zap.Int("attempt", attempt),
				zap.Int("maxRetries", maxRetries))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, retryable, err := c.generateOnce(ctx, url, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) generateOnce(ctx context.Context, url string, body []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		overloaded := resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusServiceUnavailable
		return "", overloaded, fmt.Errorf("generation returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", false, fmt.Errorf("failed to parse generation response: %w", err)
	}
	if gr.Error != nil {
		overloaded := gr.Error.Code == http.StatusTooManyRequests ||
			gr.Error.Code == http.StatusServiceUnavailable
		return "", overloaded, fmt.Errorf("gemini error %d: %s", gr.Error.Code, gr.Error.Message)
	}
	if len(gr.Candidates) == 0 {
		return "", false, ErrEmpty
	}

	candidate := gr.Candidates[0]
	if candidate.FinishReason == "MAX_TOKENS" {
		return "", false, ErrTruncated
	}
	if len(candidate.Content.Parts) == 0 || strings.TrimSpace(candidate.Content.Parts[0].Text) == "" {
		return "", false, ErrEmpty
	}
	return candidate.Content.Parts[0].Text, false, nil
}

// GenerateText satisfies the segmentation engine's generator interface
// using the JSON-forcing segmentation preset.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.GenerateContent(ctx, prompt, SegmentationConfig())
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
