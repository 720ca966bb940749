package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var ErrManyChatNoAPIKey = errors.New("MANYCHAT_API_KEY not configured")

// CustomField is one value written to a subscriber's custom field.
type CustomField struct {
	FieldID int    `json:"field_id"`
	Value   string `json:"field_value"`
}

// ManyChatAPI is the subset of the ManyChat REST API the notifier uses.
type ManyChatAPI interface {
	SetCustomFields(ctx context.Context, subscriberID string, fields []CustomField) error
	SendFlow(ctx context.Context, subscriberID, flowNS string) error
}

type ManyChatClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewManyChatClient builds a client throttled to perSecond requests.
func NewManyChatClient(baseURL, apiKey string, perSecond float64) *ManyChatClient {
	if perSecond <= 0 {
		perSecond = 10
	}
	return &ManyChatClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (c *ManyChatClient) SetCustomFields(ctx context.Context, subscriberID string, fields []CustomField) error {
	return c.post(ctx, "/subscriber/setCustomFields", map[string]any{
		"subscriber_id": subscriberID,
		"fields":        fields,
	})
}

func (c *ManyChatClient) SendFlow(ctx context.Context, subscriberID, flowNS string) error {
	return c.post(ctx, "/sending/sendFlow", map[string]any{
		"subscriber_id": subscriberID,
		"flow_ns":       flowNS,
	})
}

type manychatError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *ManyChatClient) post(ctx context.Context, endpoint string, body any) error {
	if c.apiKey == "" {
		return ErrManyChatNoAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed manychatError
	_ = json.Unmarshal(data, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		switch {
		case parsed.Message != "":
			return errors.New(parsed.Message)
		case parsed.Error != "":
			return errors.New(parsed.Error)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if parsed.Status == "error" {
		if parsed.Message != "" {
			return errors.New(parsed.Message)
		}
		return errors.New("manychat returned status error")
	}
	return nil
}
