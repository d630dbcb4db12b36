package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tripcraft/tripcraft/internal/domain"
	"github.com/tripcraft/tripcraft/internal/edit"
)

// ClientConfig holds configuration for the NLP service client.
type ClientConfig struct {
	BaseURL        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        "http://localhost:8001",
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Client calls the external NLP service over HTTP. The service returns
// {intent, entities, confidence, human_preview}; the edit command is always
// re-lowered locally through edit.Build so the builder stays the single
// contract boundary, whatever the remote side echoes.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a client and probes the service's health endpoint so a
// misconfigured oracle endpoint fails at startup rather than on the first
// user message.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg = DefaultClientConfig()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger,
	}

	probeCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := c.health(probeCtx); err != nil {
		return nil, fmt.Errorf("nlp service at %s not ready: %w", c.baseURL, err)
	}

	logger.Info("Connected to NLP service", "base_url", c.baseURL)
	return c, nil
}

func (c *Client) health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

type parseRequest struct {
	Message string       `json:"message"`
	Context parseContext `json:"context"`
}

type parseContext struct {
	Itinerary *domain.ItineraryRecord `json:"itinerary"`
}

type parseResponse struct {
	Intent       string         `json:"intent"`
	Entities     map[string]any `json:"entities"`
	Confidence   float64        `json:"confidence"`
	HumanPreview string         `json:"human_preview"`
	Error        string         `json:"error,omitempty"`
}

// Parse sends the message and itinerary context to the NLP service. Any
// transport failure or non-200 response wraps ErrUnavailable so the fallback
// chain can move on instead of guessing.
func (c *Client) Parse(ctx context.Context, message string, itinerary *domain.ItineraryRecord) (*domain.ParsedIntent, error) {
	body, err := json.Marshal(parseRequest{
		Message: message,
		Context: parseContext{Itinerary: itinerary},
	})
	if err != nil {
		return nil, fmt.Errorf("encode parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: nlp service returned %d: %s", ErrUnavailable, resp.StatusCode, payload)
	}

	var parsed parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode parse response: %v", ErrUnavailable, err)
	}
	if parsed.Error != "" {
		c.logger.Warn("NLP service reported a parse error", "error", parsed.Error)
	}

	preview := parsed.HumanPreview
	if preview == "" {
		preview = edit.Preview(parsed.Intent, parsed.Entities)
	}

	return &domain.ParsedIntent{
		Intent:       parsed.Intent,
		Entities:     parsed.Entities,
		Command:      edit.Build(parsed.Intent, parsed.Entities),
		Confidence:   parsed.Confidence,
		HumanPreview: preview,
	}, nil
}
