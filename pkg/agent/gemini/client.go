// Package gemini is a minimal client for the Gemini generateContent endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/ports"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultModel is used when no model name is configured.
	DefaultModel = "gemini-2.5-flash"
)

// StatusError is a non-200 answer from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini API error (status %d): %s", e.Code, e.Body)
}

// StatusCode returns the HTTP status of the failed call.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithModel sets the model name.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// Client implements ports.Generator against the Gemini REST API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ ports.Generator = (*Client)(nil)

// NewClient creates a new Gemini API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   DefaultModel,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Wire types

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Tools             []tool    `json:"tools,omitempty"`
}

type webSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type groundingMetadata struct {
	GroundingAttributions []struct {
		Web *webSource `json:"web"`
	} `json:"groundingAttributions"`
	GroundingChunks []struct {
		Web *webSource `json:"web"`
	} `json:"groundingChunks"`
}

type generateResponse struct {
	Candidates []struct {
		Content           content            `json:"content"`
		GroundingMetadata *groundingMetadata `json:"groundingMetadata"`
	} `json:"candidates"`
}

const apiKeyHeader = "x-goog-api-key"

// Generate sends one generateContent request.
func (c *Client) Generate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResponse, error) {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return ports.GenerateResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	// The key goes in a header, never in the URL.
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.GenerateResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ports.GenerateResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ports.GenerateResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return ports.GenerateResponse{}, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return ports.GenerateResponse{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return parseResponse(result)
}

func buildRequest(req ports.GenerateRequest) generateRequest {
	out := generateRequest{}
	for _, turn := range req.History {
		role := "user"
		if turn.Role == domain.RoleAgent {
			role = "model"
		}
		out.Contents = append(out.Contents, content{Role: role, Parts: []part{{Text: turn.Text}}})
	}
	out.Contents = append(out.Contents, content{Role: "user", Parts: []part{{Text: req.Prompt}}})

	if req.System != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.Grounded {
		out.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}
	return out
}

func parseResponse(result generateResponse) (ports.GenerateResponse, error) {
	if len(result.Candidates) == 0 {
		return ports.GenerateResponse{}, fmt.Errorf("gemini returned no candidates")
	}
	candidate := result.Candidates[0]

	var text strings.Builder
	for _, p := range candidate.Content.Parts {
		text.WriteString(p.Text)
	}
	if text.Len() == 0 {
		return ports.GenerateResponse{}, fmt.Errorf("gemini returned an empty candidate")
	}

	out := ports.GenerateResponse{Text: text.String()}
	if md := candidate.GroundingMetadata; md != nil {
		seen := make(map[string]bool)
		add := func(w *webSource) {
			if w == nil || w.URI == "" || seen[w.URI] {
				return
			}
			seen[w.URI] = true
			out.Sources = append(out.Sources, ports.Source{URI: w.URI, Title: w.Title})
		}
		for _, a := range md.GroundingAttributions {
			add(a.Web)
		}
		for _, ch := range md.GroundingChunks {
			add(ch.Web)
		}
	}
	return out, nil
}
