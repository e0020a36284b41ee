// Package foundry is a REST client for the Azure AI Foundry agent service.
//
// The router uses the platform for agent definitions, threads, messages,
// runs, run steps, uploaded files and vector stores. All calls go to the
// project endpoint with an api-version query parameter and an Entra ID
// bearer token for the ai.azure.com scope. List endpoints are cursor-paged
// ({data, has_more, last_id}); the client follows pages to the end.
package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentoven/purview-router/internal/auth"
	"github.com/agentoven/purview-router/internal/telemetry"
	"github.com/agentoven/purview-router/pkg/contracts"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultAPIVersion is the agent service API version the client speaks.
const DefaultAPIVersion = "2025-05-01"

// pageLimit is the page size requested from list endpoints.
const pageLimit = 100

// APIError is returned when the platform answers with a non-2xx status.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("foundry: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the platform.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client implements contracts.AgentPlatform.
type Client struct {
	endpoint   string
	apiVersion string
	tokens     contracts.TokenProvider
	client     *http.Client
}

var _ contracts.AgentPlatform = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithAPIVersion overrides the api-version query parameter.
func WithAPIVersion(v string) Option {
	return func(c *Client) { c.apiVersion = v }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a client for the project endpoint.
func NewClient(endpoint string, tokens contracts.TokenProvider, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiVersion: DefaultAPIVersion,
		tokens:     tokens,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) url(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.apiVersion)
	return c.endpoint + path + "?" + query.Encode()
}

// do sends a JSON request and decodes the JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("foundry: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.send(ctx, method, path, query, body, "application/json", out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out interface{}) error {
	ctx, span := telemetry.Tracer().Start(ctx, "foundry "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("foundry.path", path),
		),
	)
	defer span.End()

	token, err := c.tokens.GetToken(ctx, auth.AgentsScope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token")
		return fmt.Errorf("foundry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), body)
	if err != nil {
		return fmt.Errorf("foundry: create request: %w", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-ms-client-request-id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return fmt.Errorf("foundry: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Msg("Platform call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("foundry: decode %s %s: %w", method, path, err)
	}
	return nil
}

// page is one cursor page of a list endpoint.
type page[T any] struct {
	Data    []T    `json:"data"`
	HasMore bool   `json:"has_more"`
	LastID  string `json:"last_id"`
}

// listAll follows has_more/last_id until the last page.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var all []T
	after := ""
	for {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("limit", fmt.Sprint(pageLimit))
		if after != "" {
			q.Set("after", after)
		}

		var p page[T]
		if err := c.do(ctx, http.MethodGet, path, q, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Data...)
		if !p.HasMore || p.LastID == "" {
			return all, nil
		}
		after = p.LastID
	}
}
