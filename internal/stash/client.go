// Package stash provides a GraphQL client for the Stash media server.
package stash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/framegrab/internal/metrics"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is a local Stash instance.
	DefaultEndpoint = "http://localhost:9999/graphql"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the sustained request rate in requests per second.
	DefaultRateLimit = 10

	// slowRequestThreshold is the duration above which requests are logged at WARN level.
	slowRequestThreshold = 2 * time.Second

	apiKeyHeader = "ApiKey"
)

// Options configures a Client.
type Options struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	// RateLimit caps requests per second; zero uses DefaultRateLimit and a
	// negative value disables limiting.
	RateLimit float64
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	// HTTPClient replaces the default client, mostly in tests.
	HTTPClient *http.Client
}

// Client is a GraphQL client for a Stash server.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.Collector

	opNames sync.Map // query string -> operation name
}

// New creates a new GraphQL client.
func New(opts Options) *Client {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	switch {
	case opts.RateLimit < 0:
	case opts.RateLimit == 0:
		limiter = rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit)
	default:
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:   endpoint,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger.With("component", "stash"),
		metrics:    opts.Metrics,
	}
}

// Endpoint returns the GraphQL endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// graphQLRequest is the request payload for GraphQL operations.
type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// graphQLResponse is the response payload from GraphQL operations.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

// graphQLError represents a GraphQL error.
type graphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// OperationName parses query and returns the name of its first operation.
// Anonymous operations are reported as "anonymous".
func OperationName(query string) (string, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "operation", Input: query})
	if err != nil {
		return "", fmt.Errorf("parse operation: %w", err)
	}
	if len(doc.Operations) == 0 {
		return "", fmt.Errorf("parse operation: document has no operations")
	}
	if name := doc.Operations[0].Name; name != "" {
		return name, nil
	}
	return "anonymous", nil
}

func (c *Client) operationName(query string) (string, error) {
	if v, ok := c.opNames.Load(query); ok {
		return v.(string), nil
	}
	name, err := OperationName(query)
	if err != nil {
		return "", err
	}
	c.opNames.Store(query, name)
	return name, nil
}

// Execute sends a GraphQL query/mutation and decodes its data into result.
// Malformed documents are rejected before anything is sent.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, result any) (err error) {
	op, err := c.operationName(query)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		duration := time.Since(start)
		c.metrics.RecordTiming(metrics.OpRemote+op, duration, err != nil)

		attrs := []any{"operation", op, "duration_ms", duration.Milliseconds()}
		switch {
		case err != nil:
			c.logger.Debug("request failed", append(attrs, "error", err.Error())...)
		case duration > slowRequestThreshold:
			c.logger.Warn("slow request", attrs...)
		default:
			c.logger.Debug("request completed", attrs...)
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	reqBody, err := json.Marshal(graphQLRequest{
		Query:         query,
		OperationName: operationNameForRequest(op),
		Variables:     variables,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), maxErrorBody)}
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return newGraphQLError(op, gqlResp.Errors)
	}

	if result != nil && len(gqlResp.Data) > 0 {
		if err := json.Unmarshal(gqlResp.Data, result); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
	}

	return nil
}

func operationNameForRequest(op string) string {
	if op == "anonymous" {
		return ""
	}
	return op
}

// maxErrorBody is the maximum length of a response body kept in an error.
const maxErrorBody = 512

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
