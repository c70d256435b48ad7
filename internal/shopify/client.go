package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/bundle-admin/internal/resilience"
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2024-10"

// ErrGraphQL is wrapped by errors reported in the top-level "errors" array.
var ErrGraphQL = errors.New("shopify: graphql error")

// Doer executes HTTP requests. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client talks to the Admin GraphQL API of a single shop.
type Client struct {
	shop     string
	token    string
	version  string
	endpoint string
	http     Doer
	logger   zerolog.Logger
}

// ClientConfig groups Client dependencies.
type ClientConfig struct {
	Shop        string
	AccessToken string
	APIVersion  string
	// Endpoint overrides the derived GraphQL URL (tests, proxies).
	Endpoint string
	HTTP     Doer
	Logger   *zerolog.Logger
}

// NewClient constructs a Client for the configured shop.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.HTTP == nil {
		return nil, errors.New("shopify: http transport is required")
	}
	shop := NormalizeShopDomain(cfg.Shop)
	if shop == "" && cfg.Endpoint == "" {
		return nil, errors.New("shopify: shop domain is required")
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = DefaultAPIVersion
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, version)
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("shop", shop).Logger()
	}
	return &Client{
		shop:     shop,
		token:    cfg.AccessToken,
		version:  version,
		endpoint: endpoint,
		http:     cfg.HTTP,
		logger:   logger,
	}, nil
}

// Shop returns the normalised shop domain of the client.
func (c *Client) Shop() string { return c.shop }

// NormalizeShopDomain strips scheme and trailing slashes from a shop domain.
func NormalizeShopDomain(shop string) string {
	shop = strings.TrimSpace(strings.ToLower(shop))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	return strings.TrimSuffix(shop, "/")
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Mutate runs a mutation. Mutations are sent at most once: a 5xx may arrive
// after the platform applied the change, so retrying is left to the caller.
func (c *Client) Mutate(ctx context.Context, mutation string, variables map[string]any, out any) error {
	return c.Do(resilience.WithoutRetry(ctx), mutation, variables, out)
}

// Do executes query with variables and decodes the "data" member into out.
// Queries may be retried by the transport.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("shopify: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("shopify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("X-Shopify-Access-Token", c.token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("shopify: execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("shopify: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("shopify_graphql_http_error")
		return fmt.Errorf("shopify: unexpected status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}

	var decoded graphQLResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("shopify: decode response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		msgs := make([]string, len(decoded.Errors))
		for i, e := range decoded.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(msgs, "; "))
	}
	if out == nil || len(decoded.Data) == 0 || string(decoded.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return fmt.Errorf("shopify: decode data: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
