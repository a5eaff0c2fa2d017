package discogs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alansalbums/alans-albums-backend/pkg/cache"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/cenkalti/backoff/v5"
)

// Client is a caching Discogs database client
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *cache.Store
}

// NewClient creates a Discogs client. store may be nil to disable caching.
func NewClient(config Config, store *cache.Store) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		cache: store,
	}, nil
}

// HasToken reports whether requests are authenticated
func (c *Client) HasToken() bool {
	return c.config.Token != ""
}

// Search queries the Discogs database. An empty query returns no results.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	params.normalize()
	if params.Query == "" {
		return []SearchResult{}, nil
	}

	var results []SearchResult
	err := c.cache.Fetch(ctx, params.cacheKey(), &results, c.config.SearchTTL, func(ctx context.Context) (any, error) {
		query := url.Values{}
		query.Set("q", params.Query)
		query.Set("type", params.Type)
		query.Set("page", strconv.Itoa(params.Page))
		query.Set("per_page", strconv.Itoa(params.PerPage))

		var resp searchResponse
		if err := c.get(ctx, "/database/search", query, &resp); err != nil {
			return nil, err
		}
		if resp.Results == nil {
			resp.Results = []SearchResult{}
		}
		return resp.Results, nil
	})
	if err != nil {
		return []SearchResult{}, fmt.Errorf("failed to search discogs: %w", err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// GetRelease fetches a release by id. A non-positive id returns nil.
func (c *Client) GetRelease(ctx context.Context, releaseID int) (*Release, error) {
	if releaseID <= 0 {
		return nil, nil
	}

	key := fmt.Sprintf("discogs:release:%d", releaseID)
	var release Release
	err := c.cache.Fetch(ctx, key, &release, c.config.ReleaseTTL, func(ctx context.Context) (any, error) {
		var r Release
		if err := c.get(ctx, fmt.Sprintf("/releases/%d", releaseID), nil, &r); err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release %d: %w", releaseID, err)
	}
	return &release, nil
}

// PriceSuggestions fetches marketplace price suggestions for a release
func (c *Client) PriceSuggestions(ctx context.Context, releaseID int) (PriceSuggestions, error) {
	if releaseID <= 0 {
		return PriceSuggestions{}, nil
	}

	key := fmt.Sprintf("discogs:price_suggestions:%d", releaseID)
	var prices PriceSuggestions
	err := c.cache.Fetch(ctx, key, &prices, c.config.ReleaseTTL, func(ctx context.Context) (any, error) {
		p := PriceSuggestions{}
		if err := c.get(ctx, fmt.Sprintf("/marketplace/price_suggestions/%d", releaseID), nil, &p); err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return PriceSuggestions{}, fmt.Errorf("failed to fetch price suggestions %d: %w", releaseID, err)
	}
	if prices == nil {
		prices = PriceSuggestions{}
	}
	return prices, nil
}

// get performs a GET with retries on network errors, 429 and 5xx
func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		return c.doRequest(ctx, endpoint, attempt)
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.config.MaxAttempts),
	)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to unmarshal discogs response: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, attempt int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		logger.Warn("Discogs request failed", map[string]interface{}{
			"url":     endpoint,
			"attempt": attempt,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		logger.Warn("Discogs rate limited", map[string]interface{}{
			"url":         endpoint,
			"attempt":     attempt,
			"retry_after": resp.Header.Get("Retry-After"),
		})
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			return nil, errors.Join(ErrRateLimited, backoff.RetryAfter(seconds))
		}
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		logger.Warn("Discogs server error", map[string]interface{}{
			"url":     endpoint,
			"attempt": attempt,
			"status":  resp.StatusCode,
		})
		return nil, fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrRequestRejected, resp.StatusCode, truncate(body, 200)))
	}
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 30 * time.Second
	return b
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
