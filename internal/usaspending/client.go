package usaspending

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ospreyintel/awardflow/config"
)

// Client talks to the USAspending API through a shared sliding-window rate
// limiter. One instance should be constructed per process and passed to every
// component that issues requests, so they all compete for the same egress
// budget.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *SlidingWindow
	// MaxRetries counts total attempts, not retries after the first: with
	// the default of 3, a persistent 5xx is tried three times in all.
	MaxRetries int
	RetryDelay time.Duration
	Logger     *log.Logger
	Metrics    *Metrics

	// injectable for tests
	sleep func(context.Context, time.Duration) error
}

// NewClient builds a client from config with a fresh limiter.
func NewClient(cfg config.USASpendingConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Limiter:    NewSlidingWindow(cfg.RequestsPerSecond, time.Second),
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		sleep:      sleepCtx,
	}
}

// Metric label values, one per endpoint. The award-detail path embeds the
// award id, so metrics label by these constants to keep series cardinality
// bounded.
const (
	endpointSearchAwards       = "search_awards"
	endpointAwardDetail        = "award_detail"
	endpointSearchTransactions = "search_transactions"
)

// SearchAwards pages the spending_by_award endpoint.
func (c *Client) SearchAwards(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.request(ctx, http.MethodPost, "/search/spending_by_award/", endpointSearchAwards, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAward fetches the detail payload for a single award.
func (c *Client) GetAward(ctx context.Context, id string) (RawAward, error) {
	var raw json.RawMessage
	path := "/awards/" + url.PathEscape(id) + "/"
	if err := c.request(ctx, http.MethodGet, path, endpointAwardDetail, nil, &raw); err != nil {
		return RawAward{}, err
	}
	return DecodeRawAward(raw)
}

// SearchTransactions fetches the transaction history for an award.
func (c *Client) SearchTransactions(ctx context.Context, req TransactionRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.request(ctx, http.MethodPost, "/search/spending_by_transaction/", endpointSearchTransactions, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// request dispatches one API call under the rate limiter. Server errors and
// transport failures are retried with a linearly increasing delay; 400/422
// responses surface immediately as *ValidationError.
func (c *Client) request(ctx context.Context, method, path, endpoint string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	attempts := c.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	lastStatus := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			// Linear backoff: delay grows with each attempt.
			delay := time.Duration(attempt-1) * c.RetryDelay
			c.Logger.Printf("retrying %s %s in %s (attempt %d/%d)", method, path, delay, attempt, attempts)
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
		if c.Metrics != nil {
			c.Metrics.Requests.WithLabelValues(endpoint).Inc()
			if attempt > 1 {
				c.Metrics.Retries.WithLabelValues(endpoint).Inc()
			}
		}

		status, respBody, err := c.do(ctx, method, path, payload)
		if err != nil {
			lastErr = err
			lastStatus = 0
			continue
		}
		switch {
		case status >= 200 && status < 300:
			if out == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decoding %s response: %w", path, err)
			}
			return nil
		case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
			return &ValidationError{
				Endpoint:     path,
				StatusCode:   status,
				RequestBody:  snippet(payload),
				ResponseBody: snippet(respBody),
			}
		case status >= 500:
			lastErr = fmt.Errorf("server error %d", status)
			lastStatus = status
			continue
		default:
			// Other 4xx: treat like validation failures, no retry.
			return &ValidationError{
				Endpoint:     path,
				StatusCode:   status,
				RequestBody:  snippet(payload),
				ResponseBody: snippet(respBody),
			}
		}
	}
	return &TransientError{Endpoint: path, Attempts: attempts, LastStatus: lastStatus, Err: lastErr}
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
