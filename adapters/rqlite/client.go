package rqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/preslavrachev/rqlitestore/config"
)

const (
	queryEndpoint   = "/db/query"
	executeEndpoint = "/db/execute"
)

// Option configures a Client or an Adapter
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *Logger
	metrics    *Metrics
	newID      func() string
}

// WithHTTPClient uses the given HTTP client. Its redirect policy is replaced,
// redirects are always followed by the Client itself.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithLogger uses the given SQL logger instead of one built from the config
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records requests and operations on m
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithIDGenerator replaces uuid.NewString for ids assigned on insert
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		o.newID = fn
	}
}

func buildOptions(cfg config.Config, opts []Option) options {
	o := options{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NewLogger(cfg.DebugEnabled)
	}
	return o
}

// Client talks to the rqlite data API
type Client struct {
	baseURL      string
	level        string
	maxRedirects int
	httpClient   *http.Client
	logger       *Logger
	metrics      *Metrics
	classifier   classifier
}

// NewClient creates a client for the node described by cfg
func NewClient(cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return newClient(cfg, buildOptions(cfg, opts)), nil
}

func newClient(cfg config.Config, o options) *Client {
	var httpClient http.Client
	if o.httpClient != nil {
		httpClient = *o.httpClient
	} else {
		httpClient.Timeout = cfg.Timeout
	}
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		baseURL:      cfg.BaseURL(),
		level:        cfg.ConsistencyLevel,
		maxRedirects: cfg.MaxRedirects,
		httpClient:   &httpClient,
		logger:       o.logger,
		metrics:      o.metrics,
		classifier:   classifier{messages: cfg.Messages},
	}
}

// BaseURL returns the node the client sends its first request to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Query sends read statements to /db/query, one result per statement
func (c *Client) Query(ctx context.Context, stmts ...Statement) ([]QueryResult, error) {
	start := time.Now()

	body, err := c.do(ctx, queryEndpoint, url.Values{}, stmts)
	if err != nil {
		c.logErrors(stmts, time.Since(start), err)
		return nil, err
	}

	resp, err := decodeResponse[QueryResult](body)
	if err != nil {
		c.logErrors(stmts, time.Since(start), err)
		return nil, err
	}
	if resp.Error != "" {
		err := c.classifier.classify(resp.Error)
		c.logErrors(stmts, time.Since(start), err)
		return nil, err
	}

	elapsed := time.Since(start)
	for i := range resp.Results {
		result := &resp.Results[i]
		if result.Error != "" {
			err := c.classifier.classify(result.Error)
			c.logger.LogError(statementAt(stmts, i), elapsed, err)
			return nil, err
		}
		normalizeRows(result.Values)
		c.logger.LogQuery(statementAt(stmts, i), elapsed, len(result.Values))
	}

	return resp.Results, nil
}

// Execute sends write statements to /db/execute. With transaction set, rqlite
// applies all statements atomically and stops at the first failure.
func (c *Client) Execute(ctx context.Context, transaction bool, stmts ...Statement) ([]ExecuteResult, error) {
	start := time.Now()

	params := url.Values{}
	if transaction {
		params.Set("transaction", "")
	}

	body, err := c.do(ctx, executeEndpoint, params, stmts)
	if err != nil {
		c.logErrors(stmts, time.Since(start), err)
		return nil, err
	}

	resp, err := decodeResponse[ExecuteResult](body)
	if err != nil {
		c.logErrors(stmts, time.Since(start), err)
		return nil, err
	}
	if resp.Error != "" {
		err := c.classifier.classify(resp.Error)
		c.logErrors(stmts, time.Since(start), err)
		return nil, err
	}

	elapsed := time.Since(start)
	for i, result := range resp.Results {
		if result.Error != "" {
			err := c.classifier.classify(result.Error)
			c.logger.LogError(statementAt(stmts, i), elapsed, err)
			return nil, err
		}
		c.logger.LogExec(statementAt(stmts, i), elapsed, result.RowsAffected)
	}

	return resp.Results, nil
}

// do POSTs the statements to endpoint and returns the body of the final
// successful response, following redirects to the leader manually so the
// body is re-sent on every hop.
func (c *Client) do(ctx context.Context, endpoint string, params url.Values, stmts []Statement) ([]byte, error) {
	payload, err := json.Marshal(stmts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode statements: %w", err)
	}

	params.Set("level", c.level)
	target := c.baseURL + endpoint + "?" + params.Encode()

	for redirects := 0; ; {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request to %s: %w", endpoint, err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.metrics.observeRequest(endpoint, resp.StatusCode)

		if isRedirect(resp.StatusCode) {
			location, err := resp.Location()
			if err != nil {
				return nil, fmt.Errorf("redirect from %s without location: %w", target, err)
			}
			if redirects >= c.maxRedirects {
				return nil, c.classifier.tooManyRedirects()
			}
			redirects++
			c.logger.LogRedirect(target, location.String(), redirects)
			c.metrics.observeRedirect()
			target = location.String()
			continue
		}

		if readErr != nil {
			return nil, fmt.Errorf("failed to read response: %w", readErr)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			text := string(body)
			if len(bytes.TrimSpace(body)) == 0 {
				text = fmt.Sprintf("unexpected status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
			}
			return nil, c.classifier.classify(text)
		}

		return body, nil
	}
}

func (c *Client) logErrors(stmts []Statement, elapsed time.Duration, err error) {
	for _, stmt := range stmts {
		c.logger.LogError(stmt, elapsed, err)
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func statementAt(stmts []Statement, i int) Statement {
	if i < len(stmts) {
		return stmts[i]
	}
	return Statement{}
}
