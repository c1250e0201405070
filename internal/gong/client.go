package gong

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

	"github.com/cenkalti/backoff/v4"

	perr "gong-wizard-go/internal/errors"
	"gong-wizard-go/internal/logger"
	"gong-wizard-go/internal/types"
)

const (
	DefaultBaseURL     = "https://us-11211.api.gong.io"
	DefaultBatchSize   = 20
	DefaultConcurrency = 2
	DefaultMaxRetries  = 4
	DefaultTimeout     = 60 * time.Second
	DefaultPageDelay   = time.Second
)

// Config holds the upstream connection settings. Zero values fall back to the defaults above.
type Config struct {
	BaseURL     string
	AccessKey   string
	SecretKey   string
	BatchSize   int
	Concurrency int
	MaxRetries  uint64
	Timeout     time.Duration
	PageDelay   time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client fetches calls and transcripts from the Gong v2 API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	catalog    types.Catalog
	log        *logger.Logger
}

func New(cfg Config, catalog types.Catalog, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = logger.New()
	}
	return &Client{cfg: cfg, httpClient: hc, catalog: catalog, log: log.Component("gong")}
}

// statusError is a non-2xx answer from the API.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (c *Client) get(ctx context.Context, path string, q url.Values, target any) error {
	u := c.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.doJSON(ctx, http.MethodGet, u, nil, target)
}

func (c *Client) post(ctx context.Context, path string, body, target any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return perr.Wrapf(err, perr.CodeUnknown, "encode %s request", path)
	}
	return c.doJSON(ctx, http.MethodPost, c.cfg.BaseURL+path, b, target)
}

// doJSON sends one request and decodes the JSON answer into target. Network
// errors, 429 and 5xx are retried with exponential backoff up to MaxRetries;
// rejected credentials fail at once.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body []byte, target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * c.cfg.Timeout
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(perr.Wrap(err, perr.CodeUnknown, "build request"))
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(c.cfg.AccessKey, c.cfg.SecretKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.log.WithError(err).WithField("attempt", attempt).Warn("request failed")
			return err
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 300 {
			se := &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
			switch {
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return backoff.Permanent(perr.Wrap(se, perr.CodeSourceUnavailable, "credentials rejected"))
			case retryable(resp.StatusCode):
				c.log.WithField("status", resp.StatusCode).WithField("attempt", attempt).Warn("upstream busy, retrying")
				return se
			default:
				return backoff.Permanent(perr.Wrap(se, perr.CodeSourceUnavailable, "unexpected upstream answer"))
			}
		}
		if len(raw) == 0 {
			return fmt.Errorf("empty body")
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return backoff.Permanent(perr.Wrapf(err, perr.CodeSourceUnavailable, "decode %s", endpoint))
		}
		return nil
	}

	err := backoff.Retry(op, policy)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return perr.Wrap(ctx.Err(), perr.CodePartialFetch, "fetch interrupted")
	}
	if _, ok := perr.As(err); ok {
		return perr.WithOp(err, method+" "+endpoint)
	}
	return perr.WithOp(perr.Wrapf(err, perr.CodeSourceUnavailable, "upstream unreachable after %d attempts", attempt), method+" "+endpoint)
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}
