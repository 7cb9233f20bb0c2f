// Package upstream fetches raw patient payloads from the configured
// directory service. It returns the response body untouched; normalization
// happens downstream so the client stays agnostic to envelope shape.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"careline/internal/config"
	"careline/internal/model"
)

const (
	minLimit = 1
	maxLimit = 100
)

// Query carries the parameters for a patient lookup. Limit follows the
// request's semantics: nil means "use the upstream default".
type Query struct {
	Name  string
	Limit *int
}

type Client struct {
	cfg  config.UpstreamConfig
	http *http.Client
}

func NewClient(cfg config.UpstreamConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// FetchPatients issues the upstream request and returns the raw JSON body.
// Transport failures map to ErrUpstreamUnreachable; non-2xx responses map to
// UpstreamStatusError with the status code and a body excerpt.
func (c *Client) FetchPatients(ctx context.Context, q Query) (json.RawMessage, error) {
	u, err := c.requestURL(q)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.applyAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", model.ErrUpstreamUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.UpstreamStatusError{
			StatusCode: resp.StatusCode,
			Body:       excerpt(body),
		}
	}
	return json.RawMessage(body), nil
}

func (c *Client) requestURL(q Query) (string, error) {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	u, err := url.Parse(base + c.cfg.PatientsPath)
	if err != nil {
		return "", fmt.Errorf("upstream URL: %w", err)
	}

	vals := u.Query()
	if q.Name != "" {
		param := c.cfg.NameParam
		if param == "" {
			param = "name"
		}
		vals.Set(param, q.Name)
	}
	vals.Set("limit", strconv.Itoa(c.effectiveLimit(q.Limit)))
	u.RawQuery = vals.Encode()
	return u.String(), nil
}

// effectiveLimit clamps the wire-level limit to the upstream's accepted
// range. The caller still applies its own limit semantics after
// normalization, so clamping here never changes what the user sees for
// in-range values.
func (c *Client) effectiveLimit(limit *int) int {
	n := c.cfg.DefaultLimit
	if limit != nil {
		n = *limit
	}
	if n < minLimit {
		n = minLimit
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n
}

func (c *Client) applyAuth(req *http.Request) {
	if c.cfg.AuthToken == "" {
		return
	}
	switch c.cfg.AuthType {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	case "api_key":
		header := c.cfg.AuthHeader
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, c.cfg.AuthToken)
	}
}

func excerpt(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = s[:max]
	}
	return s
}
