// Package backend talks to the ingestion API: reading posts, the active device
// lookup and device registration. All calls are bearer-token authenticated.
package backend

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

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
)

// Options configures the API client.
type Options struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Token       string        `yaml:"token" mapstructure:"token"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout" default:"10s"`
	MaxInFlight int           `yaml:"max_in_flight" mapstructure:"max_in_flight" default:"64"`

	// ActiveDeviceID pins the numeric id tagged on ingestion records; 0 resolves it over HTTP.
	ActiveDeviceID int64 `yaml:"active_device_id" mapstructure:"active_device_id"`
}

// RequestError is a non-2xx answer from the API.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client is a minimal JSON client for the ingestion API.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  *logrus.Logger
}

// NewClient validates the base URL and warns when the token is already expired.
func NewClient(opts Options, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("api base URL is empty")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base URL %q: scheme must be http or https", opts.BaseURL)
	}

	defaults.SetDefaults(&opts)

	c := &Client{
		baseURL: base,
		token:   opts.Token,
		http:    &http.Client{Timeout: opts.Timeout},
		logger:  logger,
	}
	warnIfExpired(logger, opts.Token, time.Now())
	return c, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

// do sends body as JSON and decodes a 2xx JSON answer into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
