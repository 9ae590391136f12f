package tos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultURL is the base URL of the TOS REST API.
const DefaultURL = "https://vi-api.vedur.is/tos/v1"

// ErrTransport is returned when the API can not be reached or does not answer properly.
// It must not be confused with an empty search result.
var ErrTransport = errors.New("TOS: transport failure")

// Options provides additional settings for the API client.
type Options struct {
	// Timeout for a single request. Defaults to 10 seconds.
	Timeout time.Duration

	// UserAgent is the http User Agent.
	UserAgent string

	// Logger receives warnings. Defaults to log.Default().
	Logger *log.Logger
}

// Client is a TOS API client.
// The http.Client's Transport typically has internal state (cached TCP connections), so Clients should be reused
// instead of created as needed.
type Client struct {
	*http.Client
	URL       *url.URL
	Useragent string
	logger    *log.Logger
}

// NewClient returns a new TOS client for the given base URL, e.g. "https://vi-api.vedur.is/tos/v1".
func NewClient(addr string, opts Options) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimSuffix(addr, "/"))
	if err != nil {
		return nil, err
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported protocol scheme: %q: your address must start with http:// or https://", baseURL.Scheme)
	}

	if opts.UserAgent == "" {
		opts.UserAgent = "tosmeta Go Client"
	}

	timeout := 10 * time.Second // default
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		Client:    &http.Client{Timeout: timeout},
		URL:       baseURL,
		Useragent: opts.UserAgent,
		logger:    logger,
	}, nil
}

func (c *Client) endpoint(parts ...string) string {
	return c.URL.String() + "/" + strings.Join(parts, "/") + "/"
}

// do sends the request and decodes the JSON response into v.
// An empty response body leaves v untouched.
func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}, v interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.Useragent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: %s", ErrTransport, method, endpoint, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode response from %s: %v", endpoint, err)
	}
	return nil
}

// History fetches the attribute history and children connections of an entity.
func (c *Client) History(ctx context.Context, id int) (*History, error) {
	hist := &History{}
	if err := c.do(ctx, http.MethodGet, c.endpoint("history", "entity", strconv.Itoa(id)), nil, hist); err != nil {
		return nil, err
	}
	if hist.ID == 0 {
		hist.ID = id
	}
	return hist, nil
}

// Entity fetches the current state of an entity.
func (c *Client) Entity(ctx context.Context, id int) (*Entity, error) {
	ent := &Entity{}
	if err := c.do(ctx, http.MethodGet, c.endpoint("entity", strconv.Itoa(id)), nil, ent); err != nil {
		return nil, err
	}
	if ent.ID == 0 {
		ent.ID = id
	}
	return ent, nil
}

// ContactRecords fetches the raw contact list of an entity.
func (c *Client) ContactRecords(ctx context.Context, id int) ([]ContactRecord, error) {
	var recs []ContactRecord
	if err := c.do(ctx, http.MethodGet, c.endpoint("entity_contacts", strconv.Itoa(id)), nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
