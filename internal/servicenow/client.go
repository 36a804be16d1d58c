package servicenow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carias-rh/lx-toolbox/internal/config"
)

// Client is a ServiceNow Table API client.
type Client struct {
	baseURL    string
	table      string
	httpClient *http.Client
	authHeader string

	contactField     string
	contactNameField string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithContactFields sets the record fields holding the reporter identity and display name.
func WithContactFields(contact, contactName string) Option {
	return func(c *Client) {
		c.contactField = contact
		c.contactNameField = contactName
	}
}

// NewClient creates a new ServiceNow client.
func NewClient(cfg config.ServiceNowConfig, opts ...Option) *Client {
	timeout := cfg.RequestTimeout()
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		table:            cfg.Table,
		httpClient:       &http.Client{Timeout: timeout},
		contactField:     "u_contact_email",
		contactNameField: "contact_source",
	}
	if cfg.Username != "" && cfg.Password != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		c.authHeader = "Basic " + auth
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listResponse struct {
	Result []map[string]any `json:"result"`
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("ServiceNow API error %d: %s", e.Status, e.Body)
}

func (c *Client) tableURL() string {
	return fmt.Sprintf("%s/api/now/table/%s", c.baseURL, c.table)
}

func (c *Client) do(ctx context.Context, method, url string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// Ping checks connectivity and credentials against the ticket table.
func (c *Client) Ping(ctx context.Context) error {
	url := c.tableURL() + "?sysparm_limit=1&sysparm_fields=sys_id"
	var out listResponse
	return c.do(ctx, http.MethodGet, url, nil, &out)
}
