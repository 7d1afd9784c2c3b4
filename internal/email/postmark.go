package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultEndpoint = "https://api.postmarkapp.com/email"

// Client delivers templated mail through the Postmark HTTP API.
type Client struct {
	serverToken string
	fromEmail   string
	appName     string
	endpoint    string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithEndpoint overrides the Postmark API URL.
func WithEndpoint(url string) Option {
	return func(cl *Client) {
		cl.endpoint = url
	}
}

// WithAppName sets the product name used in subjects.
func WithAppName(name string) Option {
	return func(cl *Client) {
		cl.appName = name
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		appName:     "Preppr",
		endpoint:    defaultEndpoint,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
	Tag      string `json:"Tag,omitempty"`
}

// SendTemplate renders tmpl with data and posts it to Postmark.
func (c *Client) SendTemplate(ctx context.Context, to string, tmpl Template, data Data) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	msg, err := render(c.appName, tmpl, data)
	if err != nil {
		return err
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       to,
		Subject:  msg.subject,
		HtmlBody: msg.html,
		TextBody: msg.text,
		Tag:      string(tmpl),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
