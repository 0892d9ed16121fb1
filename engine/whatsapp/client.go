package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const messagingProduct = "whatsapp"

// ClientConfig addresses the Graph API messages endpoint.
type ClientConfig struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	// Timeout of zero means no timeout.
	Timeout time.Duration
}

// APIError is a non-2xx response from the Graph API.
type APIError struct {
	Status  int
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("whatsapp: send failed with status %d", e.Status)
	}
	return fmt.Sprintf("whatsapp: send failed with status %d (code %d): %s", e.Status, e.Code, e.Message)
}

type outboundText struct {
	Body string `json:"body"`
}

type outboundMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Text             outboundText `json:"text"`
}

// Client sends text replies. It never retries.
type Client struct {
	http          *resty.Client
	phoneNumberID string
}

func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if v := strings.Trim(cfg.APIVersion, "/"); v != "" {
		base += "/" + v
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.AccessToken)
	return &Client{http: client, phoneNumberID: cfg.PhoneNumberID}
}

// Send posts a text message to recipient.
func (c *Client) Send(ctx context.Context, to, text string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("whatsapp: recipient is required")
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("phoneNumberID", c.phoneNumberID).
		SetBody(outboundMessage{
			MessagingProduct: messagingProduct,
			To:               to,
			Text:             outboundText{Body: text},
		}).
		Post("/{phoneNumberID}/messages")
	if err != nil {
		return fmt.Errorf("whatsapp: send message: %w", err)
	}
	if resp.IsError() {
		body := resp.Body()
		return &APIError{
			Status:  resp.StatusCode(),
			Code:    gjson.GetBytes(body, "error.code").Int(),
			Message: gjson.GetBytes(body, "error.message").String(),
		}
	}
	return nil
}
