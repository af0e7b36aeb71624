package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com"
	defaultAPIVersion   = "v18.0"
	defaultHTTPTimeout  = 10 * time.Second
	maxButtons          = 3
)

// ErrNotConfigured is returned by sends when the token or phone number id is missing.
var ErrNotConfigured = errors.New("whatsapp: not configured")

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	token        string
	phoneID      string
	graphAPIBase string
	httpClient   *http.Client
}

func NewClient(token, phoneID, apiVersion string) *Client {
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &Client{
		token:        token,
		phoneID:      phoneID,
		graphAPIBase: defaultGraphAPIBase + "/" + apiVersion,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetGraphAPIBase overrides the versioned Graph API base URL (useful for testing).
func (c *Client) SetGraphAPIBase(base string) {
	c.graphAPIBase = base
}

// Enabled reports whether credentials are present.
func (c *Client) Enabled() bool {
	return c != nil && c.token != "" && c.phoneID != ""
}

type outbound struct {
	MessagingProduct string               `json:"messaging_product"`
	RecipientType    string               `json:"recipient_type"`
	To               string               `json:"to"`
	Type             string               `json:"type"`
	Text             *outboundText        `json:"text,omitempty"`
	Template         *outboundTemplate    `json:"template,omitempty"`
	Interactive      *outboundInteractive `json:"interactive,omitempty"`
}

type outboundText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type outboundTemplate struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []TemplateComponent `json:"components"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type outboundInteractive struct {
	Type   string             `json:"type"`
	Header *interactiveHeader `json:"header,omitempty"`
	Body   interactiveText    `json:"body"`
	Footer *interactiveText   `json:"footer,omitempty"`
	Action interactiveAction  `json:"action"`
}

type interactiveHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type interactiveText struct {
	Text string `json:"text"`
}

type interactiveAction struct {
	Button   string        `json:"button,omitempty"`
	Buttons  []replyButton `json:"buttons,omitempty"`
	Sections []ListSection `json:"sections,omitempty"`
}

type replyButton struct {
	Type  string `json:"type"`
	Reply Button `json:"reply"`
}

// InteractiveOption decorates an interactive message.
type InteractiveOption func(*outboundInteractive)

func WithHeader(text string) InteractiveOption {
	return func(m *outboundInteractive) {
		if text != "" {
			m.Header = &interactiveHeader{Type: "text", Text: text}
		}
	}
}

func WithFooter(text string) InteractiveOption {
	return func(m *outboundInteractive) {
		if text != "" {
			m.Footer = &interactiveText{Text: text}
		}
	}
}

// SendText sends a plain text message to a phone number in international format.
func (c *Client) SendText(ctx context.Context, to, body string) (*SendResponse, error) {
	return c.send(ctx, outbound{Type: "text", To: to, Text: &outboundText{Body: body}})
}

// SendInteractiveButtons sends reply buttons; buttons beyond the third are dropped.
func (c *Client) SendInteractiveButtons(ctx context.Context, to, body string, buttons []Button, opts ...InteractiveOption) (*SendResponse, error) {
	if len(buttons) > maxButtons {
		buttons = buttons[:maxButtons]
	}
	replies := make([]replyButton, 0, len(buttons))
	for _, b := range buttons {
		replies = append(replies, replyButton{Type: "reply", Reply: b})
	}
	msg := &outboundInteractive{Type: "button", Body: interactiveText{Text: body}, Action: interactiveAction{Buttons: replies}}
	for _, opt := range opts {
		opt(msg)
	}
	return c.send(ctx, outbound{Type: "interactive", To: to, Interactive: msg})
}

// SendList sends an interactive list opened by buttonText.
func (c *Client) SendList(ctx context.Context, to, body, buttonText string, sections []ListSection, opts ...InteractiveOption) (*SendResponse, error) {
	msg := &outboundInteractive{Type: "list", Body: interactiveText{Text: body}, Action: interactiveAction{Button: buttonText, Sections: sections}}
	for _, opt := range opts {
		opt(msg)
	}
	return c.send(ctx, outbound{Type: "interactive", To: to, Interactive: msg})
}

// SendTemplate sends a pre-approved template message.
func (c *Client) SendTemplate(ctx context.Context, to, name, language string, components []TemplateComponent) (*SendResponse, error) {
	if language == "" {
		language = "en"
	}
	if components == nil {
		components = []TemplateComponent{}
	}
	return c.send(ctx, outbound{Type: "template", To: to, Template: &outboundTemplate{
		Name:       name,
		Language:   templateLanguage{Code: language},
		Components: components,
	}})
}

// MarkRead marks an inbound message as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	payload := map[string]string{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	_, err := c.post(ctx, payload)
	return err
}

func (c *Client) send(ctx context.Context, msg outbound) (*SendResponse, error) {
	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"
	return c.post(ctx, msg)
}

func (c *Client) post(ctx context.Context, payload any) (*SendResponse, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.graphAPIBase, c.phoneID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: read response: %w", err)
	}

	var sendResp SendResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &sendResp); err != nil {
			return nil, fmt.Errorf("whatsapp: unmarshal response: %w", err)
		}
	}
	if sendResp.Error != nil {
		return &sendResp, fmt.Errorf("whatsapp: API error %d: %s", sendResp.Error.Code, sendResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return &sendResp, fmt.Errorf("whatsapp: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return &sendResp, nil
}
