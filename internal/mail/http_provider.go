package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpProvider is the shared JSON-over-HTTPS plumbing for API providers.
type httpProvider struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

func newHTTPProvider(endpoint, apiKey, from string, timeout time.Duration) httpProvider {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return httpProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		client:   &http.Client{Timeout: timeout},
	}
}

// post sends body and returns the response when the status is 2xx.
func (p httpProvider) post(ctx context.Context, body any) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, respBody, fmt.Errorf("provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}
	return resp, respBody, nil
}

const (
	resendEndpoint   = "https://api.resend.com/emails"
	sendGridEndpoint = "https://api.sendgrid.com/v3/mail/send"
)

type ResendSender struct {
	httpProvider
}

func NewResendSender(apiKey, from string, timeout time.Duration) (*ResendSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	return &ResendSender{newHTTPProvider(resendEndpoint, apiKey, from, timeout)}, nil
}

func (s *ResendSender) Name() string { return "resend" }

func (s *ResendSender) Send(ctx context.Context, msg Message) (Result, error) {
	body := map[string]any{
		"from":    s.from,
		"to":      []string(msg.To),
		"subject": msg.Subject,
		"text":    msg.Text,
	}
	if msg.HTML != "" {
		body["html"] = msg.HTML
	}

	_, respBody, err := s.post(ctx, body)
	if err != nil {
		return Result{Provider: s.Name()}, fmt.Errorf("resend: %w", err)
	}
	var out struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(respBody, &out)
	return Result{Success: true, MessageID: out.ID, Provider: s.Name()}, nil
}

type SendGridSender struct {
	httpProvider
}

func NewSendGridSender(apiKey, from string, timeout time.Duration) (*SendGridSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	return &SendGridSender{newHTTPProvider(sendGridEndpoint, apiKey, from, timeout)}, nil
}

func (s *SendGridSender) Name() string { return "sendgrid" }

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) (Result, error) {
	to := make([]sendGridAddress, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, sendGridAddress{Email: addr})
	}
	content := []sendGridContent{{Type: "text/plain", Value: msg.Text}}
	if msg.HTML != "" {
		content = append(content, sendGridContent{Type: "text/html", Value: msg.HTML})
	}
	body := map[string]any{
		"personalizations": []map[string]any{{"to": to}},
		"from":             sendGridAddress{Email: s.from},
		"subject":          msg.Subject,
		"content":          content,
	}

	resp, _, err := s.post(ctx, body)
	if err != nil {
		return Result{Provider: s.Name()}, fmt.Errorf("sendgrid: %w", err)
	}
	return Result{Success: true, MessageID: resp.Header.Get("X-Message-Id"), Provider: s.Name()}, nil
}
