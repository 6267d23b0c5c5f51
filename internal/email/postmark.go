package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/incosense/incosense/internal/pkg/httpretry"
)

// PostmarkSender posts messages to a Postmark-compatible JSON API.
type PostmarkSender struct {
	url   string
	token string
	http  httpretry.Doer
}

// NewPostmarkSender creates a sender for serviceURL authenticated by token.
// doer is usually an *httpretry.Client.
func NewPostmarkSender(serviceURL, token string, doer httpretry.Doer) *PostmarkSender {
	return &PostmarkSender{url: serviceURL, token: token, http: doer}
}

type postmarkRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody,omitempty"`
	TextBody string `json:"TextBody,omitempty"`
	Tag      string `json:"Tag,omitempty"`
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

// Send delivers one message. Non-2xx replies and non-zero ErrorCode values
// are errors.
func (s *PostmarkSender) Send(ctx context.Context, msg *Message) error {
	if s.url == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(postmarkRequest{
		From:     msg.From,
		To:       msg.To,
		Subject:  msg.Subject,
		HtmlBody: msg.HTMLBody,
		TextBody: msg.TextBody,
		Tag:      msg.Tag,
	})
	if err != nil {
		return fmt.Errorf("postmark: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("postmark: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", s.token)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("postmark: send: %w", err)
	}
	defer resp.Body.Close()

	var out postmarkResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("postmark: status %d: code %d: %s", resp.StatusCode, out.ErrorCode, out.Message)
	}
	if out.ErrorCode != 0 {
		return fmt.Errorf("postmark: code %d: %s", out.ErrorCode, out.Message)
	}
	return nil
}
