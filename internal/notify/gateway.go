package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shenikar/accident_alert_system/pkg/signature"
)

var ErrNoRecipient = errors.New("no recipient configured")

// GatewaySender отправляет сообщения во внешний шлюз (WhatsApp/SMS) по HTTP
type GatewaySender struct {
	url        string
	secret     string
	httpClient *http.Client
}

func NewGatewaySender(url, secret string, client *http.Client) *GatewaySender {
	if client == nil {
		client = &http.Client{}
	}
	return &GatewaySender{
		url:        url,
		secret:     secret,
		httpClient: client,
	}
}

func (s *GatewaySender) Send(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return ErrNoRecipient
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set(signature.Header, signature.Sign(payload, s.secret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
