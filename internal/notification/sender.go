package notification

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

// ErrPermanent - доставка невозможна, повтор не поможет
var ErrPermanent = errors.New("permanent delivery failure")

// Sender доставляет одно сообщение провайдеру
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ExpoSender отправляет сообщения через Expo Push API
type ExpoSender struct {
	url         string
	accessToken string
	httpClient  *http.Client
}

func NewExpoSender(url, accessToken string, timeout time.Duration) *ExpoSender {
	return &ExpoSender{
		url:         url,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// expoTicket - ответ Expo на одно сообщение
type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type expoResponse struct {
	Data   expoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (s *ExpoSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal push message: %v", ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("push provider responded with status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: push provider responded with status %d: %s", ErrPermanent, resp.StatusCode, raw)
	}

	var parsed expoResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("failed to decode push response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("%w: push request rejected: %s", ErrPermanent, parsed.Errors[0].Message)
	}
	if parsed.Data.Status == "error" {
		// DeviceNotRegistered и подобные ошибки тикета не исправятся повтором
		return fmt.Errorf("%w: push ticket error %s: %s", ErrPermanent, parsed.Data.Details.Error, parsed.Data.Message)
	}
	return nil
}
