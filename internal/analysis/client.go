package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service"
)

const analyzePath = "/analyze-issue"

// Client обращается к сервису классификации текста обращений
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) service.Analyzer {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

// analyzeResponse - ответ классификатора; confidence уже в процентах
type analyzeResponse struct {
	IssueType  string  `json:"issue_type"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
}

// Analyze классифицирует заголовок вместе с описанием
func (c *Client) Analyze(ctx context.Context, title, description string) (*models.AIAnalysis, error) {
	body, err := json.Marshal(analyzeRequest{Text: title + " " + description})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send analysis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analysis server responded with status %d: %s", resp.StatusCode, raw)
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	if parsed.IssueType == "" {
		return nil, fmt.Errorf("analysis response has no issue type")
	}

	return &models.AIAnalysis{
		IncidentType: parsed.IssueType,
		Confidence:   parsed.Confidence,
		TextAnalysis: models.TextAnalysis{
			IssueType:  parsed.IssueType,
			Severity:   parsed.Severity,
			Confidence: parsed.Confidence,
		},
	}, nil
}
