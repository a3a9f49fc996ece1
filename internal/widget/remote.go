package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/liliang-cn/folio/internal/domain"
)

// TranscriptClient posts finished exchanges to the proxy's transcript log
type TranscriptClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewTranscriptClient creates a client for the proxy at baseURL
func NewTranscriptClient(baseURL string, httpClient *http.Client) *TranscriptClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &TranscriptClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Record logs one exchange
func (c *TranscriptClient) Record(ctx context.Context, sessionID, userMessage, botResponse string) error {
	body, err := json.Marshal(domain.CreateTranscriptRequest{
		SessionID:   sessionID,
		UserMessage: userMessage,
		BotResponse: botResponse,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transcripts", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("transcript log returned status %d", resp.StatusCode)
	}
	return nil
}

// FetchWidgetConfig reads the proxy's widget configuration
func FetchWidgetConfig(ctx context.Context, httpClient *http.Client, baseURL string) (*domain.WidgetConfig, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/widget/config", nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("widget config returned status %d", resp.StatusCode)
	}

	var cfg domain.WidgetConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode widget config: %w", err)
	}
	return &cfg, nil
}
