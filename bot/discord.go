package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gateserver/models"

	"go.uber.org/zap"
)

// Announcer はサーバーの起動をDiscordのWebhookに通知する
type Announcer struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
}

type webhookPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

func NewAnnouncer(config models.DiscordConfig, logger *zap.Logger) *Announcer {
	return &Announcer{
		webhookURL: config.WebhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Start は起動メッセージを送る。Webhookが未設定なら何もしない
func (a *Announcer) Start(ctx context.Context, port int) error {
	if a.webhookURL == "" {
		a.logger.Debug("Discord webhook not configured")
		return nil
	}

	body, err := json.Marshal(webhookPayload{
		Content:  fmt.Sprintf("Game server started on port %d", port),
		Username: "gateserver",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	a.logger.Info("Start-up announced on Discord")
	return nil
}
