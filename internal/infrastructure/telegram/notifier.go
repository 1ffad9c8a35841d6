package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends run summaries to a Telegram chat via bot API.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		apiBase:  defaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at another bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// PublishSummary posts a plain-text message to Telegram.
func (n *Notifier) PublishSummary(ctx context.Context, summary string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return xerrors.New(xerrors.CodeConfig, "telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", summary)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			// the endpoint embeds the bot token
			urlErr.URL = n.apiBase + "/sendMessage"
		}
		return xerrors.Wrap(xerrors.CodeTransport, err, "telegram request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &xerrors.RemoteError{Method: http.MethodPost, URL: n.apiBase + "/sendMessage", StatusCode: resp.StatusCode, Body: string(payload)}
	}

	return nil
}

// Summary formats the message sent after a run.
func Summary(runID string, published int, runErr error) string {
	if runErr != nil {
		return fmt.Sprintf("BoardWriter run %s failed after %d card(s) published: %v", runID, published, runErr)
	}
	return fmt.Sprintf("BoardWriter run %s: %d card(s) published", runID, published)
}
