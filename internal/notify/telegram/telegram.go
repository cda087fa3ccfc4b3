// Package telegram sends alert notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"soc-alert-relay-go/internal/model"
	"soc-alert-relay-go/internal/notify"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	httpTimeout    = 10 * time.Second
)

// RecipientSource resolves the per-device recipient bindings at send time,
// so bindings added mid-window take effect immediately.
type RecipientSource interface {
	Recipients(ctx context.Context, device string) ([]model.AssetRecipient, error)
}

// Notifier sends dispatches to the admin chats and to the enabled
// recipients of the affected device.
type Notifier struct {
	token      string
	adminChats []int64
	recipients RecipientSource
	baseURL    string
	client     *http.Client
}

// New creates a Telegram notifier. If token is empty, Send is a logged no-op.
func New(token string, adminChats []int64, recipients RecipientSource) *Notifier {
	return &Notifier{
		token:      token,
		adminChats: adminChats,
		recipients: recipients,
		baseURL:    defaultBaseURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send implements notify.Notifier. Admin chats always receive the message;
// device recipients are filtered by their minimum risk gate. The returned
// error is non-nil only when every attempted chat failed.
func (n *Notifier) Send(ctx context.Context, d notify.Dispatch) ([]notify.Delivery, error) {
	if n.token == "" {
		logrus.Warnf("Telegram token is not set; skipping send for fingerprint %s", d.Fingerprint.Short())
		return nil, nil
	}

	chats := n.fanOut(ctx, d)
	if len(chats) == 0 {
		logrus.Warnf("No Telegram recipients for device %s; skipping send", d.Event.Device)
		return nil, nil
	}

	text := renderMessage(d)

	var deliveries []notify.Delivery
	failed := 0
	for _, chatID := range chats {
		err := n.sendMessage(ctx, chatID, text)
		if err != nil {
			failed++
			logrus.Errorf("Telegram send failed to chat %d: %v", chatID, err)
		}
		deliveries = append(deliveries, notify.Delivery{ChatID: chatID, Err: err})
	}

	if failed == len(deliveries) {
		return deliveries, fmt.Errorf("telegram send failed to all %d chats", len(deliveries))
	}
	return deliveries, nil
}

// fanOut builds the chat list: admins first, then enabled device
// recipients whose risk gate passes. Duplicates collapse onto the admin
// entry.
func (n *Notifier) fanOut(ctx context.Context, d notify.Dispatch) []int64 {
	seen := make(map[int64]bool, len(n.adminChats))
	var chats []int64
	for _, id := range n.adminChats {
		if !seen[id] {
			seen[id] = true
			chats = append(chats, id)
		}
	}

	if n.recipients == nil {
		return chats
	}
	bindings, err := n.recipients.Recipients(ctx, d.Event.Device)
	if err != nil {
		logrus.Warnf("Recipient lookup failed for device %s: %v", d.Event.Device, err)
		return chats
	}

	for _, b := range bindings {
		if !b.Enabled || seen[b.ChatID] {
			continue
		}
		minRisk := model.RiskLevel(b.MinRisk)
		if b.MinRisk == "" {
			minRisk = model.RiskMedium
		}
		if !d.Risk.AtLeast(minRisk) {
			continue
		}
		seen[b.ChatID] = true
		chats = append(chats, b.ChatID)
	}
	return chats
}

// renderMessage wraps the text in <pre> so paths and hashes keep their
// monospace formatting, and flags bursts with the repeat count.
func renderMessage(d notify.Dispatch) string {
	body := d.Text
	if d.Decision == model.DecisionBurst {
		body = fmt.Sprintf("Repeated %d times in the current window\n%s", d.RepeatCount, body)
	}
	return fmt.Sprintf("%s\n<pre>%s</pre>", riskIcon(d.Risk), html.EscapeString(body))
}

func riskIcon(risk model.RiskLevel) string {
	switch risk {
	case model.RiskCritical, model.RiskHigh:
		return "\U0001F534"
	case model.RiskMedium:
		return "\U0001F7E1"
	default:
		return "\U0001F7E2"
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (n *Notifier) sendMessage(ctx context.Context, chatID int64, text string) error {
	payload := sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: post sendMessage: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: sendMessage returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out sendMessageResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fmt.Errorf("telegram: decode response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("telegram: sendMessage rejected: %s", out.Description)
	}
	return nil
}
