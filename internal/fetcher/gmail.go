package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"soc-alert-relay-go/internal/config"
	"soc-alert-relay-go/internal/model"
)

// GmailFetcher implements EmailFetcher using the Gmail API
type GmailFetcher struct {
	service    *gmail.Service
	userEmail  string
	fromFilter string
	markSeen   bool
	latest     bool
}

// NewGmailFetcher creates a Gmail API fetcher from OAuth2 refresh-token
// credentials. The modify scope is required to clear the UNREAD label.
func NewGmailFetcher(cfg *config.MailboxConfig, latest bool) (*GmailFetcher, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Scopes:       []string{gmail.GmailModifyScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: cfg.GmailRefreshToken,
	}

	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailFetcher{
		service:    service,
		userEmail:  cfg.GmailUserEmail,
		fromFilter: cfg.FromFilter,
		markSeen:   cfg.MarkSeen,
		latest:     latest,
	}, nil
}

// FetchNew fetches unread mails (or simply the newest in latest mode).
func (f *GmailFetcher) FetchNew(ctx context.Context, limit int) ([]InboundEmail, error) {
	var terms []string
	if !f.latest {
		terms = append(terms, "is:unread")
	}
	if f.fromFilter != "" {
		terms = append(terms, fmt.Sprintf("from:%s", f.fromFilter))
	}
	query := strings.Join(terms, " ")

	call := f.service.Users.Messages.List(f.userEmail).MaxResults(int64(limit))
	if query != "" {
		call = call.Q(query)
	}
	response, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var emails []InboundEmail
	for _, msg := range response.Messages {
		full, err := f.service.Users.Messages.Get(f.userEmail, msg.Id).Format("full").Context(ctx).Do()
		if err != nil {
			logrus.Warnf("Failed to get message %s: %v", msg.Id, err)
			continue
		}

		email, err := f.parseMessage(full)
		if err != nil {
			logrus.Warnf("Failed to parse message %s: %v", msg.Id, err)
			continue
		}
		emails = append(emails, email)
	}

	// The list endpoint returns newest first; the pipeline wants arrival order.
	for i, j := 0, len(emails)-1; i < j; i, j = i+1, j-1 {
		emails[i], emails[j] = emails[j], emails[i]
	}
	return emails, nil
}

func (f *GmailFetcher) parseMessage(msg *gmail.Message) (InboundEmail, error) {
	email := InboundEmail{ID: msg.Id}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			email.Subject = header.Value
		case "From":
			email.From = header.Value
		}
	}

	var plain, html string
	if err := collectGmailParts(msg.Payload, &plain, &html); err != nil {
		return email, err
	}

	receivedAt := time.Now()
	if msg.InternalDate > 0 {
		receivedAt = time.UnixMilli(msg.InternalDate)
	}

	content, contentType := chooseBody(plain, html)
	email.Raw = model.RawMessage{
		Content:     content,
		ContentType: contentType,
		ReceivedAt:  receivedAt,
	}
	return email, nil
}

// collectGmailParts recursively walks message parts, decoding the first
// plain and HTML bodies it finds.
func collectGmailParts(part *gmail.MessagePart, plain, html *string) error {
	if part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return fmt.Errorf("failed to decode body data: %w", err)
		}

		switch part.MimeType {
		case "text/plain":
			if *plain == "" {
				*plain = string(data)
			}
		case "text/html":
			if *html == "" {
				*html = string(data)
			}
		}
	}

	for _, subPart := range part.Parts {
		if err := collectGmailParts(subPart, plain, html); err != nil {
			return err
		}
	}
	return nil
}

// MarkProcessed removes the UNREAD label from fully processed mails.
func (f *GmailFetcher) MarkProcessed(ctx context.Context, ids []string) error {
	if f.latest || !f.markSeen {
		return nil
	}

	request := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}
	for _, id := range ids {
		if _, err := f.service.Users.Messages.Modify(f.userEmail, id, request).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to mark message %s read: %w", id, err)
		}
	}
	return nil
}

// Close closes the Gmail fetcher
func (f *GmailFetcher) Close() error {
	// Gmail API service doesn't need explicit closing
	return nil
}
