package fetcher

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"soc-alert-relay-go/internal/config"
	"soc-alert-relay-go/internal/model"
)

// IMAPFetcher implements EmailFetcher using IMAP
type IMAPFetcher struct {
	client     *client.Client
	folder     string
	fromFilter string
	markSeen   bool
	latest     bool

	// message-id -> mailbox UID, for MarkProcessed
	uids map[string]uint32
}

// NewIMAPFetcher connects and logs in. With latest=true the fetcher
// ignores the unseen filter and returns the newest mails of the folder,
// and MarkProcessed becomes a no-op (inspection mode).
func NewIMAPFetcher(cfg *config.MailboxConfig, latest bool) (*IMAPFetcher, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.IMAPUser, cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	return &IMAPFetcher{
		client:     c,
		folder:     cfg.IMAPFolder,
		fromFilter: cfg.FromFilter,
		markSeen:   cfg.MarkSeen,
		latest:     latest,
		uids:       make(map[string]uint32),
	}, nil
}

// FetchNew fetches unseen mails (or the newest ones in latest mode).
// Bodies are fetched with BODY.PEEK so the fetch itself never flips the
// seen flag.
func (f *IMAPFetcher) FetchNew(ctx context.Context, limit int) ([]InboundEmail, error) {
	mbox, err := f.client.Select(f.folder, f.latest)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", f.folder, err)
	}

	seqset, useUID, err := f.search(mbox, limit)
	if err != nil {
		return nil, err
	}
	if seqset == nil {
		return []InboundEmail{}, nil
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)

	go func() {
		if useUID {
			done <- f.client.UidFetch(seqset, items, messages)
		} else {
			done <- f.client.Fetch(seqset, items, messages)
		}
	}()

	var emails []InboundEmail
	for msg := range messages {
		email, err := f.parseMessage(msg, section)
		if err != nil {
			logrus.Warnf("Failed to parse IMAP message: %v", err)
			continue
		}
		emails = append(emails, email)
		if msg.Uid != 0 {
			f.uids[email.ID] = msg.Uid
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return emails, nil
}

// search builds the message set for one fetch. Unseen mode searches by
// UID; latest mode takes the tail of the folder by sequence number.
func (f *IMAPFetcher) search(mbox *imap.MailboxStatus, limit int) (*imap.SeqSet, bool, error) {
	if f.latest {
		if mbox.Messages == 0 {
			return nil, false, nil
		}
		from := uint32(1)
		if mbox.Messages > uint32(limit) {
			from = mbox.Messages - uint32(limit) + 1
		}
		seqset := new(imap.SeqSet)
		seqset.AddRange(from, mbox.Messages)
		return seqset, false, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	if f.fromFilter != "" {
		criteria.Header.Add("From", f.fromFilter)
	}

	uids, err := f.client.UidSearch(criteria)
	if err != nil {
		return nil, false, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return nil, false, nil
	}

	// Oldest first, so a backlog drains in arrival order.
	if len(uids) > limit {
		uids = uids[:limit]
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	return seqset, true, nil
}

func (f *IMAPFetcher) parseMessage(msg *imap.Message, section *imap.BodySectionName) (InboundEmail, error) {
	email := InboundEmail{}

	receivedAt := time.Now()
	if msg.Envelope != nil {
		email.Subject = msg.Envelope.Subject
		email.ID = strings.TrimSpace(msg.Envelope.MessageId)
		if len(msg.Envelope.From) > 0 {
			email.From = msg.Envelope.From[0].Address()
		}
		if !msg.Envelope.Date.IsZero() {
			receivedAt = msg.Envelope.Date
		}
	}
	if email.ID == "" {
		email.ID = uuid.NewString()
	}

	r := msg.GetBody(section)
	if r == nil {
		return email, fmt.Errorf("message %s has no body section", email.ID)
	}

	plain, html, err := extractTextParts(r)
	if err != nil {
		return email, err
	}

	content, contentType := chooseBody(plain, html)
	email.Raw = model.RawMessage{
		Content:     content,
		ContentType: contentType,
		ReceivedAt:  receivedAt,
	}
	return email, nil
}

// extractTextParts walks the MIME structure and returns the first
// text/plain and text/html bodies. Unknown charsets are tolerated: the
// part is read as-is rather than dropped.
func extractTextParts(r io.Reader) (plain, html string, err error) {
	entity, err := message.Read(r)
	if message.IsUnknownCharset(err) {
		logrus.Warnf("Unknown charset in message, reading raw: %v", err)
	} else if err != nil {
		return "", "", fmt.Errorf("failed to read message: %w", err)
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if message.IsUnknownCharset(err) {
				logrus.Warnf("Unknown charset in part, reading raw: %v", err)
			} else if err != nil {
				return "", "", fmt.Errorf("failed to read part: %w", err)
			}

			content, err := io.ReadAll(p.Body)
			if err != nil {
				return "", "", fmt.Errorf("failed to read part body: %w", err)
			}

			contentType := p.Header.Get("Content-Type")
			if strings.Contains(contentType, "text/plain") && plain == "" {
				plain = string(content)
			} else if strings.Contains(contentType, "text/html") && html == "" {
				html = string(content)
			}
		}
		return plain, html, nil
	}

	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read message body: %w", err)
	}

	contentType := entity.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		return "", string(content), nil
	}
	return string(content), "", nil
}

// MarkProcessed adds the seen flag to fully processed mails.
func (f *IMAPFetcher) MarkProcessed(ctx context.Context, ids []string) error {
	if f.latest || !f.markSeen || len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	matched := 0
	for _, id := range ids {
		uid, ok := f.uids[id]
		if !ok {
			logrus.Warnf("No mailbox UID recorded for message %s, skipping mark", id)
			continue
		}
		seqset.AddNum(uid)
		matched++
	}
	if matched == 0 {
		return nil
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := f.client.UidStore(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark messages seen: %w", err)
	}

	for _, id := range ids {
		delete(f.uids, id)
	}
	return nil
}

// Close closes the IMAP fetcher
func (f *IMAPFetcher) Close() error {
	return f.client.Logout()
}
