// Package fetcher pulls alert mails out of the monitored mailbox. All
// implementations leave messages untouched until the pipeline explicitly
// marks them processed, so a crashed cycle retries naturally.
package fetcher

import (
	"context"

	"soc-alert-relay-go/internal/model"
)

// InboundEmail is one mail pulled from the mailbox, body already reduced
// to the preferred text part.
type InboundEmail struct {
	ID      string
	Subject string
	From    string
	Raw     model.RawMessage
}

// EmailFetcher interface for fetching alert emails
type EmailFetcher interface {
	// FetchNew returns up to limit unprocessed mails in arrival order.
	FetchNew(ctx context.Context, limit int) ([]InboundEmail, error)

	// MarkProcessed flags the given mails as handled in the mailbox.
	// Called only after the pipeline has fully processed them.
	MarkProcessed(ctx context.Context, ids []string) error

	Close() error
}

// chooseBody picks the body part fed to the parser. Vendor alerts are
// HTML-first; the plain part is often an impoverished rendering.
func chooseBody(plain, html string) (string, model.ContentType) {
	if html != "" {
		return html, model.ContentTypeHTML
	}
	return plain, model.ContentTypePlain
}
