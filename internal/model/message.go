package model

import "time"

// ContentType identifies the body format of a raw alert message.
type ContentType string

const (
	ContentTypeHTML  ContentType = "html"
	ContentTypePlain ContentType = "plain"
)

// RawMessage is the immutable input handed to the parser by the mail
// fetcher. Content is kept verbatim; the parser never mutates it.
type RawMessage struct {
	Content     string      `json:"content"`
	ContentType ContentType `json:"content_type"`
	ReceivedAt  time.Time   `json:"received_at"`
}
