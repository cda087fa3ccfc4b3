package fetcher

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	gmail "google.golang.org/api/gmail/v1"

	"soc-alert-relay-go/internal/model"
)

func TestExtractTextPartsMultipart(t *testing.T) {
	raw := strings.Join([]string{
		"From: alerts@av.example",
		"To: soc@example.com",
		"Subject: Alert",
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=b123",
		"",
		"--b123",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Device: HOST01",
		"--b123",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><body>Device:&nbsp;HOST01</body></html>",
		"--b123--",
		"",
	}, "\r\n")

	plain, html, err := extractTextParts(strings.NewReader(raw))
	assert.NoError(t, err)
	assert.Equal(t, "Device: HOST01", strings.TrimSpace(plain))
	assert.Contains(t, html, "Device:&nbsp;HOST01")
}

func TestExtractTextPartsSinglePartHTML(t *testing.T) {
	raw := strings.Join([]string{
		"From: alerts@av.example",
		"Subject: Alert",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Device: HOST02</p>",
		"",
	}, "\r\n")

	plain, html, err := extractTextParts(strings.NewReader(raw))
	assert.NoError(t, err)
	assert.Empty(t, plain)
	assert.Contains(t, html, "Device: HOST02")
}

func TestExtractTextPartsDecodesTransferEncoding(t *testing.T) {
	raw := strings.Join([]string{
		"From: alerts@av.example",
		"Subject: Alert",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Na=C3=AFve device name",
		"",
	}, "\r\n")

	plain, _, err := extractTextParts(strings.NewReader(raw))
	assert.NoError(t, err)
	assert.Contains(t, plain, "Naïve device name")
}

func TestChooseBodyPrefersHTML(t *testing.T) {
	content, contentType := chooseBody("plain body", "<p>html body</p>")
	assert.Equal(t, "<p>html body</p>", content)
	assert.Equal(t, model.ContentTypeHTML, contentType)

	content, contentType = chooseBody("plain body", "")
	assert.Equal(t, "plain body", content)
	assert.Equal(t, model.ContentTypePlain, contentType)
}

func TestCollectGmailParts(t *testing.T) {
	encode := func(s string) string {
		return base64.URLEncoding.EncodeToString([]byte(s))
	}

	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "text/plain",
						Body:     &gmail.MessagePartBody{Data: encode("plain body")},
					},
					{
						MimeType: "text/html",
						Body:     &gmail.MessagePartBody{Data: encode("<p>html body</p>")},
					},
				},
			},
			{
				MimeType: "application/octet-stream",
				Body:     &gmail.MessagePartBody{Data: encode("attachment bytes")},
			},
		},
	}

	var plain, html string
	err := collectGmailParts(payload, &plain, &html)
	assert.NoError(t, err)
	assert.Equal(t, "plain body", plain)
	assert.Equal(t, "<p>html body</p>", html)
}

func TestCollectGmailPartsKeepsFirstMatch(t *testing.T) {
	encode := func(s string) string {
		return base64.URLEncoding.EncodeToString([]byte(s))
	}

	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("first")}},
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("second")}},
		},
	}

	var plain, html string
	err := collectGmailParts(payload, &plain, &html)
	assert.NoError(t, err)
	assert.Equal(t, "first", plain)
	assert.Empty(t, html)
}
