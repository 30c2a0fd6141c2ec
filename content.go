package fhirmsg

import (
	"encoding/base64"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/trickstertwo/xlog"
)

// Content is the decoded view of an attachment: either UTF-8 text or opaque
// binary bytes, decided by the declared content type.
type Content struct {
	IsBinary    bool
	ContentType string
	Filename    string
	Text        string
	Data        []byte
}

// Base64 returns the binary content in its text-safe transport encoding.
func (c Content) Base64() string {
	if len(c.Data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(c.Data)
}

// Empty reports whether decoding yielded no usable content.
func (c Content) Empty() bool { return c.Text == "" && len(c.Data) == 0 }

// EncodeAttachment wraps raw bytes into an attachment. Bytes are stored
// verbatim; the JSON layer base64-encodes them on the wire.
func EncodeAttachment(data []byte, contentType, filename, language string, creation time.Time) *Attachment {
	if contentType == "" {
		contentType = "text/plain"
	}
	return &Attachment{
		ContentType: contentType,
		Data:        data,
		Title:       filename,
		Language:    language,
		Creation:    creation,
	}
}

// DecodeContent extracts an attachment's content. Binary document formats
// keep their raw bytes; everything else decodes as UTF-8 text. Invalid text
// for a declared non-binary type degrades to absent content with a warning,
// never an error.
func DecodeContent(att *Attachment, logger *xlog.Logger) Content {
	ct := att.ContentType
	if ct == "" {
		ct = "text/plain"
	}
	c := Content{ContentType: ct, Filename: att.Title}

	if IsBinaryType(ct) {
		c.IsBinary = true
		c.Data = att.Data
		return c
	}
	if len(att.Data) == 0 {
		return c
	}
	if !utf8.Valid(att.Data) {
		if logger != nil {
			logger.Warn().
				Str("content_type", ct).
				Str("title", att.Title).
				Msg("attachment content is not valid utf-8, dropping")
		}
		return c
	}
	c.Text = string(att.Data)
	return c
}

// IsBinaryType reports whether a content type denotes a binary document
// format, i.e. content that must stay opaque bytes.
func IsBinaryType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "text/"):
		return false
	case ct == "application/json" || ct == "application/xml" ||
		ct == "application/fhir+json" || ct == "application/xhtml+xml" ||
		strings.HasSuffix(ct, "+json") || strings.HasSuffix(ct, "+xml"):
		return false
	case strings.HasPrefix(ct, "application/"),
		strings.HasPrefix(ct, "image/"),
		strings.HasPrefix(ct, "audio/"),
		strings.HasPrefix(ct, "video/"):
		return true
	default:
		return false
	}
}
