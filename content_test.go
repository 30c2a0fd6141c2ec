package fhirmsg

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBinaryType(t *testing.T) {
	cases := []struct {
		ct   string
		want bool
	}{
		{"application/pdf", true},
		{"application/octet-stream", true},
		{"image/png", true},
		{"audio/ogg", true},
		{"video/mp4", true},
		{"text/plain", false},
		{"text/html; charset=utf-8", false},
		{"application/json", false},
		{"application/xml", false},
		{"application/fhir+json", false},
		{"application/atom+xml", false},
		{"APPLICATION/PDF", true},
		{" application/pdf ; name=x", true},
		{"", false},
		{"weird/thing", false},
	}
	for _, tc := range cases {
		t.Run(tc.ct, func(t *testing.T) {
			assert.Equal(t, tc.want, IsBinaryType(tc.ct))
		})
	}
}

func TestEncodeAttachment_Defaults(t *testing.T) {
	now := time.Now()
	att := EncodeAttachment([]byte("hello"), "", "note.txt", "de", now)
	assert.Equal(t, "text/plain", att.ContentType)
	assert.Equal(t, []byte("hello"), att.Data)
	assert.Equal(t, "note.txt", att.Title)
	assert.Equal(t, "de", att.Language)
	assert.Equal(t, now, att.Creation)
}

func TestDecodeContent_Binary(t *testing.T) {
	data := []byte{0x25, 0x50, 0x44, 0x46, 0x00}
	c := DecodeContent(&Attachment{ContentType: "application/pdf", Data: data, Title: "a.pdf"}, nil)
	assert.True(t, c.IsBinary)
	assert.Equal(t, data, c.Data)
	assert.Empty(t, c.Text)
	assert.Equal(t, "a.pdf", c.Filename)
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), c.Base64())
	assert.False(t, c.Empty())
}

func TestDecodeContent_Text(t *testing.T) {
	c := DecodeContent(&Attachment{ContentType: "text/plain", Data: []byte("Grüße")}, nil)
	assert.False(t, c.IsBinary)
	assert.Equal(t, "Grüße", c.Text)
	assert.Empty(t, c.Data)
}

// TestDecodeContent_InvalidUTF8 verifies undecodable text degrades to absent
// content instead of failing.
func TestDecodeContent_InvalidUTF8(t *testing.T) {
	c := DecodeContent(&Attachment{ContentType: "text/plain", Data: []byte{0xFF, 0xFE, 0x00}}, nil)
	assert.False(t, c.IsBinary)
	assert.Empty(t, c.Text)
	assert.True(t, c.Empty())
}

// TestDecodeContent_MissingTypeDefaultsText mirrors the encode-side default.
func TestDecodeContent_MissingTypeDefaultsText(t *testing.T) {
	c := DecodeContent(&Attachment{Data: []byte("plain")}, nil)
	assert.Equal(t, "text/plain", c.ContentType)
	assert.Equal(t, "plain", c.Text)
}

// TestContent_TextRoundTrip exercises encode then decode for text payloads.
func TestContent_TextRoundTrip(t *testing.T) {
	att := EncodeAttachment([]byte("Bitte um Befund"), "text/plain", "Consult Request", "de", time.Now())
	c := DecodeContent(att, nil)
	require.False(t, c.IsBinary)
	assert.Equal(t, "Bitte um Befund", c.Text)
}
