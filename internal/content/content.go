package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/h2non/filetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// filePrefix marks a structured file reference carried in the text channel.
const filePrefix = "FILE::"

var policy = bluemonday.UGCPolicy()

type Kind string

const (
	KindText Kind = "text"
	KindFile Kind = "file"
)

// FileRef describes a file shared through a message payload.
type FileRef struct {
	Name string `json:"name"`
	Mime string `json:"mime,omitempty"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url,omitempty"`
	Data string `json:"data,omitempty"`
}

// Payload is the tagged variant behind every message text: either plain text
// or a parsed file reference.
type Payload struct {
	Kind Kind
	Text string
	File FileRef
}

// Parse classifies a raw message text. Anything that fails to decode as a
// file reference degrades to plain text; parsing is never fatal.
func Parse(text string) Payload {
	if !strings.HasPrefix(text, filePrefix) {
		return Payload{Kind: KindText, Text: text}
	}

	var ref FileRef
	if err := json.Unmarshal([]byte(text[len(filePrefix):]), &ref); err != nil {
		return Payload{Kind: KindText, Text: text}
	}
	if ref.Name == "" || (ref.URL == "" && ref.Data == "") {
		return Payload{Kind: KindText, Text: text}
	}
	return Payload{Kind: KindFile, File: ref}
}

// EncodeFile builds the wire form of a file reference, sniffing the mime type
// from the content when possible.
func EncodeFile(name string, data []byte, url string) (string, error) {
	if name == "" {
		return "", errors.New("file name is required")
	}

	mime := "application/octet-stream"
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		mime = t.MIME.Value
	}

	encoded, err := json.Marshal(FileRef{
		Name: name,
		Mime: mime,
		Size: int64(len(data)),
		URL:  url,
	})
	if err != nil {
		return "", err
	}
	return filePrefix + string(encoded), nil
}

// Sanitize removes unsafe HTML from the input string using a strict policy.
// It is applied to inbound text before it reaches any consumer.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// Excerpt returns a sanitized prefix of the text, suitable for notifications.
func Excerpt(text string, max int) string {
	clean := Sanitize(text)
	runes := []rune(clean)
	if len(runes) <= max {
		return clean
	}
	return string(runes[:max])
}

// RenderHTML is a read-time projection of a text payload into safe HTML for
// the rendering layer. File payloads are not rendered here.
func RenderHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return policy.Sanitize(buf.String()), nil
}
