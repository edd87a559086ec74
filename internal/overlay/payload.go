// Package overlay prepares the content of the offline notice shown over a board page.
package overlay

import (
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

//go:embed offline.html
var defaultPage string

// ErrMalformedPayload marks a payload that is not Base64-encoded UTF-8.
var ErrMalformedPayload = errors.New("malformed overlay payload")

// DefaultPage returns the built-in offline fragment.
func DefaultPage() string {
	return defaultPage
}

// Encode prepares an HTML fragment for transport the way the host hands it to the page.
func Encode(fragment string) string {
	return base64.StdEncoding.EncodeToString([]byte(fragment))
}

// Decode turns a Base64 payload back into the UTF-8 fragment. An empty payload decodes to "".
func Decode(payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		var rawErr error
		raw, rawErr = base64.RawStdEncoding.DecodeString(payload)
		if rawErr != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrMalformedPayload)
	}
	return string(raw), nil
}

// LoadFile reads a fragment from disk and returns it encoded.
func LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read overlay file: %w", err)
	}
	return Encode(string(data)), nil
}

// Summary extracts a short human readable line from a fragment, preferring its first heading.
func Summary(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()

	if heading := strings.TrimSpace(doc.Find("h1, h2, h3").First().Text()); heading != "" {
		return collapse(heading)
	}
	return collapse(doc.Find("body").Text())
}

func collapse(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const limit = 120
	if utf8.RuneCountInString(s) > limit {
		r := []rune(s)
		s = string(r[:limit]) + "…"
	}
	return s
}
