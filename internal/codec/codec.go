// Package codec maps request state to and from a shareable route so a
// request can be bookmarked, shared, and rebuilt on load.
package codec

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/unkn0wn-root/reststudio/internal/notify"
)

const (
	msgEncodeFailed = "Could not encode the request for the address bar"
	msgDecodeFailed = "The shared link is malformed and could not be decoded"
)

var base64Pattern = regexp.MustCompile(`^(?:[A-Za-z0-9+/]{4})*(?:[A-Za-z0-9+/]{2}==|[A-Za-z0-9+/]{3}=)?$`)

type Codec struct {
	Notifier notify.Notifier
}

func New(n notify.Notifier) *Codec {
	return &Codec{Notifier: n}
}

// EncodeURL percent-encodes s and then base64-encodes the result, so any
// Unicode input survives a pure base64 round trip.
func (c *Codec) EncodeURL(s string) string {
	if s == "" {
		return ""
	}
	escaped, ok := escapeComponent(s)
	if !ok {
		c.warn(msgEncodeFailed)
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(escaped))
}

// DecodeURL reverses EncodeURL. The segment may still be URL-escaped as it
// came off the path.
func (c *Codec) DecodeURL(s string) string {
	if s == "" {
		return ""
	}
	segment, err := url.PathUnescape(s)
	if err != nil || !base64Pattern.MatchString(segment) {
		c.warn(msgDecodeFailed)
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(segment)
	if err != nil {
		c.warn(msgDecodeFailed)
		return ""
	}
	out, ok := unescapeComponent(string(raw))
	if !ok {
		c.warn(msgDecodeFailed)
		return ""
	}
	return out
}

func (c *Codec) warn(msg string) {
	if c == nil {
		return
	}
	notify.Warn(c.Notifier, msg)
}

// escapeComponent follows encodeURIComponent: everything except
// A-Z a-z 0-9 - _ . ! ~ * ' ( ) is percent-encoded as UTF-8. Invalid UTF-8
// cannot be encoded.
func escapeComponent(s string) (string, bool) {
	if !utf8.ValidString(s) {
		return "", false
	}
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if unreservedComponent(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[ch>>4])
		b.WriteByte(hex[ch&0x0f])
	}
	return b.String(), true
}

func unescapeComponent(s string) (string, bool) {
	out, err := url.PathUnescape(s)
	if err != nil || !utf8.ValidString(out) {
		return "", false
	}
	return out, true
}

func unreservedComponent(ch byte) bool {
	switch {
	case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
		return true
	}
	switch ch {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
