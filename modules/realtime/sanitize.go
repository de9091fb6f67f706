package realtime

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tasklink/chat-server/domain/chat"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxContentLength is the longest message accepted, in characters after trimming.
const MaxContentLength = 2000

// Content validation errors. Their text is sent to the client.
var (
	ErrContentEmpty       = errors.New("message content cannot be empty")
	ErrContentTooLong     = errors.New("message content cannot exceed 2000 characters")
	ErrContentInvalid     = errors.New("message content must be valid UTF-8")
	ErrContentStripped    = errors.New("message content is empty after removing markup")
	ErrMessageTypeInvalid = errors.New("message type must be text, image or file")
)

var (
	jsSchemePattern     = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// ValidateContent checks raw message content before sanitization.
func ValidateContent(content string) error {
	if !utf8.ValidString(content) {
		return ErrContentInvalid
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrContentEmpty
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// NormalizeMessageType defaults an empty type to text and rejects types clients may not send.
func NormalizeMessageType(messageType string) (string, error) {
	switch messageType {
	case "":
		return chat.MessageTypeText, nil
	case chat.MessageTypeText, chat.MessageTypeImage, chat.MessageTypeFile:
		return messageType, nil
	}
	return "", ErrMessageTypeInvalid
}

// Sanitize strips HTML markup, javascript: schemes and inline event handlers, then trims.
// Passes repeat until nothing changes, so Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(content string) string {
	out := content
	for {
		next := sanitizePass(out)
		if next == out {
			return out
		}
		out = next
	}
}

func sanitizePass(s string) string {
	s = stripMarkup(s)
	s = jsSchemePattern.ReplaceAllString(s, "")
	s = eventHandlerPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripMarkup keeps text tokens verbatim and drops tags, comments and doctypes, along
// with the bodies of script and style elements.
func stripMarkup(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skipDepth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Raw())
			}
		case html.StartTagToken:
			if isRawTextElement(z) {
				skipDepth++
			}
		case html.EndTagToken:
			if isRawTextElement(z) && skipDepth > 0 {
				skipDepth--
			}
		}
	}
}

func isRawTextElement(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style:
		return true
	}
	return false
}
