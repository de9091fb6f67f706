package realtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text", input: "Hello there", want: "Hello there"},
		{name: "trims", input: "  Hello \n", want: "Hello"},
		{name: "script body removed", input: "<script>alert(1)</script>Hi", want: "Hi"},
		{name: "style body removed", input: "<style>p{}</style>ok", want: "ok"},
		{name: "tags stripped", input: "<b>bold</b> and <i>italic</i>", want: "bold and italic"},
		{name: "javascript scheme", input: "click javascript:alert(1)", want: "click alert(1)"},
		{name: "javascript scheme with spacing", input: "JavaScript :void(0)", want: "void(0)"},
		{name: "event handler", input: "x onerror=alert(1)", want: "x alert(1)"},
		{name: "event handler in tag", input: `<img src=x onerror="alert(1)">pic`, want: "pic"},
		{name: "nested reconstruction", input: "javajavascript:script:alert(1)", want: "alert(1)"},
		{name: "entities kept verbatim", input: "fish &amp; chips", want: "fish &amp; chips"},
		{name: "comparison survives", input: "3 < 5 and 5 > 3", want: "3 < 5 and 5 > 3"},
		{name: "only markup", input: "<br/><hr>", want: ""},
		{name: "unicode", input: "héllo 👋", want: "héllo 👋"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Sanitize(got), "sanitize is idempotent")
		})
	}
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "ok", content: "Hello"},
		{name: "empty", content: "", wantErr: ErrContentEmpty},
		{name: "whitespace", content: " \t\n ", wantErr: ErrContentEmpty},
		{name: "at limit", content: strings.Repeat("a", MaxContentLength)},
		{name: "at limit with padding", content: "  " + strings.Repeat("a", MaxContentLength) + "  "},
		{name: "multibyte at limit", content: strings.Repeat("ß", MaxContentLength)},
		{name: "over limit", content: strings.Repeat("a", MaxContentLength+1), wantErr: ErrContentTooLong},
		{name: "invalid utf8", content: "bad \xff byte", wantErr: ErrContentInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContent(tt.content)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNormalizeMessageType(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "", want: "text"},
		{input: "text", want: "text"},
		{input: "image", want: "image"},
		{input: "file", want: "file"},
		{input: "system", wantErr: true},
		{input: "TEXT", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeMessageType(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMessageTypeInvalid)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
