package validate

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// StripMarkup removes tags and comments from s and leaves text, including
// character references, byte for byte. A "<" that never closes into a tag
// ("A<B定食") is kept as text.
func StripMarkup(s string) string {
	var b strings.Builder
	scanMarkup(s, func(raw []byte, markup bool) {
		if !markup {
			b.Write(raw)
		}
	})
	return b.String()
}

// HasMarkup reports whether s contains a closed HTML tag or comment.
func HasMarkup(s string) bool {
	if !strings.ContainsRune(s, '<') {
		return false
	}
	found := false
	scanMarkup(s, func(_ []byte, markup bool) {
		found = found || markup
	})
	return found
}

// scanMarkup walks s token by token. Tags and comments count as markup only
// when their raw text ends in ">"; anything the tokenizer gives up on is
// passed through as text.
func scanMarkup(s string, fn func(raw []byte, markup bool)) {
	z := html.NewTokenizer(strings.NewReader(s))
	consumed := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if consumed < len(s) {
				fn([]byte(s[consumed:]), false)
			}
			return
		}
		raw := z.Raw()
		consumed += len(raw)
		switch tt {
		case html.TextToken:
			fn(raw, false)
		default:
			fn(raw, bytes.HasSuffix(raw, []byte(">")))
		}
	}
}
