// Package docfetch normalizes user-supplied document links and fetches their
// plain-text content from Confluence and Google Docs for summarization.
package docfetch

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	googleDocIDRe  = regexp.MustCompile(`/document/d/([A-Za-z0-9_-]+)`)
	pagesSegmentRe = regexp.MustCompile(`/pages/(\d+)`)
	pageIDParamRe  = regexp.MustCompile(`[?&]pageId=(\d+)`)
	pageIDAnyRe    = regexp.MustCompile(`pageId=(\d+)`)
	contentIDRe    = regexp.MustCompile(`contentId=(\d+)`)
)

// CleanLink strips the chat-markup decoration a pasted link arrives with:
// angle brackets, a trailing pipe-delimited display label, and any
// auto-decoration text preceding the scheme token.
func CleanLink(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	if i := strings.Index(s, "https"); i > 0 {
		s = s[i:]
	}
	if i := strings.Index(s, "|"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// StripQueryFragment removes the query string and fragment from a link.
// Used for identity comparison; the fetch itself keeps the full URL.
func StripQueryFragment(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		return link[:i]
	}
	return link
}

// ExtractDocID extracts the canonical document identifier from a link.
// It tries, in priority order: a Google Docs /document/d/<id> segment, an
// explicit /pages/<digits> path segment, a pageId=<digits> query parameter,
// and finally the last purely-numeric path segment. Returns false when the
// link carries no recognizable identifier.
func ExtractDocID(link string) (string, bool) {
	if m := googleDocIDRe.FindStringSubmatch(link); m != nil {
		return m[1], true
	}
	if m := pagesSegmentRe.FindStringSubmatch(link); m != nil {
		return m[1], true
	}
	if m := pageIDParamRe.FindStringSubmatch(link); m != nil {
		return m[1], true
	}

	path := StripQueryFragment(link)
	if u, err := url.Parse(path); err == nil && u.Path != "" {
		path = u.Path
	}
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := segments[i]; seg != "" && isDigits(seg) {
			return seg, true
		}
	}
	return "", false
}

// SameDocument reports whether two links refer to the same document,
// i.e. both carry an extractable identifier and the identifiers match.
// Differing query strings, fragments, and markup decoration are ignored.
func SameDocument(a, b string) bool {
	idA, okA := ExtractDocID(CleanLink(a))
	idB, okB := ExtractDocID(CleanLink(b))
	return okA && okB && idA == idB
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
