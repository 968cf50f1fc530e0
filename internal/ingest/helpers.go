package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// cleanText collapses runs of whitespace into single spaces and trims.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateText cuts a string to at most maxLen bytes, appending an ellipsis
// if truncated. The cut backs up to a rune boundary so the result is always
// valid UTF-8.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	suffix := ""
	if maxLen > 3 {
		cut = maxLen - 3
		suffix = "..."
	}
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + suffix
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	if !strings.Contains(html, "<") {
		return cleanText(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(html)
	}
	return cleanText(doc.Text())
}

var descriptionPolicy = bluemonday.UGCPolicy()

// sanitizeHTML strips unsafe tags and attributes from source-supplied HTML.
func sanitizeHTML(s string) string {
	return descriptionPolicy.Sanitize(s)
}

// sanitizeUTF8 removes invalid UTF-8 byte sequences from source text.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

var moneyStripper = regexp.MustCompile(`[£$€,\s]`)

// parseMoney extracts a monetary amount from text like "£1,250,000.50" or
// "GBP 40000". Returns false for text with no usable number.
func parseMoney(text string) (float64, bool) {
	s := moneyStripper.ReplaceAllString(text, "")
	s = strings.TrimPrefix(strings.ToUpper(s), "GBP")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(s, 64)
	if err != nil || val < 0 {
		return 0, false
	}
	return val, true
}
