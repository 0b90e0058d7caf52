package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

const blockSelectors = "p, div, li, tr, blockquote, pre, section, article, header, footer, figure, figcaption, h1, h2, h3, h4, h5, h6, dt, dd, table, ul, ol"

// Sanitizer reduces article HTML to plain text plus the first image reference.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowImages()
	p.AllowElements("article", "section", "header", "footer", "div", "p", "br", "pre", "blockquote",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "dl", "dt", "dd",
		"table", "tr", "td", "th", "figure", "figcaption")

	return &Sanitizer{policy: p}
}

// Run returns the plain text of raw and the src of its first image. Output is
// a fixed point: Run on an already sanitized text returns it unchanged.
func (s *Sanitizer) Run(raw string) (string, string) {
	imageURL := s.firstImage(raw)

	// every pass drops markup or decodes one level of escaping, so the text
	// stops changing after as many passes as it has escaping levels
	text := raw
	for {
		next := s.toText(text)
		if next == text {
			break
		}
		text = next
	}

	return text, imageURL
}

// Line reduces raw to a single line of text, for titles.
func (s *Sanitizer) Line(raw string) string {
	text, _ := s.Run(raw)
	return strings.Join(strings.Split(text, "\n"), " ")
}

func (s *Sanitizer) firstImage(raw string) string {
	if !strings.Contains(raw, "<") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()

	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

func (s *Sanitizer) toText(raw string) string {
	// script and style contents are skipped by the policy
	cleaned := s.policy.Sanitize(raw)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleaned))
	if err != nil {
		return normalizeLines(raw)
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelectors).AppendHtml("\n")

	return normalizeLines(doc.Text())
}

// normalizeLines trims every line, drops empty ones and joins the rest with
// single newlines.
func normalizeLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}

	return norm.NFC.String(strings.Join(kept, "\n"))
}
