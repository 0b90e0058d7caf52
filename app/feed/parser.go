package feed

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"
)

type Format int

const (
	atomNamespace   = "http://www.w3.org/2005/Atom"
	atom03Namespace = "http://purl.org/atom/ns#"
)

const (
	FormatUnknown Format = iota
	FormatRSS
	FormatAtom
)

func (f Format) String() string {
	switch f {
	case FormatRSS:
		return "rss"
	case FormatAtom:
		return "atom"
	default:
		return "unknown"
	}
}

// extractFunc turns a feed document of one format into articles.
type extractFunc func(data []byte) ([]Article, error)

// Parser normalizes RSS and Atom documents into Articles. The format is
// resolved once per document and dispatched to the matching extractor.
type Parser struct {
	extractors map[Format]extractFunc
}

func NewParser() *Parser {
	p := &Parser{}
	p.extractors = map[Format]extractFunc{
		FormatRSS:  p.extractRSS,
		FormatAtom: p.extractAtom,
	}
	return p
}

// DetectFormat inspects the root element of a feed document. An Atom root
// must be in the Atom namespace and an RSS or RDF root must hold a channel.
func DetectFormat(data []byte) Format {
	var format Format
	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeAtom:
		format = FormatAtom
	case gofeed.FeedTypeRSS:
		format = FormatRSS
	default:
		return FormatUnknown
	}

	p := xpp.NewXMLPullParser(bytes.NewReader(data), false, charset.NewReaderLabel)
	if !findRoot(p) {
		return FormatUnknown
	}

	switch format {
	case FormatAtom:
		if p.Space != atomNamespace && p.Space != atom03Namespace {
			return FormatUnknown
		}
	case FormatRSS:
		if !hasChannel(p) {
			return FormatUnknown
		}
	}

	return format
}

func findRoot(p *xpp.XMLPullParser) bool {
	for {
		event, err := p.Next()
		if err != nil || event == xpp.EndDocument {
			return false
		}
		if event == xpp.StartTag {
			return true
		}
	}
}

// hasChannel reports whether the current element has a direct channel child.
func hasChannel(p *xpp.XMLPullParser) bool {
	for {
		event, err := p.Next()
		if err != nil {
			return false
		}

		switch event {
		case xpp.EndTag, xpp.EndDocument:
			return false
		case xpp.StartTag:
			if p.Name == "channel" {
				return true
			}
			if err := p.Skip(); err != nil {
				return false
			}
		}
	}
}

// Run parses a feed document fetched from feedURL. A document without items
// yields an empty slice and no error.
func (p *Parser) Run(data []byte, feedURL string) ([]Article, error) {
	format := DetectFormat(data)

	extract, ok := p.extractors[format]
	if !ok {
		return nil, &ParseError{URL: feedURL, Err: ErrUnknownFormat}
	}

	articles, err := extract(data)
	if err != nil {
		return nil, &ParseError{URL: feedURL, Err: err}
	}

	slog.Debug("Feed parsed", "url", feedURL, "format", format.String(), "articles", len(articles))
	return articles, nil
}

func (p *Parser) extractRSS(data []byte) ([]Article, error) {
	fp := &rss.Parser{}
	doc, err := fp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS: %w", err)
	}

	articles := make([]Article, 0, len(doc.Items))
	for _, item := range doc.Items {
		if item == nil {
			continue
		}

		var guid string
		if item.GUID != nil {
			guid = item.GUID.Value
		}

		rawDate := item.PubDate
		if rawDate == "" && item.DublinCoreExt != nil && len(item.DublinCoreExt.Date) > 0 {
			rawDate = item.DublinCoreExt.Date[0]
		}

		articles = append(articles, p.normalize(
			guid,
			item.Title,
			cmp.Or(strings.TrimSpace(item.Description), item.Content),
			item.Link,
			rawDate,
			item.PubDateParsed,
		))
	}

	return articles, nil
}

func (p *Parser) extractAtom(data []byte) ([]Article, error) {
	fp := &atom.Parser{}
	doc, err := fp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Atom: %w", err)
	}

	articles := make([]Article, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		if entry == nil {
			continue
		}

		var content string
		if entry.Content != nil {
			content = entry.Content.Value
		}

		rawDate, parsed := entry.Published, entry.PublishedParsed
		if rawDate == "" && parsed == nil {
			rawDate, parsed = entry.Updated, entry.UpdatedParsed
		}

		articles = append(articles, p.normalize(
			entry.ID,
			entry.Title,
			cmp.Or(strings.TrimSpace(content), entry.Summary),
			atomLink(entry.Links),
			rawDate,
			parsed,
		))
	}

	return articles, nil
}

// atomLink prefers the alternate link's href, then any link with an href.
func atomLink(links []*atom.Link) string {
	for _, link := range links {
		if link != nil && link.Href != "" && (link.Rel == "" || link.Rel == "alternate") {
			return link.Href
		}
	}
	for _, link := range links {
		if link != nil && link.Href != "" {
			return link.Href
		}
	}
	return ""
}

func (p *Parser) normalize(id, title, body, link, rawDate string, parsed *time.Time) Article {
	id = strings.TrimSpace(id)
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	link = strings.TrimSpace(link)

	article := Article{
		ID:          cmp.Or(id, fallbackID(link, title, body)),
		Title:       cmp.Or(title, NoTitle),
		RawBody:     body,
		Link:        cmp.Or(link, NoLink),
		PublishedAt: p.parseDate(rawDate, parsed),
	}

	if body == "" {
		article.Body = NoDescription
	}

	return article
}

func (p *Parser) parseDate(raw string, parsed *time.Time) time.Time {
	if parsed != nil {
		return parsed.UTC()
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		slog.Debug("Unparseable publication date", "date", raw, "error", err)
		return time.Time{}
	}
	return t.UTC()
}

// fallbackID derives a stable identifier for items without guid/id.
func fallbackID(link, title, body string) string {
	content := fmt.Sprintf("%s|%s", link, title)
	if link == "" && title == "" {
		content = fmt.Sprintf("%s|%s|%s", link, title, body)
	}

	hash := sha256.Sum256([]byte(content))
	return "urn:sha256:" + hex.EncodeToString(hash[:])
}

// SortByPublished orders articles newest first. Ties and undated articles
// keep their parse order; undated articles sort last.
func SortByPublished(articles []Article) {
	slices.SortStableFunc(articles, func(a, b Article) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
}
