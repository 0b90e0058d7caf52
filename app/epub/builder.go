package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/rss-epub/app/feed"
)

const defaultImageExtension = ".img"

type Builder struct {
	title    string
	language string
	now      func() time.Time
}

func NewBuilder(title, language string) *Builder {
	return &Builder{
		title:    title,
		language: language,
		now:      time.Now,
	}
}

// Build assembles the archive from results in the order given. Feeds without
// articles get no page. Manifest ids are derived from feed and article
// indexes, so they are unique by construction.
func (b *Builder) Build(results []feed.FeedResult) (*Archive, error) {
	createdAt := b.now().UTC()

	pages := b.pages(results)
	if len(pages) == 0 {
		return nil, ErrNothingToBuild
	}

	archive := &Archive{
		Identifier: "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("rss-epub:"+createdAt.Format(time.RFC3339Nano))).String(),
		Title:      fmt.Sprintf("%s %s", b.title, createdAt.Format(time.DateOnly)),
		CreatedAt:  createdAt,
		Pages:      len(pages),
	}

	var manifest []manifestItem
	manifest = append(manifest, manifestItem{ID: ncxID, Href: ncxHref, MediaType: ncxMediaType})
	for _, p := range pages {
		manifest = append(manifest, manifestItem{ID: p.ID, Href: p.Href, MediaType: xhtmlMediaType})
		for _, a := range p.Articles {
			archive.Articles++
			if a.image != nil {
				archive.Images++
				manifest = append(manifest, manifestItem{ID: a.image.ID, Href: a.image.Href, MediaType: a.image.MediaType})
			}
		}
	}

	archive.Entries = append(archive.Entries,
		Entry{Name: mimetypePath, Data: []byte(mimetype)},
		Entry{Name: containerPath, Data: b.container()},
		Entry{Name: packagePath, Data: b.packageDocument(archive, manifest, pages)},
		Entry{Name: contentDir + ncxHref, Data: b.navigation(archive, pages)},
	)

	for _, p := range pages {
		archive.Entries = append(archive.Entries, Entry{Name: contentDir + p.Href, Data: b.contentPage(p)})
		for _, a := range p.Articles {
			if a.image != nil {
				archive.Entries = append(archive.Entries, Entry{Name: contentDir + a.image.Href, Data: a.image.Data})
			}
		}
	}

	slog.Debug("Archive built", "pages", archive.Pages, "articles", archive.Articles, "images", archive.Images)

	return archive, nil
}

func (b *Builder) pages(results []feed.FeedResult) []page {
	var pages []page
	for _, result := range results {
		if len(result.Articles) == 0 {
			continue
		}

		i := len(pages)
		p := page{
			ID:    fmt.Sprintf("feed%d", i),
			Href:  fmt.Sprintf("feed%d.xhtml", i),
			Label: resultLabel(result),
		}

		for j, article := range result.Articles {
			a := pageArticle{
				Title:     article.Title,
				Published: article.PublishedLabel(),
				Body:      article.Body,
				Link:      article.Link,
			}

			if article.Image != nil && len(article.Image.Data) > 0 {
				ext := article.Image.Extension
				if ext == "" {
					ext = defaultImageExtension
				}
				a.image = &imageEntry{
					ID:        fmt.Sprintf("image_%d_%d", i, j),
					Href:      fmt.Sprintf("image_%d_%d%s", i, j, ext),
					MediaType: article.Image.MediaType,
					Data:      article.Image.Data,
				}
				a.ImageHref = a.image.Href
			}

			p.Articles = append(p.Articles, a)
		}

		pages = append(pages, p)
	}
	return pages
}

func resultLabel(result feed.FeedResult) string {
	if result.Config == nil {
		return feed.NoTitle
	}
	if result.Config.Name != "" {
		return result.Config.Name
	}
	return feed.Label(result.Config.URL)
}

func (b *Builder) container() []byte {
	var buf bytes.Buffer

	buf.WriteString(xml.Header)
	buf.WriteString(`<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">`)
	buf.WriteString("\n  <rootfiles>\n")
	buf.WriteString(fmt.Sprintf("    <rootfile full-path=\"%s\" media-type=\"application/oebps-package+xml\"/>\n", packagePath))
	buf.WriteString("  </rootfiles>\n</container>\n")

	return buf.Bytes()
}

func (b *Builder) packageDocument(archive *Archive, manifest []manifestItem, pages []page) []byte {
	var buf bytes.Buffer

	buf.WriteString(xml.Header)
	buf.WriteString(`<package xmlns="http://www.idpf.org/2007/opf" unique-identifier="BookID" version="2.0">`)
	buf.WriteString("\n")
	buf.WriteString(`  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">`)
	buf.WriteString("\n")
	writeElement(&buf, "dc:title", archive.Title, 4)
	writeElement(&buf, "dc:language", b.language, 4)
	buf.WriteString("    <dc:identifier id=\"BookID\">")
	xml.EscapeText(&buf, []byte(archive.Identifier))
	buf.WriteString("</dc:identifier>\n")
	writeElement(&buf, "dc:date", archive.CreatedAt.Format(time.RFC3339), 4)
	buf.WriteString("  </metadata>\n")

	buf.WriteString("  <manifest>\n")
	for _, item := range manifest {
		buf.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"%s\" media-type=\"%s\"/>\n",
			escape(item.ID), escape(item.Href), escape(item.MediaType)))
	}
	buf.WriteString("  </manifest>\n")

	buf.WriteString(fmt.Sprintf("  <spine toc=\"%s\">\n", ncxID))
	for _, p := range pages {
		buf.WriteString(fmt.Sprintf("    <itemref idref=\"%s\"/>\n", escape(p.ID)))
	}
	buf.WriteString("  </spine>\n</package>\n")

	return buf.Bytes()
}

func (b *Builder) navigation(archive *Archive, pages []page) []byte {
	var buf bytes.Buffer

	buf.WriteString(xml.Header)
	buf.WriteString(`<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">`)
	buf.WriteString("\n  <head>\n")
	buf.WriteString(fmt.Sprintf("    <meta name=\"dtb:uid\" content=\"%s\"/>\n", escape(archive.Identifier)))
	buf.WriteString("    <meta name=\"dtb:depth\" content=\"1\"/>\n")
	buf.WriteString("    <meta name=\"dtb:totalPageCount\" content=\"0\"/>\n")
	buf.WriteString("    <meta name=\"dtb:maxPageNumber\" content=\"0\"/>\n")
	buf.WriteString("  </head>\n")
	buf.WriteString("  <docTitle>\n")
	writeElement(&buf, "text", archive.Title, 4)
	buf.WriteString("  </docTitle>\n")

	buf.WriteString("  <navMap>\n")
	for i, p := range pages {
		buf.WriteString(fmt.Sprintf("    <navPoint id=\"nav-%s\" playOrder=\"%d\">\n", escape(p.ID), i+1))
		buf.WriteString("      <navLabel>\n")
		writeElement(&buf, "text", p.Label, 8)
		buf.WriteString("      </navLabel>\n")
		buf.WriteString(fmt.Sprintf("      <content src=\"%s\"/>\n", escape(p.Href)))
		buf.WriteString("    </navPoint>\n")
	}
	buf.WriteString("  </navMap>\n</ncx>\n")

	return buf.Bytes()
}

func (b *Builder) contentPage(p page) []byte {
	var buf bytes.Buffer

	buf.WriteString(xml.Header)
	buf.WriteString(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd">`)
	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("<html xmlns=\"http://www.w3.org/1999/xhtml\" xml:lang=\"%s\">\n", escape(b.language)))
	buf.WriteString("<head>\n")
	writeElement(&buf, "title", p.Label, 2)
	buf.WriteString("</head>\n<body>\n")
	writeElement(&buf, "h1", p.Label, 2)

	for _, a := range p.Articles {
		buf.WriteString("  <div class=\"article\">\n")
		writeElement(&buf, "h2", a.Title, 4)
		buf.WriteString("    <p><em>Published: ")
		xml.EscapeText(&buf, []byte(a.Published))
		buf.WriteString("</em></p>\n")

		if a.ImageHref != "" {
			buf.WriteString(fmt.Sprintf("    <div><img src=\"%s\" alt=\"%s\"/></div>\n", escape(a.ImageHref), escape(a.Title)))
		}

		for _, line := range strings.Split(a.Body, "\n") {
			writeElement(&buf, "p", line, 4)
		}

		if a.Link != "" && a.Link != feed.NoLink {
			buf.WriteString(fmt.Sprintf("    <p><a href=\"%s\">", escape(a.Link)))
			xml.EscapeText(&buf, []byte(a.Link))
			buf.WriteString("</a></p>\n")
		}

		buf.WriteString("  </div>\n  <hr/>\n")
	}

	buf.WriteString("</body>\n</html>\n")

	return buf.Bytes()
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
