package epub

import (
	"errors"
	"time"
)

// ErrNothingToBuild is returned by Build when no feed has articles left to
// package.
var ErrNothingToBuild = errors.New("nothing to build: no new articles")

const (
	containerPath = "META-INF/container.xml"
	contentDir    = "OEBPS/"
	packagePath   = contentDir + "content.opf"
	ncxHref       = "toc.ncx"
	ncxID         = "ncx"

	mimetypePath = "mimetype"
	mimetype     = "application/epub+zip"

	xhtmlMediaType = "application/xhtml+xml"
	ncxMediaType   = "application/x-dtbncx+xml"
)

// Entry is one file inside the archive.
type Entry struct {
	Name string
	Data []byte
}

// Archive is a fully built EPUB, held in memory until written.
type Archive struct {
	Identifier string
	Title      string
	CreatedAt  time.Time
	Entries    []Entry
	Pages      int
	Articles   int
	Images     int
}

type manifestItem struct {
	ID        string
	Href      string
	MediaType string
}

type page struct {
	ID       string
	Href     string
	Label    string
	Articles []pageArticle
}

type pageArticle struct {
	Title     string
	Published string
	Body      string
	Link      string
	ImageHref string
	image     *imageEntry
}

type imageEntry struct {
	ID        string
	Href      string
	MediaType string
	Data      []byte
}
