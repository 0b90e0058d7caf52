package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// coreImageTypes are the image types every EPUB 2 reader must render.
var coreImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/svg+xml"}

// ImageFetcher downloads the illustration of an article. Failures are never
// fatal: the article is packaged without an image.
type ImageFetcher struct {
	fetcher *Fetcher
}

func NewImageFetcher(fetcher *Fetcher) *ImageFetcher {
	return &ImageFetcher{fetcher: fetcher}
}

// Fetch resolves imageURL against baseURL and downloads it. It returns nil
// when the URL cannot be resolved, the request fails or the payload is not a
// JPEG, PNG, GIF or SVG image.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL, baseURL string) *Image {
	resolved, err := ResolveURL(imageURL, baseURL)
	if err != nil {
		slog.Warn("Failed to resolve image URL", "url", imageURL, "base", baseURL, "error", err)
		return nil
	}

	data, err := f.fetcher.Fetch(ctx, resolved)
	if err != nil {
		slog.Warn("Failed to fetch image", "url", resolved, "error", err)
		return nil
	}

	mtype := mimetype.Detect(data)
	if !isCoreImage(mtype) {
		slog.Warn("Discarding unsupported image payload", "url", resolved, "media_type", mtype.String())
		return nil
	}

	return &Image{
		URL:       resolved,
		Data:      data,
		MediaType: baseMediaType(mtype.String()),
		Extension: mtype.Extension(),
	}
}

// ResolveURL resolves ref against base. Absolute references are returned
// unchanged.
func ResolveURL(ref, base string) (string, error) {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid reference: %w", err)
	}
	if refURL.IsAbs() {
		return refURL.String(), nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if !baseURL.IsAbs() {
		return "", fmt.Errorf("base URL is not absolute: %s", base)
	}

	return baseURL.ResolveReference(refURL).String(), nil
}

func isCoreImage(mtype *mimetype.MIME) bool {
	for _, t := range coreImageTypes {
		if mtype.Is(t) {
			return true
		}
	}
	return false
}

// baseMediaType drops parameters such as "; charset=utf-8".
func baseMediaType(mediaType string) string {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		return strings.TrimSpace(mediaType[:i])
	}
	return mediaType
}
