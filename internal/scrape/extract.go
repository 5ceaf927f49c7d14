package scrape

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Matches the image source as capture group 1 and any query string as
// group 3. Only raster image types match; icons and vector formats are
// rejected.
var imgSrcPattern = regexp.MustCompile(`(?i)^(.*\.(jpg|jpeg|png|gif|webp|avif|bmp|tiff|tif))(\?.*)?$`)

// extractImageSrc returns the src of the first <img> carrying the
// configured class on the page.
func extractImageSrc(html []byte, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse page html: %w", err)
	}
	img := doc.Find("img." + selector).First()
	if img.Length() == 0 {
		return "", fmt.Errorf("%w: no img matches selector %q", ErrExtractionFailed, selector)
	}
	src, ok := img.Attr("src")
	if !ok || src == "" {
		return "", fmt.Errorf("%w: matched img has no src", ErrExtractionFailed)
	}
	return src, nil
}

// cleanImageURI enforces the raster-only rule and strips any query
// string from the reference.
func cleanImageURI(src string) (string, error) {
	m := imgSrcPattern.FindStringSubmatch(src)
	if m == nil {
		return "", fmt.Errorf(
			"%w: %q does not end with a raster image extension", ErrExtractionFailed, src)
	}
	return m[1], nil
}

// resolveImageURL makes an image reference absolute against its page.
func resolveImageURL(pageURL, src string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse image src: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// imageExtension returns the lowercase file suffix of the image URL path.
func imageExtension(imgURL string) (string, error) {
	u, err := url.Parse(imgURL)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: image url %q has no extension", ErrExtractionFailed, imgURL)
	}
	return strings.ToLower(ext), nil
}

// contentTypeForExtension guesses the MIME type for a file suffix.
func contentTypeForExtension(ext string) string {
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
