package batch

import (
	"fmt"
	"net/url"
	"strings"
)

// PageURL is the normalized form of a submitted card page URI. The raw
// string stays the progress-document key; the normalized host and path
// drive the approved-domain check and the content-store location.
type PageURL struct {
	Raw  string
	Host string
	Path string
}

// ParsePageURL normalizes a submitted page URI: trailing slash stripped,
// host and path lowercased, leading "www." removed from the host.
func ParsePageURL(raw string) (PageURL, error) {
	u, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return PageURL{}, fmt.Errorf("parse page uri: %w", err)
	}
	if u.Hostname() == "" {
		return PageURL{}, fmt.Errorf("page uri %q has no host", raw)
	}
	return PageURL{
		Raw:  raw,
		Host: NormalizeHost(u.Hostname()),
		Path: strings.ToLower(u.Path),
	}, nil
}

// StoragePrefix returns the content-store prefix for the page,
// e.g. "scryfall.com/card/abc/".
func (p PageURL) StoragePrefix() string {
	return p.Host + p.Path + "/"
}

// ImageKey returns the full object key for the cached image,
// e.g. "scryfall.com/card/abc/img.png".
func (p PageURL) ImageKey(ext string) string {
	return p.StoragePrefix() + "img." + ext
}

// NormalizeHost lowercases a hostname and strips a leading "www.".
func NormalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
