package scrape

import "errors"

// ErrExtractionFailed signals the page structure did not match the
// configured selector (zero matches, or a non-raster image reference).
var ErrExtractionFailed = errors.New("image extraction failed")

// ErrFetchFailed signals a page or image fetch returned a non-success
// transport status.
var ErrFetchFailed = errors.New("fetch failed")

// ErrNoSelector signals the item's domain has no configured selector.
// Domains are pre-validated at ingestion, but the worker re-checks.
var ErrNoSelector = errors.New("no selector configured for domain")
