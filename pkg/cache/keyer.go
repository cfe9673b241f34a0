package cache

import "strings"

// Keyer builds cache keys. Swapping the Keyer lets the HTTP server isolate
// tenants without touching the fetch code.
type Keyer interface {
	// SearchKey identifies the result list of one provider for one query.
	SearchKey(provider, query string) string

	// AssetKey identifies the raw bytes behind one source URL.
	AssetKey(source string) string
}

// DefaultKeyer hashes key components so arbitrary URLs and queries produce
// fixed-length, filesystem-safe keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SearchKey normalizes the query (trimmed, lowercased) before hashing so
// "Teapot" and "teapot " share an entry.
func (DefaultKeyer) SearchKey(provider, query string) string {
	return hashKey(KeyTypeSearch, provider, strings.ToLower(strings.TrimSpace(query)))
}

// AssetKey hashes the URL verbatim; query strings are significant for CDNs.
func (DefaultKeyer) AssetKey(source string) string {
	return hashKey(KeyTypeAsset, source)
}
