package cache

// ScopedKeyer wraps a Keyer with a prefix, giving each tenant of a shared
// backend (for example one Redis instance behind several `serve` processes
// with different provider keys) its own namespace.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "bing:prod:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SearchKey generates a prefixed search result key.
func (k *ScopedKeyer) SearchKey(provider, query string) string {
	return k.prefix + k.inner.SearchKey(provider, query)
}

// AssetKey generates a prefixed asset key.
func (k *ScopedKeyer) AssetKey(source string) string {
	return k.prefix + k.inner.AssetKey(source)
}
