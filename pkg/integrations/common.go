package integrations

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/matzehuels/poissonfields/pkg/httputil"
)

const (
	httpTimeout = 10 * time.Second

	// DefaultMaxBytes caps a single downloaded asset.
	DefaultMaxBytes = 20 << 20
)

var (
	// ErrTooLarge is returned when a response body exceeds the size limit.
	ErrTooLarge = errors.New("response too large")

	// ErrNotImage is returned when a downloaded payload sniffs as text
	// (typically an HTML error or consent page served with status 200).
	ErrNotImage = errors.New("payload is not an image")

	// ErrUnsafeRedirect is returned when a download redirects to a URL that
	// fails the SSRF guard.
	ErrUnsafeRedirect = errors.New("redirect to restricted address")
)

const maxRedirects = 10

// NewHTTPClient creates an HTTP client with a standard timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// newGuardedTransport returns a transport whose dialer refuses loopback,
// private and link-local addresses.
func newGuardedTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	d := &net.Dialer{
		Timeout:   httpTimeout,
		KeepAlive: 30 * time.Second,
		Control:   httputil.GuardDial,
	}
	t.DialContext = d.DialContext
	return t
}
