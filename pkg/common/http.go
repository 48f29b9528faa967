package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version is the release this binary was built from.
func Version() string {
	return strings.TrimSpace(version)
}

// UserAgent is sent with every request made by HTTPClient.
func UserAgent() string {
	return "ChargePlan/" + Version()
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// the caller may reuse req, so its headers are left alone
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(req)
}

// HTTPClient returns an http.Client for talking to charger gateways. Requests
// carry the ChargePlan user agent and give up after timeout.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &userAgentTransport{
			next:      http.DefaultTransport,
			userAgent: UserAgent(),
		},
		Timeout: timeout,
	}
}
