package dav

import (
	"net/http"
	"time"
)

const userAgent = "ical-share/1.0"

// basicAuthTransport adds Basic Auth and the client's User-Agent to each
// request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.Username != "" || t.Password != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	req.Header.Set("User-Agent", userAgent)
	return t.Transport.RoundTrip(req)
}

// NewHTTPClient returns a client that authenticates every request with the
// given credentials. Empty credentials send no Authorization header.
func NewHTTPClient(username, password string) *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &basicAuthTransport{
			Username:  username,
			Password:  password,
			Transport: http.DefaultTransport,
		},
	}
}
