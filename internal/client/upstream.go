package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Upstream forwards sanitized requests to an LLM provider and hands
// the raw response back to the mediator, which decides between
// buffered and streaming handling.
type Upstream interface {
	// Do sends method+path to base with the given headers and body.
	// The caller owns resp.Body. Provider errors (non-2xx) are not
	// errors here; the mediator forwards them verbatim.
	Do(ctx context.Context, base, method, path string, header http.Header, body io.Reader) (*http.Response, error)
}

type httpUpstream struct {
	client *http.Client
}

// NewUpstream returns the production forwarder. There is no overall
// request timeout: SSE responses stay open for minutes. Connection
// setup is still bounded by the transport.
func NewUpstream() Upstream {
	return &httpUpstream{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 5 * time.Minute,
				MaxIdleConnsPerHost:   32,
			},
		},
	}
}

// hopHeaders are stripped before forwarding, per RFC 7230 §6.1.
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Proxy-Connection", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

func (u *httpUpstream) Do(ctx context.Context, base, method, path string, header http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("upstream client: build request: %w", err)
	}
	copyForwardHeaders(req.Header, header)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream client: http do: %w", err)
	}
	return resp, nil
}

// copyForwardHeaders passes the client's headers through, auth
// included, minus hop-by-hop headers, the gateway's own control
// headers, and fields the transport manages itself.
func copyForwardHeaders(dst, src http.Header) {
	for key, values := range src {
		if strings.HasPrefix(key, "X-Anonamoose-") {
			continue
		}
		switch key {
		case "Host", "Content-Length", "Accept-Encoding":
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}
