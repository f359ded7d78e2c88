// Package transport provides HTTP clients that present a Chrome-like TLS
// fingerprint. The chat service sits behind Cloudflare, which answers Go's
// default crypto/tls fingerprint with a managed JS challenge instead of the
// page, so every client that talks to the service or its API goes through
// here.
//
//   - NewTransport / NewClient (HTTP/1.1): Chrome 120 ClientHello via uTLS
//     with ALPN restricted to http/1.1. Used by the API strategy.
//   - NewCloudflareClient: NewClient plus header stripping and zstd request
//     bodies for WAF-sensitive endpoints.
//   - NewH2Client (HTTP/2): tls-client Chrome profile with matching h2
//     SETTINGS. Used by the session probe.
package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	utls "github.com/refraction-networking/utls"
)

const (
	dialTimeout = 10 * time.Second
	keepAlive   = 30 * time.Second

	// Request bodies above this size are zstd-compressed.
	compressThreshold = 2048
)

// dialChromeTLSh1 dials with the Chrome 120 ClientHello but only offers
// http/1.1 so the server never negotiates h2, which net/http cannot speak
// over a custom DialTLSContext connection.
func dialChromeTLSh1(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		rawConn.Close()
		return nil, err
	}

	spec, err := utls.UTLSIdToSpec(utls.HelloChrome_120)
	if err != nil {
		rawConn.Close()
		return nil, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			break
		}
	}

	tlsConn := utls.UClient(rawConn, &utls.Config{ServerName: host}, utls.HelloCustom)
	if err := tlsConn.ApplyPreset(&spec); err != nil {
		rawConn.Close()
		return nil, err
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return &h1Conn{Conn: tlsConn}, nil
}

// h1Conn hides ConnectionState so net/http does not try h2 on the conn.
type h1Conn struct {
	net.Conn
}

// NewTransport returns an HTTP/1.1 transport with the Chrome TLS fingerprint.
func NewTransport() *http.Transport {
	return &http.Transport{
		ForceAttemptHTTP2:  false,
		MaxIdleConns:       4,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: true,
		DialTLSContext:     dialChromeTLSh1,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
	}
}

// NewClient returns a client on NewTransport. A zero timeout leaves bounding
// to the request context.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(),
	}
}

// NewCloudflareClient returns a client for Cloudflare-fronted API endpoints.
// It strips SDK telemetry headers and compresses large request bodies.
func NewCloudflareClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &cloudflareRT{inner: NewTransport()},
	}
}

type cloudflareRT struct {
	inner http.RoundTripper
}

func (rt *cloudflareRT) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k := range req.Header {
		if strings.HasPrefix(k, "X-Stainless") {
			req.Header.Del(k)
		}
	}

	if req.Body != nil && req.ContentLength > compressThreshold {
		raw, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		compressed, err := compressZstd(raw)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(compressed))
		req.ContentLength = int64(len(compressed))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(compressed)), nil
		}
		req.Header.Set("Content-Encoding", "zstd")
	}

	return rt.inner.RoundTrip(req)
}

func compressZstd(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}
