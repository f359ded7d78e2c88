package transport

import (
	"fmt"
	"io"
	"net/http"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tlsclient "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// chromeRoundTripper adapts tls-client, which speaks fhttp types, to
// http.RoundTripper.
type chromeRoundTripper struct {
	client tlsclient.HttpClient
}

func (rt *chromeRoundTripper) RoundTrip(hReq *http.Request) (*http.Response, error) {
	var body io.Reader
	if hReq.Body != nil {
		body = hReq.Body
	}
	fReq, err := fhttp.NewRequestWithContext(hReq.Context(), hReq.Method, hReq.URL.String(), body)
	if err != nil {
		return nil, err
	}
	// Headers are added one by one; replacing the map drops fhttp's ordered
	// defaults and Cloudflare answers 403.
	for k, vv := range hReq.Header {
		for _, v := range vv {
			fReq.Header.Add(k, v)
		}
	}
	if hReq.ContentLength > 0 {
		fReq.ContentLength = hReq.ContentLength
	}

	fResp, err := rt.client.Do(fReq)
	if err != nil {
		return nil, err
	}
	return &http.Response{
		Status:           fResp.Status,
		StatusCode:       fResp.StatusCode,
		Proto:            fResp.Proto,
		ProtoMajor:       fResp.ProtoMajor,
		ProtoMinor:       fResp.ProtoMinor,
		Header:           http.Header(fResp.Header),
		Body:             fResp.Body,
		ContentLength:    fResp.ContentLength,
		TransferEncoding: fResp.TransferEncoding,
		Close:            fResp.Close,
		Uncompressed:     fResp.Uncompressed,
		Trailer:          http.Header(fResp.Trailer),
		Request:          hReq,
	}, nil
}

// NewH2Client returns an HTTP/2 client with a full Chrome fingerprint (TLS
// and h2 SETTINGS). Redirects are not followed so callers can see a bounce
// to the login page.
func NewH2Client(timeout time.Duration) (*http.Client, error) {
	opts := []tlsclient.HttpClientOption{
		tlsclient.WithClientProfile(profiles.Chrome_120),
		tlsclient.WithRandomTLSExtensionOrder(),
		tlsclient.WithNotFollowRedirects(),
	}
	if timeout > 0 {
		opts = append(opts, tlsclient.WithTimeoutSeconds(int(timeout.Seconds())))
	}
	client, err := tlsclient.NewHttpClient(tlsclient.NewNoopLogger(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating Chrome h2 client: %w", err)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &chromeRoundTripper{client: client},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}
